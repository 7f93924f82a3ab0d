package services

import (
	"context"
	"time"
)

// detachedContext keeps request values but survives the caller hanging up, for
// best-effort work that runs after a commit.
func detachedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
}
