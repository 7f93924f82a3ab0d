package services

import (
	"photo-qc-api/models"
	"photo-qc-api/utils"
)

// Identity is the already-verified caller. The services never authenticate.
type Identity struct {
	UserID      *int        `json:"user_id,omitempty"`
	Email       string      `json:"email"`
	DisplayName string      `json:"display_name"`
	Role        models.Role `json:"role"`
}

func (i Identity) NormalizedEmail() string {
	return utils.NormalizeEmail(i.Email)
}

func (i Identity) validate() error {
	if i.NormalizedEmail() == "" {
		return authorizationError("Caller identity is missing an email")
	}
	return nil
}
