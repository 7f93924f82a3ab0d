package controllers

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"photo-qc-api/middleware"
	"photo-qc-api/services"

	"github.com/gin-gonic/gin"
)

// Handlers binds the HTTP surface to the QC services.
type Handlers struct {
	Lifecycle      *services.LifecycleService
	Audit          *services.AuditService
	History        *services.HistoryService
	Query          *services.QueryService
	Access         *services.AccessService
	MaxUploadBytes int64
}

func callerFrom(c *gin.Context) (services.Identity, bool) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User context missing"})
		return services.Identity{}, false
	}
	return identity, true
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid submission ID"})
		return 0, false
	}
	return uint(id), true
}

func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindAuthorization:
		return http.StatusForbidden
	case services.KindConflict:
		return http.StatusConflict
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindDependency:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError translates a service outcome into the JSON error envelope.
func respondError(c *gin.Context, err error) {
	kind := services.KindOf(err)
	status := statusForKind(kind)
	message := services.MessageOf(err)

	switch kind {
	case services.KindInternal:
		log.Printf("❌ %s %s: %v", c.Request.Method, c.FullPath(), err)
	case services.KindAuthorization, services.KindDependency:
		log.Printf("%s %s denied (%s): %v", c.Request.Method, c.FullPath(), kind, err)
	}

	c.JSON(status, gin.H{"error": message, "kind": kind})
}
