package controllers

import (
	"net/http"
	"strings"

	"photo-qc-api/models"

	"github.com/gin-gonic/gin"
)

func subsectionKeyParam(c *gin.Context) models.SubsectionKey {
	return models.SubsectionKey{
		RouteID:      strings.TrimSpace(c.Param("route_id")),
		SubsectionID: strings.TrimSpace(c.Param("subsection_id")),
	}
}

// GetSubsectionGrants lists the allow-list of a subsection.
func (h *Handlers) GetSubsectionGrants(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	key := subsectionKeyParam(c)
	grants, err := h.Access.ListGrants(c.Request.Context(), caller, key)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"subsection": key,
		"restricted": len(grants) > 0,
		"grants":     grants,
	})
}

// ReplaceSubsectionGrants overwrites the allow-list; an empty list reopens the subsection.
func (h *Handlers) ReplaceSubsectionGrants(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var req struct {
		Emails []string `json:"emails"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	key := subsectionKeyParam(c)
	grants, err := h.Access.ReplaceGrants(c.Request.Context(), caller, key, req.Emails)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"subsection": key,
		"restricted": len(grants) > 0,
		"grants":     grants,
	})
}
