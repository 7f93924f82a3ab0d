package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetSubmissionComments lists the comment trail of a submission.
func (h *Handlers) GetSubmissionComments(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	comments, err := h.Audit.ListComments(c.Request.Context(), caller, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"comments": comments,
		"total":    len(comments),
	})
}

// AddSubmissionComment appends a discussion note.
func (h *Handlers) AddSubmissionComment(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Comment text is required"})
		return
	}
	comment, err := h.Audit.AddComment(c.Request.Context(), caller, id, req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "comment": comment})
}
