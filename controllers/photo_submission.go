package controllers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"photo-qc-api/models"
	"photo-qc-api/services"

	"github.com/gin-gonic/gin"
)

// GetAllowedSubsections lists the subsections the caller may work on.
func (h *Handlers) GetAllowedSubsections(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	keys, err := h.Access.AllowedKeys(c.Request.Context(), caller.Email, caller.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	list := keys.Keys()
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"subsections": list,
		"total":       len(list),
	})
}

// ListSubmissions handles GET /submissions with slot and status filters.
func (h *Handlers) ListSubmissions(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	filter := services.SubmissionFilter{
		RouteID:      strings.TrimSpace(c.Query("route_id")),
		SubsectionID: strings.TrimSpace(c.Query("subsection_id")),
		Stage:        strings.TrimSpace(c.Query("stage")),
		Status:       strings.TrimSpace(c.Query("status")),
		LatestOnly:   c.DefaultQuery("latest", "true") != "false",
		Limit:        parsePositive(c.Query("limit"), 0),
		Offset:       parsePositive(c.Query("offset"), 0),
	}
	if raw := strings.TrimSpace(c.Query("checkpoint_id")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid checkpoint_id"})
			return
		}
		filter.CheckpointID = uint(id)
	}

	submissions, err := h.Query.ListSubmissions(c.Request.Context(), caller, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"submissions": submissions,
		"total":       len(submissions),
	})
}

// GetSubmission returns one submission with its comments.
func (h *Handlers) GetSubmission(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	submission, err := h.Query.GetSubmission(c.Request.Context(), caller, id)
	if err != nil {
		respondError(c, err)
		return
	}
	superseded, err := h.Query.IsSuperseded(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"submission": submission,
		"superseded": superseded,
	})
}

// GetSubmissionContent streams the stored photo.
func (h *Handlers) GetSubmissionContent(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	submission, data, err := h.Query.GetContent(c.Request.Context(), caller, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", submission.Filename))
	c.Data(http.StatusOK, http.DetectContentType(data), data)
}

// GetSubmissionHistory returns the retake chain ending at :id, oldest first.
func (h *Handlers) GetSubmissionHistory(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	history, err := h.History.History(c.Request.Context(), caller, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"history": history,
		"total":   len(history),
	})
}

// CreateSubmission handles the multipart upload of a first attempt.
func (h *Handlers) CreateSubmission(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	checkpointID, err := strconv.ParseUint(strings.TrimSpace(c.PostForm("checkpoint_id")), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid checkpoint_id"})
		return
	}
	photoIndex, err := strconv.Atoi(strings.TrimSpace(c.DefaultPostForm("photo_index", "1")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid photo_index"})
		return
	}

	photo, ok := h.readPhoto(c)
	if !ok {
		return
	}

	submission, err := h.Lifecycle.Submit(c.Request.Context(), caller, services.SubmitInput{
		Slot: models.Slot{
			RouteID:        strings.TrimSpace(c.PostForm("route_id")),
			SubsectionID:   strings.TrimSpace(c.PostForm("subsection_id")),
			CheckpointID:   uint(checkpointID),
			ExecutionStage: models.ExecutionStage(strings.TrimSpace(c.PostForm("execution_stage"))),
			PhotoIndex:     photoIndex,
		},
		Photo: photo,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"message":    "Photo submitted for review",
		"submission": submission,
	})
}

// ResubmitSubmission uploads a retake for a rejected photo.
func (h *Handlers) ResubmitSubmission(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	photo, ok := h.readPhoto(c)
	if !ok {
		return
	}

	submission, err := h.Lifecycle.Resubmit(c.Request.Context(), caller, services.ResubmitInput{
		PreviousID: id,
		Photo:      photo,
		Comment:    c.PostForm("comment"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"message":    "Retake submitted for review",
		"submission": submission,
	})
}

type reviewRequest struct {
	Action  string `json:"action" binding:"required"`
	Comment string `json:"comment"`
}

// ReviewSubmission applies approve / qc_required / nc to one photo.
func (h *Handlers) ReviewSubmission(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	submission, err := h.Lifecycle.Review(c.Request.Context(), caller, services.ReviewInput{
		SubmissionID: id,
		Action:       req.Action,
		Comment:      req.Comment,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    fmt.Sprintf("Submission marked %s", submission.Status),
		"submission": submission,
	})
}

type batchReviewRequest struct {
	SubmissionIDs []uint `json:"submission_ids" binding:"required,min=1"`
	Action        string `json:"action" binding:"required"`
	Comment       string `json:"comment"`
}

// ReviewSubmissionsBatch applies one action to many photos and reports partial success.
func (h *Handlers) ReviewSubmissionsBatch(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var req batchReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	result, err := h.Lifecycle.ReviewBatch(c.Request.Context(), caller, services.BatchReviewInput{
		SubmissionIDs: req.SubmissionIDs,
		Action:        req.Action,
		Comment:       req.Comment,
	})
	if err != nil {
		if result == nil {
			respondError(c, err)
			return
		}
		c.JSON(statusForKind(services.KindOf(err)), gin.H{
			"success": false,
			"error":   services.MessageOf(err),
			"result":  result,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"partial": len(result.Failed) > 0,
		"result":  result,
	})
}

// DeleteSubmission removes an unapproved chain head (admin only).
func (h *Handlers) DeleteSubmission(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.Lifecycle.Delete(c.Request.Context(), caller, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Submission deleted"})
}

func (h *Handlers) readPhoto(c *gin.Context) (services.PhotoUpload, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Photo file is required"})
		return services.PhotoUpload{}, false
	}
	if h.MaxUploadBytes > 0 && fh.Size > h.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Photo file is too large"})
		return services.PhotoUpload{}, false
	}
	file, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to read photo file"})
		return services.PhotoUpload{}, false
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to read photo file"})
		return services.PhotoUpload{}, false
	}

	photo := services.PhotoUpload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}

	var parseErr error
	photo.Fingerprint.OriginalSize, parseErr = parseInt64Form(c, "file_original_size", parseErr)
	photo.Fingerprint.LastModified, parseErr = parseInt64Form(c, "file_last_modified", parseErr)
	photo.Latitude, parseErr = parseFloatForm(c, "latitude", parseErr)
	photo.Longitude, parseErr = parseFloatForm(c, "longitude", parseErr)
	photo.AccuracyMeters, parseErr = parseFloatForm(c, "accuracy_m", parseErr)
	if parseErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": parseErr.Error()})
		return services.PhotoUpload{}, false
	}
	return photo, true
}

func parseInt64Form(c *gin.Context, field string, prev error) (int64, error) {
	raw := strings.TrimSpace(c.PostForm(field))
	if prev != nil || raw == "" {
		return 0, prev
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("Invalid %s", field)
	}
	return n, nil
}

func parseFloatForm(c *gin.Context, field string, prev error) (*float64, error) {
	raw := strings.TrimSpace(c.PostForm(field))
	if prev != nil || raw == "" {
		return nil, prev
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("Invalid %s", field)
	}
	return &f, nil
}

func parsePositive(q string, def int) int {
	if q == "" {
		return def
	}
	n, err := strconv.Atoi(q)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
