package services

import (
	"context"
	"fmt"

	"photo-qc-api/models"

	"gorm.io/gorm"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// SubmissionFilter narrows a listing. Zero values mean "any".
type SubmissionFilter struct {
	RouteID      string
	SubsectionID string
	CheckpointID uint
	Stage        string
	Status       string
	LatestOnly   bool
	Limit        int
	Offset       int
}

// QueryService is the read side used by the UI and reports.
type QueryService struct {
	db      *gorm.DB
	access  *AccessService
	content ContentStore
}

func NewQueryService(db *gorm.DB, access *AccessService, content ContentStore) *QueryService {
	return &QueryService{db: db, access: access, content: content}
}

// ListSubmissions is scoped to the caller's allowed subsections, admins included.
func (s *QueryService) ListSubmissions(ctx context.Context, caller Identity, filter SubmissionFilter) ([]models.PhotoSubmission, error) {
	if err := caller.validate(); err != nil {
		return nil, err
	}
	allowed, err := s.access.AllowedKeys(ctx, caller.Email, caller.Role)
	if err != nil {
		return nil, err
	}

	keys := make([]models.SubsectionKey, 0, len(allowed))
	for _, key := range allowed.Keys() {
		if filter.RouteID != "" && key.RouteID != filter.RouteID {
			continue
		}
		if filter.SubsectionID != "" && key.SubsectionID != filter.SubsectionID {
			continue
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return []models.PhotoSubmission{}, nil
	}

	scope := s.db.Where("route_id = ? AND subsection_id = ?", keys[0].RouteID, keys[0].SubsectionID)
	for _, key := range keys[1:] {
		scope = scope.Or("route_id = ? AND subsection_id = ?", key.RouteID, key.SubsectionID)
	}
	query := s.db.WithContext(ctx).Model(&models.PhotoSubmission{}).Where(scope)

	if filter.CheckpointID != 0 {
		query = query.Where("checkpoint_id = ?", filter.CheckpointID)
	}
	if filter.Stage != "" {
		stage, err := models.ParseExecutionStage(filter.Stage)
		if err != nil {
			return nil, validationError("%s", err.Error())
		}
		query = query.Where("execution_stage = ?", string(stage))
	}
	if filter.Status != "" {
		status, err := models.ParseSubmissionStatus(filter.Status)
		if err != nil {
			return nil, validationError("%s", err.Error())
		}
		query = query.Where("status = ?", string(status))
	}
	if filter.LatestOnly {
		query = latestOnly(query)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var submissions []models.PhotoSubmission
	if err := query.Order("submission_id ASC").Limit(limit).Offset(offset).Find(&submissions).Error; err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return submissions, nil
}

// GetSubmission returns one submission with its full comment trail.
func (s *QueryService) GetSubmission(ctx context.Context, caller Identity, id uint) (*models.PhotoSubmission, error) {
	db := s.db.WithContext(ctx)
	submission, err := findSubmission(db, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.requireAccess(ctx, caller, submission.SubsectionKey()); err != nil {
		return nil, err
	}
	var comments []models.PhotoComment
	if err := orderedComments(db.Where("submission_id = ?", id)).Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("failed to load comments: %w", err)
	}
	submission.Comments = comments
	return submission, nil
}

// IsSuperseded reports whether a retake already points at the submission.
func (s *QueryService) IsSuperseded(ctx context.Context, id uint) (bool, error) {
	return hasResubmission(s.db.WithContext(ctx), id)
}

// GetContent returns the stored photo bytes after the usual access check.
func (s *QueryService) GetContent(ctx context.Context, caller Identity, id uint) (*models.PhotoSubmission, []byte, error) {
	submission, err := findSubmission(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, nil, err
	}
	if err := s.access.requireAccess(ctx, caller, submission.SubsectionKey()); err != nil {
		return nil, nil, err
	}
	if s.content == nil {
		return nil, nil, dependencyError("Storage is temporarily unavailable, please try again", fmt.Errorf("no content store configured"))
	}
	data, err := s.content.Get(ctx, submission.StorageKey)
	if err != nil {
		return nil, nil, dependencyError("Storage is temporarily unavailable, please try again", err)
	}
	return submission, data, nil
}
