package services

import (
	"context"
	"fmt"
	"time"

	"photo-qc-api/models"
	"photo-qc-api/utils"

	"gorm.io/gorm"
)

const defaultMaxCommentChars = 2000

// AuditService owns the append-only comment trail. There is no edit or delete.
type AuditService struct {
	db       *gorm.DB
	access   *AccessService
	maxChars int
}

func NewAuditService(db *gorm.DB, access *AccessService, maxChars int) *AuditService {
	if maxChars <= 0 {
		maxChars = defaultMaxCommentChars
	}
	return &AuditService{db: db, access: access, maxChars: maxChars}
}

// NormalizeText trims, strips null bytes and caps text. Empty text is a validation error.
func (s *AuditService) NormalizeText(text string) (string, error) {
	cleaned := utils.TruncateRunes(utils.SanitizeInput(text), s.maxChars)
	if cleaned == "" {
		return "", validationError("comment text is required")
	}
	return cleaned, nil
}

// appendComment inserts a comment on tx. Callers pass already-normalized text.
func (s *AuditService) appendComment(tx *gorm.DB, submissionID uint, author Identity, kind models.CommentKind, text string) (*models.PhotoComment, error) {
	comment := models.PhotoComment{
		SubmissionID: submissionID,
		Kind:         kind,
		AuthorID:     author.UserID,
		AuthorEmail:  author.NormalizedEmail(),
		AuthorName:   author.DisplayName,
		Body:         text,
		CreatedAt:    time.Now(),
	}
	if err := tx.Create(&comment).Error; err != nil {
		return nil, fmt.Errorf("failed to save comment: %w", err)
	}
	return &comment, nil
}

// AddComment appends a free-form note. Superseded submissions are read-only.
func (s *AuditService) AddComment(ctx context.Context, caller Identity, submissionID uint, text string) (*models.PhotoComment, error) {
	body, err := s.NormalizeText(text)
	if err != nil {
		return nil, err
	}

	submission, err := findSubmission(s.db.WithContext(ctx), submissionID)
	if err != nil {
		return nil, err
	}
	if err := s.access.requireAccess(ctx, caller, submission.SubsectionKey()); err != nil {
		return nil, err
	}

	var comment *models.PhotoComment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		superseded, err := hasResubmission(tx, submissionID)
		if err != nil {
			return err
		}
		if superseded {
			return conflictError("Submission %d has been superseded by a retake; comment on the latest photo instead", submissionID)
		}
		comment, err = s.appendComment(tx, submissionID, caller, models.CommentKindNote, body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// ListComments returns the trail of one submission, oldest first.
func (s *AuditService) ListComments(ctx context.Context, caller Identity, submissionID uint) ([]models.PhotoComment, error) {
	db := s.db.WithContext(ctx)
	submission, err := findSubmission(db, submissionID)
	if err != nil {
		return nil, err
	}
	if err := s.access.requireAccess(ctx, caller, submission.SubsectionKey()); err != nil {
		return nil, err
	}

	var comments []models.PhotoComment
	if err := orderedComments(db.Where("submission_id = ?", submissionID)).Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("failed to load comments: %w", err)
	}
	return comments, nil
}
