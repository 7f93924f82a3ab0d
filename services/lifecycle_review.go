package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"photo-qc-api/models"

	"gorm.io/gorm"
)

type ReviewAction string

const (
	ActionApprove    ReviewAction = "approve"
	ActionQCRequired ReviewAction = "qc_required"
	ActionNC         ReviewAction = "nc"
)

func ParseReviewAction(raw string) (ReviewAction, error) {
	switch a := ReviewAction(strings.ToLower(strings.TrimSpace(raw))); a {
	case ActionApprove, ActionQCRequired, ActionNC:
		return a, nil
	case "approved":
		return ActionApprove, nil
	}
	return "", validationError("action must be one of: approve, qc_required, nc")
}

func (a ReviewAction) TargetStatus() models.SubmissionStatus {
	switch a {
	case ActionApprove:
		return models.StatusApproved
	case ActionQCRequired:
		return models.StatusQCRequired
	default:
		return models.StatusNC
	}
}

// RequiresComment is true for the rejecting actions.
func (a ReviewAction) RequiresComment() bool {
	return a == ActionQCRequired || a == ActionNC
}

type ReviewInput struct {
	SubmissionID uint
	Action       string
	Comment      string
}

type BatchReviewInput struct {
	SubmissionIDs []uint
	Action        string
	Comment       string
}

type BatchItemError struct {
	SubmissionID uint      `json:"submission_id"`
	Kind         ErrorKind `json:"kind"`
	Message      string    `json:"message"`
}

// BatchResult reports which ids were reviewed and why the others were not.
type BatchResult struct {
	Succeeded []uint           `json:"succeeded"`
	Failed    []BatchItemError `json:"failed"`
}

// prepareReview checks role, action and comment before any row is touched.
func (s *LifecycleService) prepareReview(caller Identity, rawAction, rawComment string) (ReviewAction, string, error) {
	if err := caller.validate(); err != nil {
		return "", "", err
	}
	if !caller.Role.CanReview() {
		return "", "", authorizationError("Only reviewers can review photos")
	}
	action, err := ParseReviewAction(rawAction)
	if err != nil {
		return "", "", err
	}
	comment := ""
	if strings.TrimSpace(rawComment) != "" || action.RequiresComment() {
		comment, err = s.audit.NormalizeText(rawComment)
		if err != nil {
			return "", "", validationError("A comment is required when marking a photo %s", action)
		}
	}
	return action, comment, nil
}

// Review applies one review action. A rejection comment is written before the status flips,
// in the same transaction.
func (s *LifecycleService) Review(ctx context.Context, caller Identity, in ReviewInput) (*models.PhotoSubmission, error) {
	action, comment, err := s.prepareReview(caller, in.Action, in.Comment)
	if err != nil {
		return nil, err
	}
	return s.review(ctx, caller, in.SubmissionID, action, comment)
}

func (s *LifecycleService) review(ctx context.Context, caller Identity, id uint, action ReviewAction, comment string) (*models.PhotoSubmission, error) {
	db := s.db.WithContext(ctx)
	submission, err := findSubmission(db, id)
	if err != nil {
		return nil, err
	}
	if err := s.access.requireAccess(ctx, caller, submission.SubsectionKey()); err != nil {
		return nil, err
	}

	target := action.TargetStatus()
	var updated *models.PhotoSubmission
	err = db.Transaction(func(tx *gorm.DB) error {
		current, err := findSubmission(tx, id)
		if err != nil {
			return err
		}
		if current.Status.IsTerminal() {
			return conflictError("Submission %d is already approved", id)
		}
		if err := ensureNotSuperseded(tx, id); err != nil {
			return err
		}

		if comment != "" {
			if _, err := s.audit.appendComment(tx, id, caller, models.CommentKindReview, comment); err != nil {
				return err
			}
		}

		now := time.Now()
		res := tx.Model(&models.PhotoSubmission{}).
			Where("submission_id = ? AND status = ?", id, string(current.Status)).
			Updates(map[string]interface{}{
				"status":            string(target),
				"reviewed_by_id":    caller.UserID,
				"reviewed_by_email": caller.NormalizedEmail(),
				"reviewed_by_name":  caller.DisplayName,
				"reviewed_at":       now,
				"updated_at":        now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update submission: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return conflictError("Submission %d was changed by someone else, reload and try again", id)
		}
		// A retake may have been linked while we waited for the row.
		if err := ensureNotSuperseded(tx, id); err != nil {
			return err
		}

		updated, err = findSubmission(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("photo submission %d reviewed: %s -> %s by %s", id, submission.Status, target, caller.NormalizedEmail())
	s.publish(ctx, newSubmissionEvent(EventSubmissionReviewed, updated, caller))
	if action.RequiresComment() {
		s.notifyRejected(ctx, updated, comment)
	}
	return updated, nil
}

func ensureNotSuperseded(db *gorm.DB, id uint) error {
	superseded, err := hasResubmission(db, id)
	if err != nil {
		return err
	}
	if superseded {
		return conflictError("Submission %d has been superseded by a retake and can no longer be reviewed", id)
	}
	return nil
}

// ReviewBatch reviews each id independently. It fails only when every id failed.
func (s *LifecycleService) ReviewBatch(ctx context.Context, caller Identity, in BatchReviewInput) (*BatchResult, error) {
	action, comment, err := s.prepareReview(caller, in.Action, in.Comment)
	if err != nil {
		return nil, err
	}
	if len(in.SubmissionIDs) == 0 {
		return nil, validationError("submission_ids must not be empty")
	}

	result := &BatchResult{Succeeded: []uint{}, Failed: []BatchItemError{}}
	seen := make(map[uint]bool, len(in.SubmissionIDs))
	for _, id := range in.SubmissionIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		if _, err := s.review(ctx, caller, id, action, comment); err != nil {
			log.Printf("batch review of submission %d failed: %v", id, err)
			result.Failed = append(result.Failed, BatchItemError{
				SubmissionID: id,
				Kind:         KindOf(err),
				Message:      MessageOf(err),
			})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}

	if len(result.Succeeded) == 0 {
		first := result.Failed[0]
		return result, &ServiceError{
			Kind:    first.Kind,
			Message: fmt.Sprintf("None of the %d submissions could be reviewed", len(result.Failed)),
		}
	}
	return result, nil
}

// Delete removes an unapproved chain head. Content cleanup afterwards is best-effort.
func (s *LifecycleService) Delete(ctx context.Context, caller Identity, id uint) error {
	if err := caller.validate(); err != nil {
		return err
	}
	if !caller.Role.IsAdmin() {
		return authorizationError("Only administrators can delete photos")
	}

	var deleted *models.PhotoSubmission
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		submission, err := findSubmission(tx, id)
		if err != nil {
			return err
		}
		if submission.Status.IsTerminal() {
			return conflictError("Submission %d is approved and cannot be deleted", id)
		}
		superseded, err := hasResubmission(tx, id)
		if err != nil {
			return err
		}
		if superseded {
			return conflictError("Submission %d has a resubmission; only the latest photo can be deleted", id)
		}

		if err := tx.Where("submission_id = ?", id).Delete(&models.PhotoComment{}).Error; err != nil {
			return fmt.Errorf("failed to delete comments: %w", err)
		}
		res := tx.Where("submission_id = ? AND status <> ?", id, string(models.StatusApproved)).
			Delete(&models.PhotoSubmission{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete submission: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return conflictError("Submission %d was changed by someone else, reload and try again", id)
		}
		deleted = submission
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("photo submission %d deleted by %s", id, caller.NormalizedEmail())

	if s.content != nil {
		dctx, cancel := detachedContext(ctx)
		defer cancel()
		if err := s.content.Delete(dctx, deleted.StorageKey); err != nil {
			// The row deletion stands; the object is left for manual cleanup.
			log.Printf("Warning: failed to delete content %s for submission %d: %v", deleted.StorageKey, id, err)
		}
	}
	s.publish(ctx, newSubmissionEvent(EventSubmissionDeleted, deleted, caller))
	return nil
}

func (s *LifecycleService) notifyRejected(ctx context.Context, submission *models.PhotoSubmission, comment string) {
	if s.notifier == nil {
		return
	}
	nctx, cancel := detachedContext(ctx)
	defer cancel()
	if err := s.notifier.NotifyRejected(nctx, submission, comment); err != nil {
		log.Printf("Warning: failed to notify %s about submission %d: %v", submission.SubmittedByEmail, submission.SubmissionID, err)
	}
}
