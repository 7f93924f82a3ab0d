package services

import (
	"errors"
	"fmt"

	"photo-qc-api/models"

	"gorm.io/gorm"
)

// Row-level helpers shared by the services. Each takes the *gorm.DB it should run on so the
// same helper works inside and outside a transaction.

func findSubmission(db *gorm.DB, id uint) (*models.PhotoSubmission, error) {
	if id == 0 {
		return nil, validationError("submission_id is required")
	}
	var submission models.PhotoSubmission
	if err := db.Where("submission_id = ?", id).First(&submission).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("Submission %d not found", id)
		}
		return nil, fmt.Errorf("failed to load submission %d: %w", id, err)
	}
	return &submission, nil
}

// hasResubmission reports whether some submission already points back at id.
func hasResubmission(db *gorm.DB, id uint) (bool, error) {
	var count int64
	if err := db.Model(&models.PhotoSubmission{}).
		Where("resubmission_of_id = ?", id).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check resubmissions of %d: %w", id, err)
	}
	return count > 0, nil
}

func findCheckpoint(db *gorm.DB, id uint) (*models.Checkpoint, error) {
	var checkpoint models.Checkpoint
	if err := db.Preload("Entity").Where("checkpoint_id = ?", id).First(&checkpoint).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("Checkpoint %d not found", id)
		}
		return nil, fmt.Errorf("failed to load checkpoint %d: %w", id, err)
	}
	return &checkpoint, nil
}

func findSubsection(db *gorm.DB, key models.SubsectionKey) (*models.Subsection, error) {
	var subsection models.Subsection
	if err := db.Where("route_id = ? AND subsection_id = ?", key.RouteID, key.SubsectionID).
		First(&subsection).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("Subsection %s/%s not found", key.RouteID, key.SubsectionID)
		}
		return nil, fmt.Errorf("failed to load subsection %s/%s: %w", key.RouteID, key.SubsectionID, err)
	}
	return &subsection, nil
}

// checkDuplicateFingerprint fails with a conflict naming the first upload of the same file.
func checkDuplicateFingerprint(db *gorm.DB, fp models.Fingerprint) error {
	if fp.IsZero() {
		return nil
	}
	var existing models.PhotoSubmission
	err := db.Where("file_original_size = ? AND file_last_modified = ?", fp.OriginalSize, fp.LastModified).
		Order("submission_id ASC").
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check duplicate photos: %w", err)
	}
	return conflictError("This photo was already uploaded for %s", describeSlot(db, &existing))
}

// checkSlotFree rejects a fresh upload into a slot that already holds a chain.
func checkSlotFree(db *gorm.DB, slot models.Slot) error {
	var existing models.PhotoSubmission
	err := db.Where("route_id = ? AND subsection_id = ? AND checkpoint_id = ? AND execution_stage = ? AND photo_index = ?",
		slot.RouteID, slot.SubsectionID, slot.CheckpointID, string(slot.ExecutionStage), slot.PhotoIndex).
		Order("submission_id ASC").
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check slot: %w", err)
	}
	return conflictError("Photo %d for this checkpoint and stage already exists (submission %d); resubmit it instead",
		slot.PhotoIndex, existing.SubmissionID)
}

// describeSlot renders route / subsection / entity / checkpoint for user-facing messages.
func describeSlot(db *gorm.DB, submission *models.PhotoSubmission) string {
	entityName := "unknown entity"
	checkpointName := fmt.Sprintf("checkpoint %d", submission.CheckpointID)
	if checkpoint, err := findCheckpoint(db, submission.CheckpointID); err == nil {
		checkpointName = checkpoint.Name
		if checkpoint.Entity != nil {
			entityName = checkpoint.Entity.Name
		}
	}
	return fmt.Sprintf("route %s / subsection %s / entity %s / checkpoint %s (%s #%d)",
		submission.RouteID, submission.SubsectionID, entityName, checkpointName,
		submission.ExecutionStage, submission.PhotoIndex)
}

// latestOnly keeps chain heads: rows no other row names as resubmission_of_id.
func latestOnly(db *gorm.DB) *gorm.DB {
	return db.Where("NOT EXISTS (SELECT 1 FROM photo_submissions AS child WHERE child.resubmission_of_id = photo_submissions.submission_id)")
}

func orderedComments(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC, comment_id ASC")
}

func loadComments(db *gorm.DB, ids []uint) (map[uint][]models.PhotoComment, error) {
	result := make(map[uint][]models.PhotoComment, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var comments []models.PhotoComment
	if err := orderedComments(db.Where("submission_id IN ?", ids)).Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("failed to load comments: %w", err)
	}
	for _, c := range comments {
		result[c.SubmissionID] = append(result[c.SubmissionID], c)
	}
	return result, nil
}
