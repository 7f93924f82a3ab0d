package services

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"photo-qc-api/models"

	"gorm.io/gorm"
)

// PhotoUpload is the captured file plus what the device reported about it.
type PhotoUpload struct {
	Filename       string             `json:"filename" validate:"required,max=255"`
	ContentType    string             `json:"content_type"`
	Data           []byte             `json:"-"`
	Fingerprint    models.Fingerprint `json:"fingerprint"`
	Latitude       *float64           `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude      *float64           `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	AccuracyMeters *float64           `json:"accuracy_m" validate:"omitempty,gte=0"`
}

type SubmitInput struct {
	Slot  models.Slot
	Photo PhotoUpload
}

type ResubmitInput struct {
	PreviousID uint
	Photo      PhotoUpload
	Comment    string
}

// LifecycleDeps are the external collaborators of the lifecycle engine.
// Codes, Events and Notifier are optional.
type LifecycleDeps struct {
	Content  ContentStore
	Codes    CodeProvider
	Events   EventPublisher
	Notifier Notifier
}

// LifecycleService drives a submission through pending -> approved | qc_required | nc and
// creates retakes that chain back to the rejected attempt.
type LifecycleService struct {
	db       *gorm.DB
	access   *AccessService
	audit    *AuditService
	content  ContentStore
	codes    CodeProvider
	events   EventPublisher
	notifier Notifier
}

func NewLifecycleService(db *gorm.DB, access *AccessService, audit *AuditService, deps LifecycleDeps) *LifecycleService {
	s := &LifecycleService{
		db:       db,
		access:   access,
		audit:    audit,
		content:  deps.Content,
		codes:    deps.Codes,
		events:   deps.Events,
		notifier: deps.Notifier,
	}
	if s.codes == nil {
		s.codes = InitialsCodeProvider{}
	}
	if s.events == nil {
		s.events = NoopEventPublisher{}
	}
	return s
}

func (s *LifecycleService) validatePhoto(photo *PhotoUpload) error {
	if len(photo.Data) == 0 {
		return validationError("photo file is required")
	}
	if err := validateStruct(photo); err != nil {
		return err
	}
	if photo.ContentType == "" {
		photo.ContentType = http.DetectContentType(photo.Data)
	}
	return nil
}

// Submit stores the first attempt for an empty slot.
func (s *LifecycleService) Submit(ctx context.Context, caller Identity, in SubmitInput) (*models.PhotoSubmission, error) {
	if err := caller.validate(); err != nil {
		return nil, err
	}
	slot := in.Slot
	if stage, err := models.ParseExecutionStage(string(slot.ExecutionStage)); err == nil {
		slot.ExecutionStage = stage
	}
	if err := validateStruct(slot); err != nil {
		return nil, err
	}
	photo := in.Photo
	if err := s.validatePhoto(&photo); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	checkpoint, err := findCheckpoint(db, slot.CheckpointID)
	if err != nil {
		return nil, err
	}
	if _, err := findSubsection(db, slot.SubsectionKey()); err != nil {
		return nil, err
	}
	if err := s.access.requireAccess(ctx, caller, slot.SubsectionKey()); err != nil {
		return nil, err
	}

	width, height, err := InspectImage(photo.Data)
	if err != nil {
		return nil, err
	}

	// Fail fast before paying for the upload; both checks run again next to the insert.
	if err := checkDuplicateFingerprint(db, photo.Fingerprint); err != nil {
		return nil, err
	}
	if err := checkSlotFree(db, slot); err != nil {
		return nil, err
	}

	key := contentKey(s.codes, checkpoint, slot, photo.Filename)
	url, err := s.putContent(ctx, key, photo)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	submission := s.newSubmission(slot, photo, caller, key, url, width, height, now)

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := checkDuplicateFingerprint(tx, photo.Fingerprint); err != nil {
			return err
		}
		if err := checkSlotFree(tx, slot); err != nil {
			return err
		}
		if err := tx.Create(submission).Error; err != nil {
			return fmt.Errorf("failed to save submission: %w", err)
		}
		return nil
	})
	if err != nil {
		s.discardContent(ctx, key)
		return nil, err
	}

	log.Printf("photo submission %d created for %s/%s checkpoint %d (%s #%d) by %s",
		submission.SubmissionID, slot.RouteID, slot.SubsectionID, slot.CheckpointID,
		slot.ExecutionStage, slot.PhotoIndex, caller.NormalizedEmail())
	s.publish(ctx, newSubmissionEvent(EventSubmissionCreated, submission, caller))
	return submission, nil
}

// Resubmit stores a retake for a rejected submission and attaches the comment to the retake.
func (s *LifecycleService) Resubmit(ctx context.Context, caller Identity, in ResubmitInput) (*models.PhotoSubmission, error) {
	if err := caller.validate(); err != nil {
		return nil, err
	}
	comment, err := s.audit.NormalizeText(in.Comment)
	if err != nil {
		return nil, validationError("A comment is required when resubmitting a photo")
	}
	photo := in.Photo
	if err := s.validatePhoto(&photo); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	previous, err := findSubmission(db, in.PreviousID)
	if err != nil {
		return nil, err
	}
	if err := s.access.requireAccess(ctx, caller, previous.SubsectionKey()); err != nil {
		return nil, err
	}
	if err := checkResubmittable(previous); err != nil {
		return nil, err
	}
	superseded, err := hasResubmission(db, previous.SubmissionID)
	if err != nil {
		return nil, err
	}
	if superseded {
		return nil, conflictError("Submission %d has already been resubmitted", previous.SubmissionID)
	}

	width, height, err := InspectImage(photo.Data)
	if err != nil {
		return nil, err
	}
	if err := checkDuplicateFingerprint(db, photo.Fingerprint); err != nil {
		return nil, err
	}

	checkpoint, err := findCheckpoint(db, previous.CheckpointID)
	if err != nil {
		return nil, err
	}
	slot := previous.Slot()
	key := contentKey(s.codes, checkpoint, slot, photo.Filename)
	url, err := s.putContent(ctx, key, photo)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	next := s.newSubmission(slot, photo, caller, key, url, width, height, now)
	previousID := previous.SubmissionID
	next.ResubmissionOfID = &previousID

	err = db.Transaction(func(tx *gorm.DB) error {
		// Serializes with Review on the parent row and re-asserts the rejected status.
		touched := tx.Model(&models.PhotoSubmission{}).
			Where("submission_id = ? AND status IN ?", previousID,
				[]string{string(models.StatusQCRequired), string(models.StatusNC)}).
			Update("updated_at", now)
		if touched.Error != nil {
			return fmt.Errorf("failed to lock previous submission: %w", touched.Error)
		}
		if touched.RowsAffected == 0 {
			return conflictError("Submission %d is no longer awaiting a retake", previousID)
		}
		superseded, err := hasResubmission(tx, previousID)
		if err != nil {
			return err
		}
		if superseded {
			return conflictError("Submission %d has already been resubmitted", previousID)
		}
		if err := checkDuplicateFingerprint(tx, photo.Fingerprint); err != nil {
			return err
		}
		if err := tx.Create(next).Error; err != nil {
			if isUniqueViolation(err) {
				return conflictError("Submission %d has already been resubmitted", previousID)
			}
			return fmt.Errorf("failed to save resubmission: %w", err)
		}
		_, err = s.audit.appendComment(tx, next.SubmissionID, caller, models.CommentKindResubmit, comment)
		return err
	})
	if err != nil {
		s.discardContent(ctx, key)
		return nil, err
	}

	log.Printf("photo submission %d resubmitted as %d by %s", previousID, next.SubmissionID, caller.NormalizedEmail())
	s.publish(ctx, newSubmissionEvent(EventSubmissionResubmitted, next, caller))
	return next, nil
}

func checkResubmittable(previous *models.PhotoSubmission) error {
	switch {
	case previous.Status.IsTerminal():
		return conflictError("Submission %d is approved and cannot be resubmitted", previous.SubmissionID)
	case !previous.Status.IsRejected():
		return conflictError("Only photos marked qc_required or nc can be resubmitted (submission %d is %s)",
			previous.SubmissionID, previous.Status)
	}
	return nil
}

func (s *LifecycleService) newSubmission(slot models.Slot, photo PhotoUpload, caller Identity, key, url string, width, height int, now time.Time) *models.PhotoSubmission {
	return &models.PhotoSubmission{
		RouteID:          slot.RouteID,
		SubsectionID:     slot.SubsectionID,
		CheckpointID:     slot.CheckpointID,
		ExecutionStage:   slot.ExecutionStage,
		PhotoIndex:       slot.PhotoIndex,
		StorageKey:       key,
		ContentURL:       url,
		Filename:         photo.Filename,
		ByteSize:         int64(len(photo.Data)),
		Width:            width,
		Height:           height,
		Latitude:         photo.Latitude,
		Longitude:        photo.Longitude,
		AccuracyMeters:   photo.AccuracyMeters,
		FileOriginalSize: photo.Fingerprint.OriginalSize,
		FileLastModified: photo.Fingerprint.LastModified,
		Status:           models.StatusPending,
		SubmittedByID:    caller.UserID,
		SubmittedByEmail: caller.NormalizedEmail(),
		SubmittedByName:  caller.DisplayName,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (s *LifecycleService) putContent(ctx context.Context, key string, photo PhotoUpload) (string, error) {
	if s.content == nil {
		return "", dependencyError("Storage is temporarily unavailable, please try again", fmt.Errorf("no content store configured"))
	}
	url, err := s.content.Put(ctx, key, photo.Data, photo.ContentType)
	if err != nil {
		log.Printf("content upload failed for %s: %v", key, err)
		return "", dependencyError("Storage is temporarily unavailable, please try again", err)
	}
	return url, nil
}

// discardContent removes an object whose row was never committed.
func (s *LifecycleService) discardContent(ctx context.Context, key string) {
	if s.content == nil {
		return
	}
	dctx, cancel := detachedContext(ctx)
	defer cancel()
	if err := s.content.Delete(dctx, key); err != nil {
		log.Printf("Warning: failed to discard uploaded content %s: %v", key, err)
	}
}

func (s *LifecycleService) publish(ctx context.Context, event SubmissionEvent) {
	pctx, cancel := detachedContext(ctx)
	defer cancel()
	if err := s.events.Publish(pctx, event); err != nil {
		log.Printf("Warning: failed to publish %s for submission %d: %v", event.Type, event.SubmissionID, err)
	}
}
