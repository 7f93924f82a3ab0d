package models

import (
	"fmt"
	"strings"
	"time"
)

type SubmissionStatus string

const (
	StatusPending    SubmissionStatus = "pending"
	StatusApproved   SubmissionStatus = "approved"
	StatusQCRequired SubmissionStatus = "qc_required"
	StatusNC         SubmissionStatus = "nc"
)

// ParseSubmissionStatus accepts the stored value in any case.
func ParseSubmissionStatus(raw string) (SubmissionStatus, error) {
	switch s := SubmissionStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusPending, StatusApproved, StatusQCRequired, StatusNC:
		return s, nil
	}
	return "", fmt.Errorf("unknown submission status %q", raw)
}

// IsRejected reports whether a retake may be submitted against this status.
func (s SubmissionStatus) IsRejected() bool {
	return s == StatusQCRequired || s == StatusNC
}

func (s SubmissionStatus) IsTerminal() bool {
	return s == StatusApproved
}

type ExecutionStage string

const (
	StageBefore  ExecutionStage = "Before"
	StageOngoing ExecutionStage = "Ongoing"
	StageAfter   ExecutionStage = "After"
)

// ParseExecutionStage is case-insensitive and returns the canonical spelling.
func ParseExecutionStage(raw string) (ExecutionStage, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "before":
		return StageBefore, nil
	case "ongoing":
		return StageOngoing, nil
	case "after":
		return StageAfter, nil
	}
	return "", fmt.Errorf("unknown execution stage %q", raw)
}

// Slot is the identity a photo fills. It is derived, never stored on its own.
type Slot struct {
	RouteID        string         `json:"route_id" validate:"required,max=64"`
	SubsectionID   string         `json:"subsection_id" validate:"required,max=64"`
	CheckpointID   uint           `json:"checkpoint_id" validate:"required"`
	ExecutionStage ExecutionStage `json:"execution_stage" validate:"required,oneof=Before Ongoing After"`
	PhotoIndex     int            `json:"photo_index" validate:"gte=1"`
}

func (s Slot) SubsectionKey() SubsectionKey {
	return SubsectionKey{RouteID: s.RouteID, SubsectionID: s.SubsectionID}
}

// Fingerprint identifies the underlying file on the capturing device.
type Fingerprint struct {
	OriginalSize int64 `json:"file_original_size" validate:"gte=0"`
	LastModified int64 `json:"file_last_modified" validate:"gte=0"`
}

// IsZero is true when the client did not send a fingerprint.
func (f Fingerprint) IsZero() bool {
	return f.OriginalSize == 0 && f.LastModified == 0
}

// PhotoSubmission is one captured photo attempt for a slot.
type PhotoSubmission struct {
	SubmissionID uint `gorm:"primaryKey;column:submission_id" json:"submission_id"`

	RouteID        string         `gorm:"column:route_id" json:"route_id"`
	SubsectionID   string         `gorm:"column:subsection_id" json:"subsection_id"`
	CheckpointID   uint           `gorm:"column:checkpoint_id" json:"checkpoint_id"`
	ExecutionStage ExecutionStage `gorm:"column:execution_stage" json:"execution_stage"`
	PhotoIndex     int            `gorm:"column:photo_index" json:"photo_index"`

	StorageKey       string   `gorm:"column:storage_key" json:"storage_key"`
	ContentURL       string   `gorm:"column:content_url" json:"content_url"`
	Filename         string   `gorm:"column:filename" json:"filename"`
	ByteSize         int64    `gorm:"column:byte_size" json:"byte_size"`
	Width            int      `gorm:"column:width" json:"width"`
	Height           int      `gorm:"column:height" json:"height"`
	Latitude         *float64 `gorm:"column:latitude" json:"latitude,omitempty"`
	Longitude        *float64 `gorm:"column:longitude" json:"longitude,omitempty"`
	AccuracyMeters   *float64 `gorm:"column:accuracy_m" json:"accuracy_m,omitempty"`
	FileOriginalSize int64    `gorm:"column:file_original_size" json:"file_original_size"`
	FileLastModified int64    `gorm:"column:file_last_modified" json:"file_last_modified"`

	Status           SubmissionStatus `gorm:"column:status" json:"status"`
	SubmittedByID    *int             `gorm:"column:submitted_by_id" json:"submitted_by_id"`
	SubmittedByEmail string           `gorm:"column:submitted_by_email" json:"submitted_by_email"`
	SubmittedByName  string           `gorm:"column:submitted_by_name" json:"submitted_by_name"`
	ReviewedByID     *int             `gorm:"column:reviewed_by_id" json:"reviewed_by_id"`
	ReviewedByEmail  *string          `gorm:"column:reviewed_by_email" json:"reviewed_by_email"`
	ReviewedByName   *string          `gorm:"column:reviewed_by_name" json:"reviewed_by_name"`
	ReviewedAt       *time.Time       `gorm:"column:reviewed_at" json:"reviewed_at"`

	ResubmissionOfID *uint `gorm:"column:resubmission_of_id" json:"resubmission_of_id"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`

	// Relations
	Comments []PhotoComment `gorm:"foreignKey:SubmissionID;references:SubmissionID" json:"comments,omitempty"`
}

func (PhotoSubmission) TableName() string {
	return "photo_submissions"
}

func (p *PhotoSubmission) Slot() Slot {
	return Slot{
		RouteID:        p.RouteID,
		SubsectionID:   p.SubsectionID,
		CheckpointID:   p.CheckpointID,
		ExecutionStage: p.ExecutionStage,
		PhotoIndex:     p.PhotoIndex,
	}
}

func (p *PhotoSubmission) SubsectionKey() SubsectionKey {
	return SubsectionKey{RouteID: p.RouteID, SubsectionID: p.SubsectionID}
}

func (p *PhotoSubmission) Fingerprint() Fingerprint {
	return Fingerprint{OriginalSize: p.FileOriginalSize, LastModified: p.FileLastModified}
}
