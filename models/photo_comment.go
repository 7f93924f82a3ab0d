package models

import "time"

type CommentKind string

const (
	CommentKindReview   CommentKind = "review"
	CommentKindResubmit CommentKind = "resubmit"
	CommentKindNote     CommentKind = "note"
)

// PhotoComment is an append-only note on one submission.
type PhotoComment struct {
	CommentID    uint        `gorm:"primaryKey;column:comment_id" json:"comment_id"`
	SubmissionID uint        `gorm:"column:submission_id" json:"submission_id"`
	Kind         CommentKind `gorm:"column:kind" json:"kind"`
	AuthorID     *int        `gorm:"column:author_id" json:"author_id"`
	AuthorEmail  string      `gorm:"column:author_email" json:"author_email"`
	AuthorName   string      `gorm:"column:author_name" json:"author_name"`
	Body         string      `gorm:"column:body" json:"text"`
	CreatedAt    time.Time   `gorm:"column:created_at" json:"created_at"`
}

func (PhotoComment) TableName() string {
	return "photo_comments"
}
