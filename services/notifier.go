package services

import (
	"context"
	"fmt"
	"html"

	"photo-qc-api/models"
)

// Notifier tells the submitter that a photo needs a retake.
type Notifier interface {
	NotifyRejected(ctx context.Context, submission *models.PhotoSubmission, comment string) error
}

// MailNotifier sends the rejection through an SMTP sender such as config.SendMail.
type MailNotifier struct {
	send func(to []string, subject, html string) error
}

func NewMailNotifier(send func(to []string, subject, html string) error) *MailNotifier {
	return &MailNotifier{send: send}
}

func (n *MailNotifier) NotifyRejected(ctx context.Context, submission *models.PhotoSubmission, comment string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if submission.SubmittedByEmail == "" {
		return nil
	}
	subject := fmt.Sprintf("Photo #%d marked %s: retake required", submission.SubmissionID, submission.Status)
	body := fmt.Sprintf(
		"<p>Your photo for route <b>%s</b>, subsection <b>%s</b>, checkpoint %d (%s #%d) was marked <b>%s</b>.</p><p>Reviewer comment: %s</p>",
		html.EscapeString(submission.RouteID),
		html.EscapeString(submission.SubsectionID),
		submission.CheckpointID,
		html.EscapeString(string(submission.ExecutionStage)),
		submission.PhotoIndex,
		html.EscapeString(string(submission.Status)),
		html.EscapeString(comment),
	)
	return n.send([]string{submission.SubmittedByEmail}, subject, body)
}
