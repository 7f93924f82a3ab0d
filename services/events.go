package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"photo-qc-api/models"

	"github.com/segmentio/kafka-go"
)

type EventType string

const (
	EventSubmissionCreated     EventType = "submission.created"
	EventSubmissionResubmitted EventType = "submission.resubmitted"
	EventSubmissionReviewed    EventType = "submission.reviewed"
	EventSubmissionDeleted     EventType = "submission.deleted"
)

// SubmissionEvent is published after a lifecycle change has committed.
type SubmissionEvent struct {
	Type             EventType               `json:"type"`
	SubmissionID     uint                    `json:"submission_id"`
	ResubmissionOfID *uint                   `json:"resubmission_of_id,omitempty"`
	RouteID          string                  `json:"route_id"`
	SubsectionID     string                  `json:"subsection_id"`
	CheckpointID     uint                    `json:"checkpoint_id"`
	ExecutionStage   models.ExecutionStage   `json:"execution_stage"`
	PhotoIndex       int                     `json:"photo_index"`
	Status           models.SubmissionStatus `json:"status"`
	ActorEmail       string                  `json:"actor_email"`
	OccurredAt       time.Time               `json:"occurred_at"`
}

func newSubmissionEvent(kind EventType, submission *models.PhotoSubmission, actor Identity) SubmissionEvent {
	return SubmissionEvent{
		Type:             kind,
		SubmissionID:     submission.SubmissionID,
		ResubmissionOfID: submission.ResubmissionOfID,
		RouteID:          submission.RouteID,
		SubsectionID:     submission.SubsectionID,
		CheckpointID:     submission.CheckpointID,
		ExecutionStage:   submission.ExecutionStage,
		PhotoIndex:       submission.PhotoIndex,
		Status:           submission.Status,
		ActorEmail:       actor.NormalizedEmail(),
		OccurredAt:       time.Now().UTC(),
	}
}

type EventPublisher interface {
	Publish(ctx context.Context, event SubmissionEvent) error
}

// NoopEventPublisher is used when no broker is configured.
type NoopEventPublisher struct{}

func (NoopEventPublisher) Publish(context.Context, SubmissionEvent) error { return nil }

// KafkaEventPublisher writes events keyed by route/subsection so one subsection stays ordered.
type KafkaEventPublisher struct {
	writer *kafka.Writer
}

func NewKafkaEventPublisher(brokers, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(strings.Split(brokers, ",")...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			WriteTimeout:           5 * time.Second,
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, event SubmissionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.RouteID + "/" + event.SubsectionID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
}

func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}
