package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/digital-bank-auth/internal/core/domain"
	"github.com/arklim/digital-bank-auth/internal/core/port"
	"github.com/arklim/digital-bank-auth/internal/infra/config"
)

const schemaVersion = "1.0"

const (
	EventUserRegistered         = "auth.user.registered"
	EventPasswordResetRequested = "auth.user.password.reset_requested"
	EventPasswordChanged        = "auth.user.password.changed"
	EventMFAEnrolled            = "auth.user.mfa.enrolled"
	EventMFACodeIssued          = "auth.user.mfa.code_issued"
)

// EventPublisher implements port.EventPublisher on top of Kafka. Messages are keyed by user id
// so every event for one user lands on the same partition.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

var _ port.EventPublisher = (*EventPublisher)(nil)

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	body, err := json.Marshal(eventEnvelope{
		EventID:   eventID,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(userID),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(eventType)},
			{Key: []byte("schema_version"), Value: []byte(schemaVersion)},
		},
	}

	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishUserRegistered publishes auth.user.registered events.
func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	payload := struct {
		UserID       string    `json:"user_id"`
		Username     string    `json:"username"`
		Email        string    `json:"email"`
		Phone        *string   `json:"phone,omitempty"`
		Status       string    `json:"status"`
		RegisteredAt time.Time `json:"registered_at"`
	}{
		UserID:       event.UserID,
		Username:     event.Username,
		Email:        event.Email,
		Phone:        event.Phone,
		Status:       event.Status,
		RegisteredAt: event.RegisteredAt.UTC(),
	}
	return p.publish(ctx, event.EventID, EventUserRegistered, event.UserID, event.RegisteredAt, payload)
}

// PublishPasswordResetRequested publishes auth.user.password.reset_requested events for the notification service.
func (p *EventPublisher) PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error {
	payload := struct {
		UserID            string    `json:"user_id"`
		Email             string    `json:"email"`
		MaskedDestination string    `json:"masked_destination"`
		ResetToken        string    `json:"reset_token"`
		RequestedAt       time.Time `json:"requested_at"`
		ExpiresAt         time.Time `json:"expires_at"`
	}{
		UserID:            event.UserID,
		Email:             event.Email,
		MaskedDestination: event.MaskedDestination,
		ResetToken:        event.ResetToken,
		RequestedAt:       event.RequestedAt.UTC(),
		ExpiresAt:         event.ExpiresAt.UTC(),
	}
	return p.publish(ctx, event.EventID, EventPasswordResetRequested, event.UserID, event.RequestedAt, payload)
}

// PublishPasswordChanged publishes auth.user.password.changed events.
func (p *EventPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	payload := struct {
		UserID    string    `json:"user_id"`
		ChangedAt time.Time `json:"changed_at"`
		ChangedBy string    `json:"changed_by"`
	}{
		UserID:    event.UserID,
		ChangedAt: event.ChangedAt.UTC(),
		ChangedBy: event.ChangedBy,
	}
	return p.publish(ctx, event.EventID, EventPasswordChanged, event.UserID, event.ChangedAt, payload)
}

// PublishMFAEnrolled publishes auth.user.mfa.enrolled events.
func (p *EventPublisher) PublishMFAEnrolled(ctx context.Context, event domain.MFAEnrolledEvent) error {
	payload := struct {
		UserID     string    `json:"user_id"`
		MethodID   string    `json:"method_id"`
		Method     string    `json:"method"`
		EnrolledAt time.Time `json:"enrolled_at"`
	}{
		UserID:     event.UserID,
		MethodID:   event.MethodID,
		Method:     event.Method,
		EnrolledAt: event.EnrolledAt.UTC(),
	}
	return p.publish(ctx, event.EventID, EventMFAEnrolled, event.UserID, event.EnrolledAt, payload)
}

// PublishMFACodeIssued publishes auth.user.mfa.code_issued events for SMS and email delivery.
func (p *EventPublisher) PublishMFACodeIssued(ctx context.Context, event domain.MFACodeIssuedEvent) error {
	payload := struct {
		UserID      string    `json:"user_id"`
		Method      string    `json:"method"`
		Destination string    `json:"destination"`
		Code        string    `json:"code"`
		IssuedAt    time.Time `json:"issued_at"`
		ExpiresAt   time.Time `json:"expires_at"`
	}{
		UserID:      event.UserID,
		Method:      event.Method,
		Destination: event.Destination,
		Code:        event.Code,
		IssuedAt:    event.IssuedAt.UTC(),
		ExpiresAt:   event.ExpiresAt.UTC(),
	}
	return p.publish(ctx, event.EventID, EventMFACodeIssued, event.UserID, event.IssuedAt, payload)
}
