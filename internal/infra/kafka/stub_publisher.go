package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/digital-bank-auth/internal/core/domain"
	"github.com/arklim/digital-bank-auth/internal/core/port"
	"github.com/arklim/digital-bank-auth/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. It is selected when no brokers are configured.
// Secrets carried by events are masked before logging.
type StubPublisher struct {
	logger *zap.Logger
}

var _ port.EventPublisher = (*StubPublisher)(nil)

// NewStubPublisher constructs a logging event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &StubPublisher{logger: log}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	base := []zap.Field{
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
	}
	p.logger.Info("stub event published", append(base, fields...)...)
}

// PublishUserRegistered logs auth.user.registered events.
func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	p.logEvent(EventUserRegistered, event.UserID, event.RegisteredAt,
		zap.String("username", event.Username),
		zap.String("email", logger.MaskEmail(event.Email)),
		zap.String("status", event.Status),
	)
	return nil
}

// PublishPasswordResetRequested logs auth.user.password.reset_requested events.
func (p *StubPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	p.logEvent(EventPasswordResetRequested, event.UserID, event.RequestedAt,
		zap.String("masked_destination", event.MaskedDestination),
		zap.String("reset_token", logger.MaskString(event.ResetToken)),
		zap.Time("expires_at", event.ExpiresAt),
	)
	return nil
}

// PublishPasswordChanged logs auth.user.password.changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	p.logEvent(EventPasswordChanged, event.UserID, event.ChangedAt,
		zap.String("changed_by", event.ChangedBy),
	)
	return nil
}

// PublishMFAEnrolled logs auth.user.mfa.enrolled events.
func (p *StubPublisher) PublishMFAEnrolled(_ context.Context, event domain.MFAEnrolledEvent) error {
	p.logEvent(EventMFAEnrolled, event.UserID, event.EnrolledAt,
		zap.String("method_id", event.MethodID),
		zap.String("method", event.Method),
	)
	return nil
}

// PublishMFACodeIssued logs auth.user.mfa.code_issued events.
func (p *StubPublisher) PublishMFACodeIssued(_ context.Context, event domain.MFACodeIssuedEvent) error {
	destination := logger.MaskEmail(event.Destination)
	if event.Method == string(domain.MFAMethodSMS) {
		destination = logger.MaskPhone(event.Destination)
	}
	p.logEvent(EventMFACodeIssued, event.UserID, event.IssuedAt,
		zap.String("method", event.Method),
		zap.String("destination", destination),
		zap.Time("expires_at", event.ExpiresAt),
	)
	return nil
}
