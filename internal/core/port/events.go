package port

import (
	"context"

	"github.com/arklim/digital-bank-auth/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
	PublishMFAEnrolled(ctx context.Context, event domain.MFAEnrolledEvent) error
	PublishMFACodeIssued(ctx context.Context, event domain.MFACodeIssuedEvent) error
}
