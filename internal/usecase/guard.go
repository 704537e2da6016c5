package usecase

import (
	"time"

	"github.com/arklim/digital-bank-auth/internal/core/domain"
	"github.com/arklim/digital-bank-auth/internal/infra/security"
)

// Resource describes what a request is trying to touch.
// OwnerID is empty for resources that any authenticated user may reach.
type Resource struct {
	Name    string
	OwnerID string
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Authorize decides whether claims grant access to resource at the given moment.
// It has no side effects and consults nothing beyond its arguments.
func Authorize(claims *security.TokenClaims, resource Resource, at time.Time) Decision {
	switch {
	case claims == nil:
		return deny("missing claims")
	case claims.Kind != domain.TokenKindAccess:
		return deny("access token required")
	case claims.Subject == "":
		return deny("subject missing")
	case claims.ExpiresAt == nil || !claims.ExpiresAt.After(at):
		return deny("token expired")
	case resource.OwnerID != "" && resource.OwnerID != claims.Subject:
		return deny("resource belongs to another user")
	}
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}
