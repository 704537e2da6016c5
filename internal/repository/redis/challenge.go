package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arklim/digital-bank-auth/internal/core/port"
)

const defaultChallengePrefix = "auth:mfa:challenge"

// ChallengeRepository remembers redeemed MFA challenge identifiers until the challenge would have expired anyway.
type ChallengeRepository struct {
	client redis.Cmdable
	prefix string
}

var _ port.ChallengeStore = (*ChallengeRepository)(nil)

// NewChallengeRepository constructs a Redis-backed challenge store.
func NewChallengeRepository(client redis.Cmdable, prefix string) *ChallengeRepository {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultChallengePrefix
	}
	return &ChallengeRepository{client: client, prefix: prefix}
}

// Claim atomically marks jti as used. It reports false when the identifier was claimed earlier.
func (r *ChallengeRepository) Claim(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return false, errors.New("challenge id is required")
	}
	if ttl <= 0 {
		ttl = time.Minute
	}

	ok, err := r.client.SetNX(ctx, r.prefix+":"+jti, time.Now().UTC().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}
