package port

import (
	"context"
	"time"
)

// RateLimitWindow describes the state of a sliding window after an attempt was evaluated.
type RateLimitWindow struct {
	Allowed bool
	Count   int
	Oldest  time.Time
}

// RateLimitStore enforces sliding-window limits. Hit must trim, count and record as one atomic step.
type RateLimitStore interface {
	Hit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (RateLimitWindow, error)
}
