package service

import (
	"context"

	"github.com/pkg/errors"
)

// ErrRateLimited is returned by an AttemptLimiter when the attempt budget is exhausted.
var ErrRateLimited = errors.New("rate limited")

// AttemptLimiter throttles attempts per subject (an email) and per client IP in fixed windows.
type AttemptLimiter interface {
	// Check returns ErrRateLimited when either counter is over budget.
	Check(ctx context.Context, subject, ip string) error

	// Record counts one attempt.
	Record(ctx context.Context, subject, ip string) error

	// Reset clears the subject counter, and the address counter when ip is set.
	Reset(ctx context.Context, subject, ip string) error
}
