// Package lockout implements the progressive lockout schedule: a pure
// mapping from a failure count to the duration an account+origin pair stays
// locked. The schedule has two steps (a short lockout at the soft threshold,
// a long lockout at the hard threshold) so a fat-fingered password costs
// minutes while a sustained guessing run costs half an hour per round.
package lockout

import (
	"time"

	"github.com/BradenHooton/bastion/internal/config"
)

// Policy maps a consecutive-failure count to a lockout duration
type Policy struct {
	softThreshold int
	hardThreshold int
	softDuration  time.Duration
	hardDuration  time.Duration
	maxAttempts   int
}

// NewPolicy builds a Policy from validated config. Threshold ordering is a
// load-time invariant (config.Load rejects inverted schedules), so the policy
// itself stays total and branch-simple.
func NewPolicy(cfg config.LockoutConfig) Policy {
	return Policy{
		softThreshold: cfg.SoftThreshold,
		hardThreshold: cfg.HardThreshold,
		softDuration:  cfg.SoftDuration,
		hardDuration:  cfg.HardDuration,
		maxAttempts:   cfg.MaxAttempts,
	}
}

// Duration returns how long a key with the given failure count stays locked.
// Zero means no lockout.
func (p Policy) Duration(count int) time.Duration {
	switch {
	case count >= p.hardThreshold:
		return p.hardDuration
	case count >= p.softThreshold:
		return p.softDuration
	default:
		return 0
	}
}

// Remaining returns the attempt budget left before the next lockout step.
// Never negative.
func (p Policy) Remaining(count int) int {
	remaining := p.maxAttempts - count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// MaxAttempts is the full attempt budget reported for an untracked key
func (p Policy) MaxAttempts() int {
	return p.maxAttempts
}

// MaxLockout is the longest duration the schedule can produce. Rows older
// than this (measured from their last attempt) are dead weight for every
// possible count and safe to reap.
func (p Policy) MaxLockout() time.Duration {
	return p.hardDuration
}
