package models

import (
	"strings"
	"time"
)

// AttemptKey identifies one brute-force counter: a canonicalized
// (identifier, origin address) pair
type AttemptKey struct {
	Identifier string
	Origin     string
}

// DeriveAttemptKey canonicalizes an identifier and origin address into a
// tracking key. The identifier is lower-cased and trimmed; the origin is the
// single client address already resolved by the HTTP layer. Malformed or
// empty inputs map to "unknown" so a bogus request still lands on a key
// instead of failing.
func DeriveAttemptKey(identifier, origin string) AttemptKey {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" {
		identifier = "unknown"
	}
	origin = strings.TrimSpace(origin)
	if origin == "" {
		origin = "unknown"
	}
	return AttemptKey{Identifier: identifier, Origin: origin}
}

// String renders the key in cache-map form
func (k AttemptKey) String() string {
	return k.Identifier + "|" + k.Origin
}

// AttemptRecord tracks consecutive failed logins for one key
type AttemptRecord struct {
	Key            AttemptKey
	Count          int
	FirstAttemptAt time.Time
	LastAttemptAt  time.Time
}

// LockoutDecision is the outcome of checking or recording an attempt.
// LockedUntil is nil whenever Locked is false.
type LockoutDecision struct {
	Locked            bool       `json:"locked"`
	RemainingAttempts int        `json:"remaining_attempts"`
	LockedUntil       *time.Time `json:"locked_until,omitempty"`
}
