package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BradenHooton/bastion/internal/cache"
	"github.com/BradenHooton/bastion/internal/lockout"
	"github.com/BradenHooton/bastion/internal/models"
	pkglogger "github.com/BradenHooton/bastion/pkg/logger"
)

// LockoutRepository defines the durable-tier operations the lockout service
// depends on
type LockoutRepository interface {
	IncrementAttempt(ctx context.Context, key models.AttemptKey) (*models.AttemptRecord, error)
	GetAttempt(ctx context.Context, key models.AttemptKey) (*models.AttemptRecord, error)
	DeleteAttempt(ctx context.Context, key models.AttemptKey) error
	DeleteStale(ctx context.Context, olderThan time.Time) (int64, error)
}

// LockoutNotifier is invoked fire-and-forget when a key transitions into a
// lockout. Delivery semantics are the notifier's problem.
type LockoutNotifier interface {
	NotifyLockout(ctx context.Context, key models.AttemptKey, until time.Time)
}

// LockoutService tracks failed logins per (identifier, origin) pair across a
// best-effort cache tier and an authoritative durable tier, and turns counts
// into lockout decisions. Storage failures never propagate to callers: the
// worst case is a degraded, cache-only decision, because an infrastructure
// hiccup must not take the login endpoint down with it.
type LockoutService struct {
	repo     LockoutRepository
	cache    *cache.AttemptCache
	policy   lockout.Policy
	timeout  time.Duration
	notifier LockoutNotifier
	logger   *slog.Logger
}

// NewLockoutService creates a new LockoutService. notifier may be nil.
func NewLockoutService(repo LockoutRepository, attemptCache *cache.AttemptCache, policy lockout.Policy, durableTimeout time.Duration, notifier LockoutNotifier, logger *slog.Logger) *LockoutService {
	return &LockoutService{
		repo:     repo,
		cache:    attemptCache,
		policy:   policy,
		timeout:  durableTimeout,
		notifier: notifier,
		logger:   logger,
	}
}

// CheckLockout reports the current lockout state for an identifier+origin
// pair. Read-only apart from reclaiming records whose lockout window has
// expired, which is idempotent and safe to race.
func (s *LockoutService) CheckLockout(ctx context.Context, identifier, origin string) models.LockoutDecision {
	key := models.DeriveAttemptKey(identifier, origin)
	return s.decide(s.resolve(ctx, key))
}

// RecordFailure registers a failed login for an identifier+origin pair and
// returns the resulting decision. Duplicate calls inside the dedup window
// are suppressed to a status read, and attempts during an active lockout do
// not raise the count.
func (s *LockoutService) RecordFailure(ctx context.Context, identifier, origin string) models.LockoutDecision {
	key := models.DeriveAttemptKey(identifier, origin)

	// Frontends probe multiple login endpoints with the same credentials in
	// quick succession; only the first call inside the window gets a strike.
	if !s.cache.MarkPending(key) {
		return s.decide(s.resolve(ctx, key))
	}

	// resolve also reclaims an expired window, so a failure after the
	// lockout has lapsed starts a fresh record at count 1.
	current := s.decide(s.resolve(ctx, key))
	if current.Locked {
		return current
	}

	record := s.increment(ctx, key)
	decision := s.decide(record)

	if decision.Locked {
		s.logger.Warn("key locked out",
			slog.String("identifier", pkglogger.SanitizedEmail(key.Identifier)),
			slog.String("origin", key.Origin),
			slog.Int("attempts", record.Count),
			slog.Time("locked_until", *decision.LockedUntil))
		if s.notifier != nil {
			go s.notifier.NotifyLockout(context.WithoutCancel(ctx), key, *decision.LockedUntil)
		}
	}

	return decision
}

// ClearAttempts removes all tracked state for an identifier+origin pair.
// Called after a successful login; idempotent.
func (s *LockoutService) ClearAttempts(ctx context.Context, identifier, origin string) {
	key := models.DeriveAttemptKey(identifier, origin)

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repo.DeleteAttempt(opCtx, key); err != nil && !errors.Is(err, models.ErrSchemaNotProvisioned) {
		s.logger.Error("failed to clear durable lockout record",
			slog.String("identifier", pkglogger.SanitizedEmail(key.Identifier)),
			slog.Any("error", err))
	}

	s.cache.Delete(key)
	s.cache.ClearPending(key)
}

// ReapStale deletes durable rows whose last attempt predates the longest
// possible lockout, and prunes the cache tier alongside. Best-effort
// housekeeping; read-path expiry is what guarantees correctness.
func (s *LockoutService) ReapStale(ctx context.Context) (int64, error) {
	s.cache.PurgeExpired()

	cutoff := time.Now().Add(-s.policy.MaxLockout())
	deleted, err := s.repo.DeleteStale(ctx, cutoff)
	if err != nil {
		if errors.Is(err, models.ErrSchemaNotProvisioned) {
			return 0, nil
		}
		return 0, err
	}
	return deleted, nil
}

// resolve performs the reconciliation read across both tiers. The durable
// record wins on divergence; the cache is refreshed whenever it is absent or
// behind. A record whose lockout window has elapsed is deleted and reported
// as absent so the next failure starts a fresh window.
func (s *LockoutService) resolve(ctx context.Context, key models.AttemptKey) *models.AttemptRecord {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	durable, err := s.repo.GetAttempt(opCtx, key)
	if err != nil {
		if !errors.Is(err, models.ErrSchemaNotProvisioned) {
			s.logger.Error("durable lockout read failed, using cache only",
				slog.String("identifier", pkglogger.SanitizedEmail(key.Identifier)),
				slog.Any("error", err))
		}
		return s.cachedOnly(key)
	}

	if durable == nil {
		// No durable row. Degraded-mode strikes may still live in the cache.
		return s.cachedOnly(key)
	}

	if s.windowExpired(durable) {
		s.deleteExpired(ctx, key)
		return nil
	}

	if cached, ok := s.cache.Get(key); !ok || cached.Count < durable.Count {
		s.cache.Set(*durable)
	}

	return durable
}

// cachedOnly resolves from the cache tier alone, applying the same expiry
// rule so a stale degraded-mode record cannot lock a key forever
func (s *LockoutService) cachedOnly(key models.AttemptKey) *models.AttemptRecord {
	cached, ok := s.cache.Get(key)
	if !ok {
		return nil
	}
	if s.windowExpired(&cached) {
		s.cache.Delete(key)
		return nil
	}
	return &cached
}

// windowExpired reports whether the record's lockout window has elapsed.
// Records below the soft threshold carry no window and never expire here;
// they age out through the cache TTL and the reaper retention sweep,
// otherwise counts could never accumulate past one.
func (s *LockoutService) windowExpired(record *models.AttemptRecord) bool {
	duration := s.policy.Duration(record.Count)
	return duration > 0 && time.Now().After(record.LastAttemptAt.Add(duration))
}

// deleteExpired reclaims both tiers for a key whose window has lapsed
func (s *LockoutService) deleteExpired(ctx context.Context, key models.AttemptKey) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repo.DeleteAttempt(opCtx, key); err != nil && !errors.Is(err, models.ErrSchemaNotProvisioned) {
		s.logger.Error("failed to delete expired lockout record",
			slog.String("identifier", pkglogger.SanitizedEmail(key.Identifier)),
			slog.Any("error", err))
	}
	s.cache.Delete(key)
}

// increment applies one strike, preferring the atomic durable upsert and
// falling back to a process-local cache count when the durable tier is
// unavailable or times out
func (s *LockoutService) increment(ctx context.Context, key models.AttemptKey) *models.AttemptRecord {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	record, err := s.repo.IncrementAttempt(opCtx, key)
	if err == nil {
		s.cache.Set(*record)
		return record
	}

	if !errors.Is(err, models.ErrSchemaNotProvisioned) {
		s.logger.Error("durable lockout increment failed, counting in cache only",
			slog.String("identifier", pkglogger.SanitizedEmail(key.Identifier)),
			slog.Any("error", err))
	}

	local := s.cache.Increment(key)
	return &local
}

// decide turns a reconciled record into the caller-facing decision
func (s *LockoutService) decide(record *models.AttemptRecord) models.LockoutDecision {
	if record == nil {
		return models.LockoutDecision{RemainingAttempts: s.policy.MaxAttempts()}
	}

	duration := s.policy.Duration(record.Count)
	if duration > 0 {
		until := record.LastAttemptAt.Add(duration)
		if time.Now().Before(until) {
			return models.LockoutDecision{Locked: true, LockedUntil: &until}
		}
		// Window lapsed between resolve and here; report a clean slate.
		return models.LockoutDecision{RemainingAttempts: s.policy.MaxAttempts()}
	}

	return models.LockoutDecision{RemainingAttempts: s.policy.Remaining(record.Count)}
}
