package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/BradenHooton/bastion/internal/database"
	"github.com/BradenHooton/bastion/internal/models"
	"github.com/jackc/pgx/v5"
)

// LockoutRepository is the durable tier of the lockout state store. It is
// the source of truth: counters survive process restarts and are shared by
// every instance pointed at the same database.
type LockoutRepository struct {
	db *database.DB
}

// NewLockoutRepository creates a new LockoutRepository
func NewLockoutRepository(db *database.DB) *LockoutRepository {
	return &LockoutRepository{db: db}
}

// IncrementAttempt inserts a fresh row with attempt_count=1 or bumps an
// existing one, in a single statement. Two concurrent failures for the same
// key must both land in the final count, so the increment lives in the
// upsert rather than in application-level read-modify-write.
func (r *LockoutRepository) IncrementAttempt(ctx context.Context, key models.AttemptKey) (*models.AttemptRecord, error) {
	query := `
		INSERT INTO login_lockouts (email, ip_address, attempt_count)
		VALUES ($1, $2, 1)
		ON CONFLICT (email, ip_address)
		DO UPDATE SET attempt_count = login_lockouts.attempt_count + 1, last_attempt = CURRENT_TIMESTAMP
		RETURNING attempt_count, created_at, last_attempt
	`

	record := &models.AttemptRecord{Key: key}
	err := r.db.Pool.QueryRow(ctx, query, key.Identifier, key.Origin).
		Scan(&record.Count, &record.FirstAttemptAt, &record.LastAttemptAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return record, nil
}

// GetAttempt returns the record for a key, or nil if none is tracked
func (r *LockoutRepository) GetAttempt(ctx context.Context, key models.AttemptKey) (*models.AttemptRecord, error) {
	query := `
		SELECT attempt_count, created_at, last_attempt FROM login_lockouts
		WHERE email = $1 AND ip_address = $2
	`

	record := &models.AttemptRecord{Key: key}
	err := r.db.Pool.QueryRow(ctx, query, key.Identifier, key.Origin).
		Scan(&record.Count, &record.FirstAttemptAt, &record.LastAttemptAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return record, nil
}

// DeleteAttempt removes the row for a key. Deleting an absent row is not an
// error; concurrent expiry cleanups may race for the same row.
func (r *LockoutRepository) DeleteAttempt(ctx context.Context, key models.AttemptKey) error {
	query := `DELETE FROM login_lockouts WHERE email = $1 AND ip_address = $2`

	_, err := r.db.Pool.Exec(ctx, query, key.Identifier, key.Origin)
	return database.MapPostgresError(err)
}

// DeleteStale removes rows whose last attempt is older than the cutoff,
// returning how many were deleted
func (r *LockoutRepository) DeleteStale(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `DELETE FROM login_lockouts WHERE last_attempt <= $1`

	tag, err := r.db.Pool.Exec(ctx, query, olderThan)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
