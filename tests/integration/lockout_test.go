package integration

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/bastion/internal/cache"
	"github.com/BradenHooton/bastion/internal/config"
	"github.com/BradenHooton/bastion/internal/database"
	"github.com/BradenHooton/bastion/internal/lockout"
	"github.com/BradenHooton/bastion/internal/models"
	"github.com/BradenHooton/bastion/internal/repositories"
	"github.com/BradenHooton/bastion/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepo(t *testing.T) (*repositories.LockoutRepository, *TestDB) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB, err := SetupTestDatabase(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { testDB.Teardown(ctx) })

	return repositories.NewLockoutRepository(&database.DB{Pool: testDB.Pool}), testDB
}

func TestLockoutRepositoryIncrement_NoLostUpdatesUnderConcurrency(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	key := models.DeriveAttemptKey("user@example.com", "192.0.2.1")

	const attempts = 25
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.IncrementAttempt(ctx, key)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	record, err := repo.GetAttempt(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, attempts, record.Count)
}

func TestLockoutRepositoryIncrement_InsertsThenBumps(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	key := models.DeriveAttemptKey("user@example.com", "192.0.2.1")

	first, err := repo.IncrementAttempt(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Count)
	assert.WithinDuration(t, first.FirstAttemptAt, first.LastAttemptAt, time.Second)

	second, err := repo.IncrementAttempt(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Count)
	assert.True(t, second.FirstAttemptAt.Equal(first.FirstAttemptAt))
	assert.False(t, second.LastAttemptAt.Before(first.LastAttemptAt))
}

func TestLockoutRepositoryGetAttempt_AbsentKeyIsNil(t *testing.T) {
	repo, _ := setupRepo(t)

	record, err := repo.GetAttempt(context.Background(), models.DeriveAttemptKey("nobody@example.com", "192.0.2.9"))

	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestLockoutRepositoryDeleteAttempt_Idempotent(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	key := models.DeriveAttemptKey("user@example.com", "192.0.2.1")

	_, err := repo.IncrementAttempt(ctx, key)
	require.NoError(t, err)

	require.NoError(t, repo.DeleteAttempt(ctx, key))
	require.NoError(t, repo.DeleteAttempt(ctx, key))

	record, err := repo.GetAttempt(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestLockoutRepositoryDeleteStale_SweepsOnlyOldRows(t *testing.T) {
	repo, testDB := setupRepo(t)
	ctx := context.Background()

	stale := models.DeriveAttemptKey("old@example.com", "192.0.2.1")
	fresh := models.DeriveAttemptKey("new@example.com", "192.0.2.2")
	_, err := repo.IncrementAttempt(ctx, stale)
	require.NoError(t, err)
	_, err = repo.IncrementAttempt(ctx, fresh)
	require.NoError(t, err)

	// Backdate the stale row past the retention horizon
	_, err = testDB.Pool.Exec(ctx,
		`UPDATE login_lockouts SET last_attempt = CURRENT_TIMESTAMP - INTERVAL '2 hours' WHERE email = $1`,
		stale.Identifier)
	require.NoError(t, err)

	deleted, err := repo.DeleteStale(ctx, time.Now().Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	record, err := repo.GetAttempt(ctx, fresh)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 1, record.Count)
}

func TestLockoutRepository_UnprovisionedSchemaIsTyped(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB, err := SetupBareTestDatabase(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { testDB.Teardown(ctx) })

	repo := repositories.NewLockoutRepository(&database.DB{Pool: testDB.Pool})
	key := models.DeriveAttemptKey("user@example.com", "192.0.2.1")

	_, err = repo.IncrementAttempt(ctx, key)
	assert.ErrorIs(t, err, models.ErrSchemaNotProvisioned)

	_, err = repo.GetAttempt(ctx, key)
	assert.ErrorIs(t, err, models.ErrSchemaNotProvisioned)

	err = repo.DeleteAttempt(ctx, key)
	assert.ErrorIs(t, err, models.ErrSchemaNotProvisioned)
}

func TestLockoutServiceEndToEnd_LockClearReset(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	cfg := config.LockoutConfig{
		SoftThreshold:  3,
		HardThreshold:  5,
		SoftDuration:   5 * time.Minute,
		HardDuration:   30 * time.Minute,
		MaxAttempts:    5,
		DedupWindow:    time.Millisecond,
		CacheTTL:       15 * time.Minute,
		DurableTimeout: 5 * time.Second,
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	attemptCache := cache.NewAttemptCache(cfg.CacheTTL, cfg.DedupWindow)
	t.Cleanup(attemptCache.Stop)

	service := services.NewLockoutService(repo, attemptCache, lockout.NewPolicy(cfg), cfg.DurableTimeout, nil, logger)

	var decision models.LockoutDecision
	for i := 0; i < 3; i++ {
		decision = service.RecordFailure(ctx, "user@example.com", "192.0.2.1")
		time.Sleep(5 * time.Millisecond)
	}

	assert.True(t, decision.Locked)
	require.NotNil(t, decision.LockedUntil)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), *decision.LockedUntil, 5*time.Second)

	// Survives a cold cache: a second service instance sharing only the
	// database still sees the lockout.
	otherCache := cache.NewAttemptCache(cfg.CacheTTL, cfg.DedupWindow)
	t.Cleanup(otherCache.Stop)
	other := services.NewLockoutService(repo, otherCache, lockout.NewPolicy(cfg), cfg.DurableTimeout, nil, logger)
	assert.True(t, other.CheckLockout(ctx, "user@example.com", "192.0.2.1").Locked)

	service.ClearAttempts(ctx, "user@example.com", "192.0.2.1")

	after := service.CheckLockout(ctx, "user@example.com", "192.0.2.1")
	assert.False(t, after.Locked)
	assert.Equal(t, 5, after.RemainingAttempts)
}
