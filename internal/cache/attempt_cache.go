// Package cache holds the fast tier of the lockout state store: a
// process-wide TTL map of attempt records plus the short-lived dedup markers
// that suppress duplicate near-simultaneous failure reports. Nothing in here
// is authoritative; the durable tier wins on divergence.
package cache

import (
	"sync"
	"time"

	"github.com/BradenHooton/bastion/internal/models"
)

type recordEntry struct {
	record models.AttemptRecord
	expiry time.Time
}

// AttemptCache is safe for concurrent use by all request goroutines
type AttemptCache struct {
	mu      sync.RWMutex
	records map[string]recordEntry
	pending map[string]time.Time // dedup markers: key -> marker expiry

	ttl         time.Duration
	dedupWindow time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewAttemptCache creates the cache and starts its janitor goroutine. The
// entry TTL is independent of any lockout duration.
func NewAttemptCache(ttl, dedupWindow time.Duration) *AttemptCache {
	c := &AttemptCache{
		records:     make(map[string]recordEntry),
		pending:     make(map[string]time.Time),
		ttl:         ttl,
		dedupWindow: dedupWindow,
		stopCh:      make(chan struct{}),
	}

	go c.janitor()

	return c
}

// Get returns a copy of the cached record for key, if present and unexpired
func (c *AttemptCache) Get(key models.AttemptKey) (models.AttemptRecord, bool) {
	c.mu.RLock()
	entry, exists := c.records[key.String()]
	c.mu.RUnlock()

	if !exists {
		return models.AttemptRecord{}, false
	}
	if time.Now().After(entry.expiry) {
		c.Delete(key)
		return models.AttemptRecord{}, false
	}
	return entry.record, true
}

// Set stores a record, resetting its TTL
func (c *AttemptCache) Set(record models.AttemptRecord) {
	c.mu.Lock()
	c.records[record.Key.String()] = recordEntry{
		record: record,
		expiry: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// Increment bumps the cached counter for key, creating the record if absent.
// This is the degraded-mode write path used when the durable tier is
// unreachable; the count it produces is local to this process.
func (c *AttemptCache) Increment(key models.AttemptKey) models.AttemptRecord {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.records[key.String()]
	if !exists || now.After(entry.expiry) {
		entry = recordEntry{
			record: models.AttemptRecord{
				Key:            key,
				Count:          0,
				FirstAttemptAt: now,
			},
		}
	}
	entry.record.Count++
	entry.record.LastAttemptAt = now
	entry.expiry = now.Add(c.ttl)
	c.records[key.String()] = entry

	return entry.record
}

// Delete removes the cached record for key. Idempotent.
func (c *AttemptCache) Delete(key models.AttemptKey) {
	c.mu.Lock()
	delete(c.records, key.String())
	c.mu.Unlock()
}

// MarkPending atomically checks and sets the dedup marker for key. It
// returns true if the marker was newly set (the caller should record the
// failure) and false if a fresh marker already existed (the call is a
// duplicate and must not add a strike).
func (c *AttemptCache) MarkPending(key models.AttemptKey) bool {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if expiry, exists := c.pending[key.String()]; exists && now.Before(expiry) {
		return false
	}
	c.pending[key.String()] = now.Add(c.dedupWindow)
	return true
}

// ClearPending drops the dedup marker for key. Idempotent.
func (c *AttemptCache) ClearPending(key models.AttemptKey) {
	c.mu.Lock()
	delete(c.pending, key.String())
	c.mu.Unlock()
}

// PurgeExpired removes expired records and markers, returning how many
// records were dropped
func (c *AttemptCache) PurgeExpired() int {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	purged := 0
	for key, entry := range c.records {
		if now.After(entry.expiry) {
			delete(c.records, key)
			purged++
		}
	}
	for key, expiry := range c.pending {
		if now.After(expiry) {
			delete(c.pending, key)
		}
	}
	return purged
}

// Stop terminates the janitor goroutine
func (c *AttemptCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

// janitor periodically evicts expired entries so abandoned keys don't
// accumulate between reads
func (c *AttemptCache) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.PurgeExpired()
		case <-c.stopCh:
			return
		}
	}
}
