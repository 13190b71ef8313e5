// Package cache stores generated answers keyed by a hash of the normalized
// question so that repeated questions skip routing and generation.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"

	"spendrag/internal/core"
)

const DefaultMaxAge = 24 * time.Hour

// Store persists cache entries. Implementations must make Hit atomic per key.
type Store interface {
	// PurgeBefore deletes entries created before cutoff and returns how many.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int, error)

	// Hit returns the entry for key when it was created at or after cutoff,
	// incrementing its hit counter and setting its last hit time to now.
	Hit(ctx context.Context, key string, cutoff, now time.Time) (core.CacheEntry, bool, error)

	// Replace inserts entry. An entry with the same key is overwritten except
	// for its hit count, which carries over.
	Replace(ctx context.Context, entry core.CacheEntry) error

	Stats(ctx context.Context) (core.CacheStats, error)

	// Clear deletes every entry and returns how many there were.
	Clear(ctx context.Context) (int, error)
}

// Key hashes the trimmed, case-folded question. Questions that differ only
// in case or surrounding whitespace share a key.
func Key(question string) string {
	folded := cases.Fold().String(strings.TrimSpace(question))
	sum := md5.Sum([]byte(folded))
	return hex.EncodeToString(sum[:])
}

// QueryCache is the question-to-answer cache. Expired entries are purged
// lazily on every Get; there is no background sweeper.
type QueryCache struct {
	store Store
	now   func() time.Time

	// mu serializes purge-then-hit against concurrent Puts.
	mu sync.Mutex
}

type Option func(*QueryCache)

func WithClock(now func() time.Time) Option {
	return func(c *QueryCache) { c.now = now }
}

func New(store Store, opts ...Option) *QueryCache {
	c := &QueryCache{store: store, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached answer for question when one younger than maxAge
// exists. A non-positive maxAge uses DefaultMaxAge.
func (c *QueryCache) Get(ctx context.Context, question string, maxAge time.Duration) (string, bool, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	cutoff := now.Add(-maxAge)
	if _, err := c.store.PurgeBefore(ctx, cutoff); err != nil {
		return "", false, fmt.Errorf("purge expired entries: %w", err)
	}

	entry, ok, err := c.store.Hit(ctx, Key(question), cutoff, now)
	if err != nil {
		return "", false, fmt.Errorf("lookup entry: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return entry.Answer, true, nil
}

// Put stores answer for question, replacing any previous answer. Hits already
// counted for the question are kept.
func (c *QueryCache) Put(ctx context.Context, question, answer, model string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entry := core.CacheEntry{
		Key:       Key(question),
		Question:  strings.TrimSpace(question),
		Answer:    answer,
		Model:     model,
		CreatedAt: now,
		LastHitAt: now,
	}
	if err := c.store.Replace(ctx, entry); err != nil {
		return fmt.Errorf("store entry: %w", err)
	}
	return nil
}

func (c *QueryCache) Stats(ctx context.Context) (core.CacheStats, error) {
	return c.store.Stats(ctx)
}

func (c *QueryCache) Clear(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Clear(ctx)
}

// Prune deletes entries older than age and returns how many.
func (c *QueryCache) Prune(ctx context.Context, age time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.PurgeBefore(ctx, c.now().Add(-age))
}

// HitRate is total hits over entries, with the entry count floored at one.
func HitRate(entries, hits int) float64 {
	return float64(hits) / float64(max(entries, 1))
}
