package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"spendrag/internal/cache"
	"spendrag/internal/core"
)

// CacheStore keeps answer cache entries in the query_cache table.
type CacheStore struct {
	repo *SQLiteRepository
}

func (r *SQLiteRepository) CacheStore() *CacheStore {
	return &CacheStore{repo: r}
}

var _ cache.Store = (*CacheStore)(nil)

func (s *CacheStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := s.repo.queries.DeleteCacheBefore(ctx, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete expired cache entries: %w", err)
	}
	return int(n), nil
}

// Hit bumps and reads the entry in one transaction.
func (s *CacheStore) Hit(ctx context.Context, key string, cutoff, now time.Time) (core.CacheEntry, bool, error) {
	var (
		row   QueryCacheRow
		found bool
	)
	err := s.repo.withTx(ctx, func(q *Queries) error {
		n, err := q.BumpCacheHit(ctx, now.UnixMilli(), key, cutoff.UnixMilli())
		if err != nil {
			return fmt.Errorf("bump cache hit: %w", err)
		}
		if n == 0 {
			return nil
		}
		row, err = q.GetCacheEntry(ctx, key)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read cache entry: %w", err)
		}
		found = true
		return nil
	})
	if err != nil || !found {
		return core.CacheEntry{}, false, err
	}
	return core.CacheEntry{
		Key:       row.QueryHash,
		Question:  row.QueryText,
		Answer:    row.Response,
		Model:     row.ModelType,
		CreatedAt: time.UnixMilli(row.CreatedAt).UTC(),
		HitCount:  int(row.HitCount),
		LastHitAt: time.UnixMilli(row.LastHitAt).UTC(),
	}, true, nil
}

func (s *CacheStore) Replace(ctx context.Context, e core.CacheEntry) error {
	err := s.repo.queries.ReplaceCacheEntry(ctx, QueryCacheRow{
		QueryHash: e.Key,
		QueryText: e.Question,
		Response:  e.Answer,
		ModelType: e.Model,
		CreatedAt: e.CreatedAt.UnixMilli(),
		HitCount:  int64(e.HitCount),
		LastHitAt: e.LastHitAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("replace cache entry: %w", err)
	}
	return nil
}

func (s *CacheStore) Stats(ctx context.Context) (core.CacheStats, error) {
	entries, hits, err := s.repo.queries.CacheStats(ctx)
	if err != nil {
		return core.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return core.CacheStats{
		Entries:   int(entries),
		TotalHits: int(hits),
		HitRate:   cache.HitRate(int(entries), int(hits)),
	}, nil
}

func (s *CacheStore) Clear(ctx context.Context) (int, error) {
	n, err := s.repo.queries.DeleteAllCache(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear cache: %w", err)
	}
	return int(n), nil
}
