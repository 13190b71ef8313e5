package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"spendrag/internal/core"
)

const DefaultMemorySize = 1000

// MemoryStore is an in-process Store bounded by entry count; the least
// recently hit entry is evicted first.
type MemoryStore struct {
	mu      sync.Mutex
	maxSize int
	items   map[string]*list.Element
	lru     *list.List
}

// NewMemoryStore creates a store holding at most maxSize entries.
func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = DefaultMemorySize
	}
	return &MemoryStore{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

func (s *MemoryStore) PurgeBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var toRemove []*list.Element
	for elem := s.lru.Front(); elem != nil; elem = elem.Next() {
		if elem.Value.(*core.CacheEntry).CreatedAt.Before(cutoff) {
			toRemove = append(toRemove, elem)
		}
	}
	for _, elem := range toRemove {
		s.removeElement(elem)
	}
	return len(toRemove), nil
}

func (s *MemoryStore) Hit(_ context.Context, key string, cutoff, now time.Time) (core.CacheEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, exists := s.items[key]
	if !exists {
		return core.CacheEntry{}, false, nil
	}
	entry := elem.Value.(*core.CacheEntry)
	if entry.CreatedAt.Before(cutoff) {
		s.removeElement(elem)
		return core.CacheEntry{}, false, nil
	}

	entry.HitCount++
	entry.LastHitAt = now
	s.lru.MoveToFront(elem)
	return *entry, true, nil
}

func (s *MemoryStore) Replace(_ context.Context, entry core.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, exists := s.items[entry.Key]; exists {
		entry.HitCount = elem.Value.(*core.CacheEntry).HitCount
		elem.Value = &entry
		s.lru.MoveToFront(elem)
		return nil
	}

	s.items[entry.Key] = s.lru.PushFront(&entry)
	if s.lru.Len() > s.maxSize {
		if oldest := s.lru.Back(); oldest != nil {
			s.removeElement(oldest)
		}
	}
	return nil
}

func (s *MemoryStore) Stats(_ context.Context) (core.CacheStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var hits int
	for elem := s.lru.Front(); elem != nil; elem = elem.Next() {
		hits += elem.Value.(*core.CacheEntry).HitCount
	}
	entries := len(s.items)
	return core.CacheStats{Entries: entries, TotalHits: hits, HitRate: HitRate(entries, hits)}, nil
}

func (s *MemoryStore) Clear(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.items)
	s.items = make(map[string]*list.Element)
	s.lru.Init()
	return n, nil
}

// Size returns the current number of entries.
func (s *MemoryStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *MemoryStore) removeElement(elem *list.Element) {
	delete(s.items, elem.Value.(*core.CacheEntry).Key)
	s.lru.Remove(elem)
}
