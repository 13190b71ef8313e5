package core

import "time"

// CacheEntry is one stored answer keyed by the content hash of the question.
type CacheEntry struct {
	Key       string
	Question  string
	Answer    string
	Model     string
	CreatedAt time.Time
	HitCount  int
	LastHitAt time.Time
}

type CacheStats struct {
	Entries   int     `json:"entries"`
	TotalHits int     `json:"total_hits"`
	HitRate   float64 `json:"hit_rate"`
}
