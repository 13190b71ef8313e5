package router

import (
	"context"
	"time"

	"spendrag/internal/core"
)

// Ledger is the read side of the item store.
type Ledger interface {
	FetchItems(ctx context.Context, filter core.ItemFilter) ([]core.LedgerItem, error)
	FetchAllItems(ctx context.Context) ([]core.LedgerItem, error)
}

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Neighbor is one search hit: the position inside the index and its
// inner-product score.
type Neighbor struct {
	Pos   int
	Score float32
}

// VectorIndex searches normalized vectors by inner product and maps index
// positions back to ledger item ids.
type VectorIndex interface {
	Size() int
	Search(query []float32, k int) ([]Neighbor, error)
	ItemID(pos int) (string, bool)
}

// IndexSource hands out the current vector index. It returns an error
// wrapping core.ErrCapabilityUnavailable when the index or its metadata
// sidecar is missing.
type IndexSource interface {
	Index(ctx context.Context) (VectorIndex, error)
}

// ReportSource reads precomputed monthly aggregates. Missing tables wrap
// core.ErrCapabilityUnavailable; a month without data wraps core.ErrNoMatch.
type ReportSource interface {
	MonthlyReport(ctx context.Context, month string) (core.MonthlyReport, error)
}

// Generator produces answer text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
	Model() string
}

// ResponseCache is the optional fast path in front of the router.
type ResponseCache interface {
	Get(ctx context.Context, question string, maxAge time.Duration) (string, bool, error)
	Put(ctx context.Context, question, answer, model string) error
}
