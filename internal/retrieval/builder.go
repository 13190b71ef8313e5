package retrieval

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"spendrag/internal/core"
	"spendrag/internal/log"
)

const (
	DefaultBatchSize   = 32
	DefaultConcurrency = 4
)

// BatchEmbedder embeds many documents in one call, preserving order.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type Builder struct {
	embedder    BatchEmbedder
	batchSize   int
	concurrency int
	logger      *log.Logger
}

type BuilderOption func(*Builder)

func WithBatchSize(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

func WithConcurrency(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

func WithBuilderLogger(l *log.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

func NewBuilder(embedder BatchEmbedder, opts ...BuilderOption) *Builder {
	b := &Builder{
		embedder:    embedder,
		batchSize:   DefaultBatchSize,
		concurrency: DefaultConcurrency,
		logger:      log.Discard(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.WithComponent(log.ComponentRetrieval)
	return b
}

// Build embeds one document per item and returns the index in item order.
// Batches run concurrently; the first failing batch cancels the rest.
func (b *Builder) Build(ctx context.Context, items []core.LedgerItem) (*FlatIndex, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("no ledger items to index: %w", core.ErrNoMatch)
	}
	start := time.Now()

	docs := make([]string, len(items))
	for i, it := range items {
		docs[i] = Document(it)
	}

	vectors := make([][]float32, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for lo := 0; lo < len(docs); lo += b.batchSize {
		hi := min(lo+b.batchSize, len(docs))
		g.Go(func() error {
			out, err := b.embedder.EmbedBatch(gctx, docs[lo:hi])
			if err != nil {
				return fmt.Errorf("embed items %d-%d: %w", lo, hi-1, err)
			}
			if len(out) != hi-lo {
				return fmt.Errorf("embed items %d-%d: got %d vectors", lo, hi-1, len(out))
			}
			copy(vectors[lo:hi], out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	idx := NewFlatIndex(len(vectors[0]))
	for i, it := range items {
		if err := idx.Add(vectors[i], metaFor(it, docs[i])); err != nil {
			return nil, fmt.Errorf("item %s: %w", it.ID, err)
		}
	}

	b.logger.InfoContext(ctx, "Vector index built",
		log.FieldOperation, log.OpBuild,
		"vectors", idx.Size(),
		"dim", idx.Dim(),
		log.FieldDuration, time.Since(start).Milliseconds())
	return idx, nil
}

// Document renders the text embedded for one item:
//
//	merchant: MIGROS | date: 2025-03-04 | item: su 1.5l | category: su_icecek | qty: 6 adet | amount: 45
//
// Empty parts are left out.
func Document(it core.LedgerItem) string {
	parts := []string{
		"merchant: " + deref(it.Merchant),
		"date: " + it.DateOrEmpty(),
		"item: " + it.NameNorm,
		"category: " + it.Category,
		strings.TrimSpace("qty: " + num(it.Qty) + " " + deref(it.Unit)),
		"amount: " + num(it.Amount),
	}
	kept := parts[:0]
	for _, p := range parts {
		if _, v, _ := strings.Cut(p, ": "); strings.TrimSpace(v) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " | ")
}

func metaFor(it core.LedgerItem, doc string) Meta {
	return Meta{
		ItemID:    it.ID,
		ReceiptID: it.ReceiptID,
		Merchant:  it.Merchant,
		Date:      it.Date,
		NameNorm:  it.NameNorm,
		Category:  it.Category,
		Qty:       it.Qty,
		Unit:      it.Unit,
		Amount:    it.Amount,
		Doc:       doc,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func num(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
