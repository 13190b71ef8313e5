package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"spendrag/internal/core"
	"spendrag/internal/textnorm"
)

// Number accepts a JSON number, a numeric string ("12,50", "1.234,56") or
// null.
type Number struct {
	Value *float64
}

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		n.Value = nil
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			n.Value = nil
			return nil
		}
		d, err := core.ParseAmount(s)
		if err != nil {
			return fmt.Errorf("number %q: %w", s, err)
		}
		v := d.InexactFloat64()
		n.Value = &v
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}

// ReceiptDocument is one extracted receipt as produced by the extraction
// pipeline.
type ReceiptDocument struct {
	SourcePath string         `json:"source_path"`
	Merchant   string         `json:"merchant"`
	Date       string         `json:"date"`
	Currency   string         `json:"currency"`
	Total      Number         `json:"total"`
	Items      []ItemDocument `json:"items"`
}

type ItemDocument struct {
	Name     string `json:"name"`
	Qty      Number `json:"qty"`
	Unit     string `json:"unit"`
	Amount   Number `json:"amount"`
	Category string `json:"category"`
}

// DecodeReceipts reads a JSON array of receipt documents.
func DecodeReceipts(r io.Reader) ([]ReceiptDocument, error) {
	var docs []ReceiptDocument
	dec := json.NewDecoder(r)
	if err := dec.Decode(&docs); err != nil {
		return nil, fmt.Errorf("decode receipts: %w", err)
	}
	return docs, nil
}

// ImportStats summarizes one import.
type ImportStats struct {
	Receipts     int `json:"receipts"`
	Items        int `json:"items"`
	Duplicates   int `json:"duplicates"`
	SkippedItems int `json:"skipped_items"`
}

// ImportReceipts writes docs in a single transaction. Names are normalized,
// items without a category are categorized by keyword, and receipts already
// present (same source path and content) are skipped.
func (r *SQLiteRepository) ImportReceipts(ctx context.Context, docs []ReceiptDocument, categorizer *textnorm.Categorizer) (ImportStats, error) {
	if categorizer == nil {
		categorizer = textnorm.NewCategorizer(nil, core.DefaultCategory)
	}
	var stats ImportStats

	err := r.withTx(ctx, func(q *Queries) error {
		seen := make(map[string]struct{}, len(docs))
		for i, doc := range docs {
			if strings.TrimSpace(doc.SourcePath) == "" {
				return fmt.Errorf("receipt %d: %w", i, core.ErrEmptySourcePath)
			}
			hash, err := contentHash(doc)
			if err != nil {
				return fmt.Errorf("receipt %s: %w", doc.SourcePath, err)
			}
			if _, dup := seen[hash]; dup {
				stats.Duplicates++
				continue
			}
			seen[hash] = struct{}{}

			exists, err := q.ReceiptExists(ctx, hash)
			if err != nil {
				return fmt.Errorf("check receipt %s: %w", doc.SourcePath, err)
			}
			if exists {
				stats.Duplicates++
				continue
			}

			receipt := receiptFromDocument(doc)
			if err := receipt.Validate(); err != nil {
				return fmt.Errorf("receipt %s: %w", doc.SourcePath, err)
			}
			if err := q.InsertReceipt(ctx, InsertReceiptParams{
				ID:          receipt.ID,
				SourcePath:  receipt.SourcePath,
				ContentHash: hash,
				Merchant:    toNullString(receipt.Merchant),
				ReceiptDate: toNullString(receipt.Date),
				Currency:    receipt.Currency,
				TotalAmount: toNullFloat(receipt.TotalAmount),
			}); err != nil {
				return fmt.Errorf("insert receipt %s: %w", doc.SourcePath, err)
			}
			stats.Receipts++

			line := 0
			for _, itemDoc := range doc.Items {
				item, ok := itemFromDocument(itemDoc, receipt.ID, categorizer)
				if !ok {
					stats.SkippedItems++
					continue
				}
				line++
				item.LineNo = line
				if err := q.InsertItem(ctx, InsertItemParams{
					ID:        item.ID,
					ReceiptID: item.ReceiptID,
					LineNo:    int64(item.LineNo),
					NameRaw:   item.NameRaw,
					NameNorm:  item.NameNorm,
					Qty:       toNullFloat(item.Qty),
					Unit:      toNullString(item.Unit),
					Amount:    toNullFloat(item.Amount),
					Category:  toNullString(&item.Category),
				}); err != nil {
					return fmt.Errorf("insert item %q of %s: %w", item.NameRaw, doc.SourcePath, err)
				}
				stats.Items++
			}
		}
		return nil
	})
	if err != nil {
		return ImportStats{}, err
	}
	return stats, nil
}

func receiptFromDocument(doc ReceiptDocument) core.Receipt {
	receipt := core.Receipt{
		ID:          uuid.NewString(),
		SourcePath:  strings.TrimSpace(doc.SourcePath),
		Currency:    strings.ToUpper(strings.TrimSpace(doc.Currency)),
		TotalAmount: doc.Total.Value,
	}
	if receipt.Currency == "" {
		receipt.Currency = core.DefaultCurrency
	}
	if m := strings.TrimSpace(doc.Merchant); m != "" {
		receipt.Merchant = &m
	}
	if t, err := core.ParseDate(doc.Date); err == nil {
		receipt.Date = core.Ptr(core.FormatDate(t))
	}
	return receipt
}

// itemFromDocument builds a ledger item; items without a usable name or
// with a negative amount are rejected.
func itemFromDocument(doc ItemDocument, receiptID string, categorizer *textnorm.Categorizer) (core.LedgerItem, bool) {
	raw := strings.TrimSpace(doc.Name)
	norm := textnorm.NormalizeName(raw)
	if raw == "" || norm == "" {
		return core.LedgerItem{}, false
	}
	item := core.LedgerItem{
		ID:        uuid.NewString(),
		ReceiptID: receiptID,
		NameRaw:   raw,
		NameNorm:  norm,
		Qty:       doc.Qty.Value,
		Amount:    doc.Amount.Value,
		Category:  strings.TrimSpace(doc.Category),
	}
	if u := strings.TrimSpace(doc.Unit); u != "" {
		item.Unit = &u
	}
	if item.Category == "" {
		item.Category = categorizer.Categorize(norm)
	}
	if err := item.Validate(); err != nil {
		return core.LedgerItem{}, false
	}
	return item, true
}

// contentHash identifies a receipt by its source path and canonical content.
func contentHash(doc ReceiptDocument) (string, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode receipt: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(doc.SourcePath)))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil)), nil
}
