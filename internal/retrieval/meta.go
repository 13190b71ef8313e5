package retrieval

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Meta is one sidecar record: the ledger item behind a vector and the
// document text it was embedded from.
type Meta struct {
	Pos       int      `json:"-"`
	ItemID    string   `json:"item_id"`
	ReceiptID string   `json:"receipt_id"`
	Merchant  *string  `json:"merchant"`
	Date      *string  `json:"date"`
	NameNorm  string   `json:"name_norm"`
	Category  string   `json:"category"`
	Qty       *float64 `json:"qty"`
	Unit      *string  `json:"unit"`
	Amount    *float64 `json:"amount"`
	Doc       string   `json:"doc"`
}

// WriteMeta writes one JSON object per line.
func WriteMeta(w io.Writer, records []Meta) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, m := range records {
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("encode metadata %s: %w", m.ItemID, err)
		}
	}
	return nil
}

// ReadMeta reads a JSONL sidecar, skipping blank lines.
func ReadMeta(r io.Reader) ([]Meta, error) {
	var out []Meta
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var m Meta
		if err := json.Unmarshal([]byte(text), &m); err != nil {
			return nil, fmt.Errorf("%w: metadata line %d: %v", ErrCorruptIndex, line, err)
		}
		if m.ItemID == "" {
			return nil, fmt.Errorf("%w: metadata line %d: missing item_id", ErrCorruptIndex, line)
		}
		out = append(out, m)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	return out, nil
}
