// Package retrieval holds the flat inner-product vector index over ledger
// items, its JSONL metadata sidecar and the builder that produces both.
package retrieval

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	"spendrag/internal/router"
)

const (
	indexMagic   = "SRVI"
	indexVersion = 1
)

var (
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrCorruptIndex      = errors.New("corrupt index file")
)

// FlatIndex is an exhaustive inner-product index. Vectors are stored
// L2-normalized, so scores are cosine similarities.
type FlatIndex struct {
	dim     int
	vectors []float32
	meta    []Meta
}

var _ router.VectorIndex = (*FlatIndex)(nil)

func NewFlatIndex(dim int) *FlatIndex {
	return &FlatIndex{dim: dim}
}

func (x *FlatIndex) Dim() int  { return x.dim }
func (x *FlatIndex) Size() int { return len(x.meta) }

// Add normalizes v and appends it with its metadata.
func (x *FlatIndex) Add(v []float32, m Meta) error {
	if len(v) != x.dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), x.dim)
	}
	n := Normalize(append([]float32(nil), v...))
	x.vectors = append(x.vectors, n...)
	m.Pos = len(x.meta)
	x.meta = append(x.meta, m)
	return nil
}

// Search returns the k best positions by inner product with the normalized
// query, best first. Ties keep index order.
func (x *FlatIndex) Search(query []float32, k int) ([]router.Neighbor, error) {
	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), x.dim)
	}
	if k <= 0 || x.Size() == 0 {
		return nil, nil
	}
	q := Normalize(append([]float32(nil), query...))

	hits := make([]router.Neighbor, x.Size())
	for i := range hits {
		row := x.vectors[i*x.dim : (i+1)*x.dim]
		var dot float32
		for j, f := range row {
			dot += f * q[j]
		}
		hits[i] = router.Neighbor{Pos: i, Score: dot}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// ItemID maps a position back to its ledger item id.
func (x *FlatIndex) ItemID(pos int) (string, bool) {
	if pos < 0 || pos >= len(x.meta) {
		return "", false
	}
	return x.meta[pos].ItemID, true
}

// Meta returns the sidecar record at pos.
func (x *FlatIndex) Meta(pos int) (Meta, bool) {
	if pos < 0 || pos >= len(x.meta) {
		return Meta{}, false
	}
	return x.meta[pos], true
}

// Normalize scales v to unit length in place. The zero vector is left as is.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}

// Save writes the vectors to indexPath and the metadata to metaPath. Both
// files are written to temporaries first and renamed into place.
func (x *FlatIndex) Save(indexPath, metaPath string) error {
	if err := writeAtomic(indexPath, x.writeVectors); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	if err := writeAtomic(metaPath, func(w io.Writer) error { return WriteMeta(w, x.meta) }); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// Header: magic, version, dimension, count (little endian uint32), then
// count*dim float32 values.
func (x *FlatIndex) writeVectors(w io.Writer) error {
	if _, err := io.WriteString(w, indexMagic); err != nil {
		return err
	}
	header := []uint32{indexVersion, uint32(x.dim), uint32(x.Size())}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, x.vectors)
}

// headerSize is the magic plus the three uint32 header fields.
const headerSize = len(indexMagic) + 3*4

// readVectors decodes an index of size bytes. The header's dim*count is
// checked against the bytes left before anything is allocated.
func readVectors(r io.Reader, size int64) (dim, count int, vectors []float32, err error) {
	magic := make([]byte, len(indexMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != indexMagic {
		return 0, 0, nil, fmt.Errorf("%w: bad magic", ErrCorruptIndex)
	}
	header := make([]uint32, 3)
	if err := binary.Read(r, binary.LittleEndian, header); err != nil {
		return 0, 0, nil, fmt.Errorf("%w: header: %v", ErrCorruptIndex, err)
	}
	if header[0] != indexVersion {
		return 0, 0, nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptIndex, header[0])
	}
	values := uint64(header[1]) * uint64(header[2])
	if left := size - int64(headerSize); left < 0 || values > uint64(left)/4 {
		return 0, 0, nil, fmt.Errorf("%w: header claims %d vectors of dim %d, file has %d bytes",
			ErrCorruptIndex, header[2], header[1], size)
	}
	dim, count = int(header[1]), int(header[2])
	vectors = make([]float32, values)
	if err := binary.Read(r, binary.LittleEndian, vectors); err != nil {
		return 0, 0, nil, fmt.Errorf("%w: vectors: %v", ErrCorruptIndex, err)
	}
	return dim, count, vectors, nil
}

// Load reads an index and its sidecar. The sidecar must have exactly one
// record per vector.
func Load(indexPath, metaPath string) (*FlatIndex, error) {
	f, err := os.Open(indexPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	dim, count, vectors, err := readVectors(bufio.NewReader(f), info.Size())
	if err != nil {
		return nil, err
	}

	mf, err := os.Open(metaPath)
	if err != nil {
		return nil, err
	}
	defer mf.Close()
	meta, err := ReadMeta(mf)
	if err != nil {
		return nil, err
	}
	if len(meta) != count {
		return nil, fmt.Errorf("%w: %d vectors but %d metadata records", ErrCorruptIndex, count, len(meta))
	}
	for i := range meta {
		meta[i].Pos = i
	}
	return &FlatIndex{dim: dim, vectors: vectors, meta: meta}, nil
}

func writeAtomic(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
