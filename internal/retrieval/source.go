package retrieval

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"spendrag/internal/core"
	"spendrag/internal/log"
	"spendrag/internal/router"
)

// FileSource loads the index from disk on first use and reloads it when
// either file changes.
type FileSource struct {
	indexPath string
	metaPath  string
	logger    *log.Logger

	mu       sync.Mutex
	index    *FlatIndex
	indexMod time.Time
	metaMod  time.Time
}

var _ router.IndexSource = (*FileSource)(nil)

func NewFileSource(indexPath, metaPath string, logger *log.Logger) *FileSource {
	if logger == nil {
		logger = log.Discard()
	}
	return &FileSource{
		indexPath: indexPath,
		metaPath:  metaPath,
		logger:    logger.WithComponent(log.ComponentRetrieval),
	}
}

// Index returns the current index. A missing index or sidecar file wraps
// core.ErrCapabilityUnavailable.
func (s *FileSource) Index(ctx context.Context) (router.VectorIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	indexMod, err := modTime(s.indexPath)
	if err != nil {
		return nil, err
	}
	metaMod, err := modTime(s.metaPath)
	if err != nil {
		return nil, err
	}
	if s.index != nil && indexMod.Equal(s.indexMod) && metaMod.Equal(s.metaMod) {
		return s.index, nil
	}

	idx, err := Load(s.indexPath, s.metaPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("vector index: %w", core.ErrCapabilityUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("load vector index: %w", err)
	}
	s.index, s.indexMod, s.metaMod = idx, indexMod, metaMod
	s.logger.InfoContext(ctx, "Vector index loaded",
		"path", s.indexPath, "vectors", idx.Size(), "dim", idx.Dim())
	return idx, nil
}

func modTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, fmt.Errorf("%s: %w", path, core.ErrCapabilityUnavailable)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return info.ModTime(), nil
}
