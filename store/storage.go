package store

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"caagent/types"
)

// VectorStorer persists chunk vectors and supports top-k similarity
// search. Vectors are expected to be L2-normalized by the caller, so
// inner product equals cosine similarity.
type VectorStorer interface {
	Add(ctx context.Context, chunks []types.Chunk, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, topK int) ([]types.Chunk, error)
	Len(ctx context.Context) int
	Persist() error
}

// FileStore is a flat in-memory index persisted as two files: a gob
// blob of vectors and a JSON array of chunk metadata. The two are
// position-aligned: vector i belongs to meta[i].
type FileStore struct {
	indexFile string
	metaFile  string
	dim       int
	vectors   [][]float32
	meta      []types.Chunk
	logger    *slog.Logger
}

// NewEmptyFileStore returns a FileStore that ignores any existing
// files. The loader uses it so every build starts from scratch.
func NewEmptyFileStore(indexFile, metaFile string) *FileStore {
	return &FileStore{
		indexFile: indexFile,
		metaFile:  metaFile,
		logger:    slog.Default(),
	}
}

// NewFileStore loads the index and metadata files if both exist.
// Missing files are not an error: the store starts empty and search
// returns no hits, which disables retrieval without failing startup.
func NewFileStore(indexFile, metaFile string) (*FileStore, error) {
	s := &FileStore{
		indexFile: indexFile,
		metaFile:  metaFile,
		logger:    slog.Default(),
	}

	f, err := os.Open(indexFile)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("index or metadata not found, retrieval disabled", "index", indexFile)
			return s, nil
		}
		return nil, err
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(&s.vectors); err != nil {
		return nil, fmt.Errorf("decode index %s: %w", indexFile, err)
	}

	metaData, err := os.ReadFile(metaFile)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("metadata file not found, retrieval disabled", "meta", metaFile)
			s.vectors = nil
			return s, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(metaData, &s.meta); err != nil {
		return nil, fmt.Errorf("decode metadata %s: %w", metaFile, err)
	}

	if len(s.meta) != len(s.vectors) {
		return nil, fmt.Errorf("index/metadata misaligned: %d vectors, %d metadata entries", len(s.vectors), len(s.meta))
	}
	if len(s.vectors) > 0 {
		s.dim = len(s.vectors[0])
	}
	s.logger.Info("loaded knowledge base index", "chunks", len(s.meta), "dim", s.dim)
	return s, nil
}

func (s *FileStore) Add(_ context.Context, chunks []types.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	for _, v := range vectors {
		if s.dim == 0 {
			s.dim = len(v)
		}
		if len(v) != s.dim {
			return fmt.Errorf("vector dimension mismatch: want %d, got %d", s.dim, len(v))
		}
	}
	s.meta = append(s.meta, chunks...)
	s.vectors = append(s.vectors, vectors...)
	return nil
}

// Search returns the metadata of the topK most similar chunks, best
// first. Positions that fall outside the metadata range are skipped.
func (s *FileStore) Search(_ context.Context, vector []float32, topK int) ([]types.Chunk, error) {
	if len(s.vectors) == 0 || topK <= 0 {
		return nil, nil
	}
	if len(vector) != s.dim {
		return nil, fmt.Errorf("query dimension mismatch: index has %d, query has %d", s.dim, len(vector))
	}

	positions := make([]int, len(s.vectors))
	scores := make([]float32, len(s.vectors))
	for i, v := range s.vectors {
		positions[i] = i
		scores[i] = dot(v, vector)
	}
	sort.SliceStable(positions, func(a, b int) bool {
		return scores[positions[a]] > scores[positions[b]]
	})

	if topK > len(positions) {
		topK = len(positions)
	}
	hits := make([]types.Chunk, 0, topK)
	for _, pos := range positions[:topK] {
		if pos < 0 || pos >= len(s.meta) {
			continue
		}
		hits = append(hits, s.meta[pos])
	}
	return hits, nil
}

func (s *FileStore) Len(_ context.Context) int {
	return len(s.meta)
}

// Persist writes the index and metadata files, index first through a
// temp file so a crash never leaves a truncated blob behind.
func (s *FileStore) Persist() error {
	tmp := s.indexFile + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(s.vectors); err != nil {
		f.Close()
		return fmt.Errorf("encode index: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.indexFile); err != nil {
		return err
	}

	metaData, err := json.MarshalIndent(s.meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return os.WriteFile(s.metaFile, metaData, 0644)
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
