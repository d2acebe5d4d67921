// Package service builds the knowledge base index: chunk every
// document in the KB folder, embed the chunks in one batch, and
// persist vectors and metadata position-aligned.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"caagent/loader/internal"
	"caagent/model"
	"caagent/store"
	"caagent/types"
)

type Service struct {
	embedder   model.Embedder
	store      store.VectorStorer
	kbDir      string
	chunkSize  int
	doclingURL string
	logger     *slog.Logger
}

func New(embedder model.Embedder, storer store.VectorStorer, kbDir string, chunkSize int, doclingURL string) *Service {
	return &Service{
		embedder:   embedder,
		store:      storer,
		kbDir:      kbDir,
		chunkSize:  chunkSize,
		doclingURL: doclingURL,
		logger:     slog.Default(),
	}
}

// Run builds and persists the index. An empty document folder is
// reported and nothing is written; any other failure aborts the build
// so a half-built index never reaches disk.
func (s *Service) Run(ctx context.Context) error {
	chunks, err := s.collectChunks(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("collected chunks", "total", len(chunks))

	if len(chunks) == 0 {
		s.logger.Warn("no documents found, nothing to index", "dir", s.kbDir)
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}

	if err := s.store.Add(ctx, chunks, vectors); err != nil {
		return fmt.Errorf("add to index: %w", err)
	}
	if err := s.store.Persist(); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}

	s.logger.Info("index written", "chunks", len(chunks))
	return nil
}

// collectChunks walks the KB folder in name order so index positions
// are deterministic across builds.
func (s *Service) collectChunks(ctx context.Context) ([]types.Chunk, error) {
	entries, err := os.ReadDir(s.kbDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var chunks []types.Chunk
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		text, err := internal.ReadDocument(ctx, filepath.Join(s.kbDir, name), s.doclingURL)
		if err != nil {
			if errors.Is(err, internal.ErrUnsupported) {
				continue
			}
			if errors.Is(err, internal.ErrNoConverter) {
				s.logger.Warn("skipping PDF, set DOCLING_URL to index it", "file", name)
				continue
			}
			return nil, fmt.Errorf("read %s: %w", name, err)
		}

		for _, part := range internal.SplitText(text, s.chunkSize) {
			chunks = append(chunks, types.Chunk{File: name, Text: part})
		}
	}
	return chunks, nil
}
