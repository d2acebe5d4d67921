// Package kb provides semantic retrieval over the indexed knowledge
// base. A KnowledgeBase is an explicit value built from an embedder and
// a vector store; nothing here is global.
package kb

import (
	"context"
	"fmt"

	"caagent/model"
	"caagent/store"
	"caagent/types"
)

type KnowledgeBase struct {
	embedder model.Embedder
	store    store.VectorStorer
}

func New(embedder model.Embedder, storer store.VectorStorer) *KnowledgeBase {
	return &KnowledgeBase{
		embedder: embedder,
		store:    storer,
	}
}

// Enabled reports whether any chunks are indexed. With an empty store
// retrieval is silently disabled rather than treated as an error.
func (k *KnowledgeBase) Enabled(ctx context.Context) bool {
	return k.store.Len(ctx) > 0
}

// Search embeds the query and returns up to topK chunks, most similar
// first. An empty index yields an empty result without touching the
// embedding provider.
func (k *KnowledgeBase) Search(ctx context.Context, query string, topK int) ([]types.Chunk, error) {
	if !k.Enabled(ctx) {
		return nil, nil
	}

	vectors, err := k.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vector for query")
	}

	hits, err := k.store.Search(ctx, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	return hits, nil
}
