package memory

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/himeno-lab/kotori/pkg/domain/interfaces"
	"github.com/himeno-lab/kotori/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/gollem-dev/gollem"
)

// Store is the long-term memory store: it turns text into embeddings
// and delegates vector operations to the configured index backend.
// Embeddings for recently seen texts are cached so repeated queries and
// dedup checks do not re-invoke the embedding capability.
type Store struct {
	index interfaces.MemoryIndex
	llm   gollem.LLMClient
	cache *ristretto.Cache
}

// NewStore creates a Store over the given index backend
func NewStore(index interfaces.MemoryIndex, llmClient gollem.LLMClient) (*Store, error) {
	if index == nil {
		return nil, goerr.New("memory index is required")
	}
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     32 << 20, // ~32MiB of embeddings
		BufferItems: 64,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embedding cache")
	}

	return &Store{
		index: index,
		llm:   llmClient,
		cache: cache,
	}, nil
}

// Search embeds the query text and returns up to k records ranked by
// similarity, highest first. An uninitialized index yields an empty
// result.
func (s *Store) Search(ctx context.Context, queryText string, k int) ([]*model.ScoredMemory, error) {
	if queryText == "" || k <= 0 {
		return []*model.ScoredMemory{}, nil
	}

	embedding, err := s.embed(ctx, queryText)
	if err != nil {
		return nil, err
	}

	results, err := s.index.FindNearest(ctx, embedding, k)
	if err != nil {
		return nil, goerr.Wrap(err, "memory index search failed")
	}
	return results, nil
}

// Upsert writes the record at the given identity. When id belongs to an
// existing record the record is overwritten in place.
func (s *Store) Upsert(ctx context.Context, text string, id model.MemoryID, timestamp time.Time) error {
	if text == "" {
		return goerr.New("memory text must not be empty")
	}
	if id == "" {
		id = model.MemoryIDFromText(text)
	}

	embedding, err := s.embed(ctx, text)
	if err != nil {
		return err
	}

	mem := &model.Memory{
		ID:        id,
		Text:      text,
		Embedding: embedding,
		CreatedAt: timestamp,
	}
	if err := s.index.Upsert(ctx, mem); err != nil {
		return goerr.Wrap(err, "memory index upsert failed", goerr.V("memoryID", id))
	}
	return nil
}

// Exists reports whether the backing index has been initialized
func (s *Store) Exists(ctx context.Context) (bool, error) {
	return s.index.Exists(ctx)
}

func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := s.cache.Get(text); ok {
		if vec, ok := cached.([]float32); ok {
			return vec, nil
		}
	}

	embeddings, err := s.llm.GenerateEmbedding(ctx, model.EmbeddingDimension, []string{text})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding")
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, goerr.New("embedding generation returned empty result")
	}

	vec := make([]float32, len(embeddings[0]))
	for i, v := range embeddings[0] {
		vec[i] = float32(v)
	}

	s.cache.Set(text, vec, int64(len(vec)*4))
	return vec, nil
}
