package interfaces

import (
	"context"

	"github.com/himeno-lab/kotori/pkg/domain/model"
)

// MemoryIndex is the raw vector index behind the long-term memory
// store: upsert by identity, nearest-neighbor search, existence check.
// Embeddings are computed by the caller.
type MemoryIndex interface {
	// Upsert writes or overwrites the record at mem.ID. The backing
	// index is created on first write if absent.
	Upsert(ctx context.Context, mem *model.Memory) error

	// FindNearest performs cosine similarity search and returns up to
	// limit records, highest similarity first. An uninitialized index
	// yields an empty result, not an error.
	FindNearest(ctx context.Context, embedding []float32, limit int) ([]*model.ScoredMemory, error)

	// Exists reports whether the backing index has been initialized
	Exists(ctx context.Context) (bool, error)

	Close() error
}
