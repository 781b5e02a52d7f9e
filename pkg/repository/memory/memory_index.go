package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/himeno-lab/kotori/pkg/domain/interfaces"
	"github.com/himeno-lab/kotori/pkg/domain/model"
)

// MemoryIndex is an in-process vector index over memory records. The
// index is "created" lazily on the first upsert, mirroring the
// auto-create behavior of the real backends.
type MemoryIndex struct {
	mu      sync.RWMutex
	created bool
	records map[model.MemoryID]*model.Memory
}

var _ interfaces.MemoryIndex = &MemoryIndex{}

func newMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		records: make(map[model.MemoryID]*model.Memory),
	}
}

func copyMemory(m *model.Memory) *model.Memory {
	copied := &model.Memory{
		ID:        m.ID,
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
	}
	if m.Embedding != nil {
		copied.Embedding = make([]float32, len(m.Embedding))
		copy(copied.Embedding, m.Embedding)
	}
	return copied
}

func (r *MemoryIndex) Upsert(ctx context.Context, mem *model.Memory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.created = true
	r.records[mem.ID] = copyMemory(mem)
	return nil
}

func (r *MemoryIndex) FindNearest(ctx context.Context, embedding []float32, limit int) ([]*model.ScoredMemory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.created || limit <= 0 {
		return []*model.ScoredMemory{}, nil
	}

	candidates := make([]*model.ScoredMemory, 0, len(r.records))
	for _, m := range r.records {
		if len(m.Embedding) == 0 {
			continue
		}
		candidates = append(candidates, &model.ScoredMemory{
			Memory: copyMemory(m),
			Score:  cosineSimilarity(embedding, m.Embedding),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if limit > len(candidates) {
		limit = len(candidates)
	}
	return candidates[:limit], nil
}

func (r *MemoryIndex) Exists(ctx context.Context) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.created, nil
}

func (r *MemoryIndex) Close() error {
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}

	return dot / denom
}
