package chromem

import (
	"context"
	"sync"
	"time"

	"github.com/himeno-lab/kotori/pkg/domain/interfaces"
	"github.com/himeno-lab/kotori/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
	chromem "github.com/philippgille/chromem-go"
)

const collectionName = "long_term_memory"

// MemoryIndex is an embedded pure-Go vector index over memory records,
// suitable for local and single-process deployments. When a path is
// given the index is persisted on disk.
type MemoryIndex struct {
	db *chromem.DB

	mu         sync.Mutex
	collection *chromem.Collection
}

var _ interfaces.MemoryIndex = &MemoryIndex{}

// New creates an in-process volatile index
func New() *MemoryIndex {
	return &MemoryIndex{db: chromem.NewDB()}
}

// NewPersistent creates an index persisted under the given directory
func NewPersistent(path string) (*MemoryIndex, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open chromem database", goerr.V("path", path))
	}

	idx := &MemoryIndex{db: db}
	// A previously persisted collection is picked up at open time
	if col := db.GetCollection(collectionName, nil); col != nil {
		idx.collection = col
	}
	return idx, nil
}

// getCollection returns the collection without creating it
func (r *MemoryIndex) getCollection() *chromem.Collection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collection
}

// ensureCollection creates the collection on first use
func (r *MemoryIndex) ensureCollection() (*chromem.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.collection != nil {
		return r.collection, nil
	}

	// Embeddings are always supplied by the caller, so no embedding
	// func is configured. Default distance is cosine.
	col, err := r.db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create chromem collection")
	}
	r.collection = col
	return col, nil
}

func (r *MemoryIndex) Upsert(ctx context.Context, mem *model.Memory) error {
	if mem.ID == "" {
		return goerr.New("memory ID is required for upsert")
	}

	col, err := r.ensureCollection()
	if err != nil {
		return err
	}

	doc := chromem.Document{
		ID:        string(mem.ID),
		Content:   mem.Text,
		Embedding: mem.Embedding,
		Metadata: map[string]string{
			"created_at": mem.CreatedAt.UTC().Format(time.RFC3339),
		},
	}

	if err := col.AddDocument(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to add document to chromem", goerr.V("memoryID", mem.ID))
	}
	return nil
}

func (r *MemoryIndex) FindNearest(ctx context.Context, embedding []float32, limit int) ([]*model.ScoredMemory, error) {
	col := r.getCollection()
	if col == nil || limit <= 0 {
		return []*model.ScoredMemory{}, nil
	}

	// chromem rejects queries asking for more results than stored
	count := col.Count()
	if count == 0 {
		return []*model.ScoredMemory{}, nil
	}
	if limit > count {
		limit = count
	}

	hits, err := col.QueryEmbedding(ctx, embedding, limit, nil, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query chromem collection")
	}

	results := make([]*model.ScoredMemory, 0, len(hits))
	for _, hit := range hits {
		mem := &model.Memory{
			ID:        model.MemoryID(hit.ID),
			Text:      hit.Content,
			Embedding: hit.Embedding,
		}
		if ts, err := time.Parse(time.RFC3339, hit.Metadata["created_at"]); err == nil {
			mem.CreatedAt = ts
		}
		results = append(results, &model.ScoredMemory{
			Memory: mem,
			Score:  float64(hit.Similarity),
		})
	}

	return results, nil
}

func (r *MemoryIndex) Exists(ctx context.Context) (bool, error) {
	return r.getCollection() != nil, nil
}

func (r *MemoryIndex) Close() error {
	return nil
}
