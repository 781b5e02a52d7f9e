package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/himeno-lab/kotori/pkg/domain/interfaces"
	"github.com/himeno-lab/kotori/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
)

// distanceField receives the cosine distance computed by FindNearest.
// Similarity reported to callers is 1 - distance.
const distanceField = "Distance"

// memoryDoc is the Firestore document representation of model.Memory.
// Embedding is stored as firestore.Vector32 for FindNearest vector search.
type memoryDoc struct {
	ID        model.MemoryID     `firestore:"ID"`
	Text      string             `firestore:"Text"`
	Embedding firestore.Vector32 `firestore:"Embedding,omitempty"`
	CreatedAt time.Time          `firestore:"CreatedAt"`
	Distance  float64            `firestore:"Distance,omitempty"`
}

func toMemoryDoc(m *model.Memory) *memoryDoc {
	doc := &memoryDoc{
		ID:        m.ID,
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
	}
	if len(m.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(m.Embedding)
	}
	return doc
}

func fromMemoryDoc(d *memoryDoc) *model.Memory {
	m := &model.Memory{
		ID:        d.ID,
		Text:      d.Text,
		CreatedAt: d.CreatedAt,
	}
	if len(d.Embedding) > 0 {
		m.Embedding = []float32(d.Embedding)
	}
	return m
}

// MemoryIndex is the Firestore-backed long-term memory vector index.
// All memory records live in a single global collection shared across
// threads.
type MemoryIndex struct {
	client *firestore.Client
}

var _ interfaces.MemoryIndex = &MemoryIndex{}

func (r *MemoryIndex) collection() *firestore.CollectionRef {
	return r.client.Collection(memoryCollection)
}

func (r *MemoryIndex) Upsert(ctx context.Context, mem *model.Memory) error {
	if mem.ID == "" {
		return goerr.New("memory ID is required for upsert")
	}

	docRef := r.collection().Doc(string(mem.ID))
	if _, err := docRef.Set(ctx, toMemoryDoc(mem)); err != nil {
		return goerr.Wrap(err, "failed to upsert memory", goerr.V("memoryID", mem.ID))
	}
	return nil
}

func (r *MemoryIndex) FindNearest(ctx context.Context, embedding []float32, limit int) ([]*model.ScoredMemory, error) {
	vq := r.collection().FindNearest("Embedding",
		firestore.Vector32(embedding),
		limit,
		firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{DistanceResultField: distanceField},
	)

	iter := vq.Documents(ctx)
	defer iter.Stop()

	results := make([]*model.ScoredMemory, 0, limit)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate memory vector search results")
		}

		var d memoryDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal memory from vector search")
		}

		results = append(results, &model.ScoredMemory{
			Memory: fromMemoryDoc(&d),
			Score:  1 - d.Distance,
		})
	}

	return results, nil
}

func (r *MemoryIndex) Exists(ctx context.Context) (bool, error) {
	iter := r.collection().Limit(1).Documents(ctx)
	defer iter.Stop()

	if _, err := iter.Next(); err != nil {
		if err == iterator.Done {
			return false, nil
		}
		return false, goerr.Wrap(err, "failed to check memory collection")
	}
	return true, nil
}

func (r *MemoryIndex) Close() error {
	return nil
}
