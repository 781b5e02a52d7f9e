package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/himeno-lab/kotori/pkg/domain/model"
	repo "github.com/himeno-lab/kotori/pkg/repository/memory"
	"github.com/himeno-lab/kotori/pkg/service/memory"
	"github.com/gollem-dev/gollem"
	"github.com/m-mizutani/gt"
)

// mockLLMSession is a mock gollem Session for testing
type mockLLMSession struct {
	generateContentFn func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
}

func (s *mockLLMSession) Generate(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
	return s.GenerateContent(ctx, input...)
}

func (s *mockLLMSession) Stream(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (<-chan *gollem.Response, error) {
	return s.GenerateStream(ctx, input...)
}

func (s *mockLLMSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	if s.generateContentFn != nil {
		return s.generateContentFn(ctx, input...)
	}
	return &gollem.Response{Texts: []string{"{}"}}, nil
}

func (s *mockLLMSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *mockLLMSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *mockLLMSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *mockLLMSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

// mockLLMClient is a mock gollem LLMClient for testing. Analysis
// responses are served from a queue; embeddings come from the vector
// table keyed by input text.
type mockLLMClient struct {
	responses  []string
	embeddings map[string][]float64
	fallback   []float64
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	return &mockLLMSession{
		generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
			if len(c.responses) == 0 {
				return &gollem.Response{Texts: []string{"{}"}}, nil
			}
			next := c.responses[0]
			c.responses = c.responses[1:]
			return &gollem.Response{Texts: []string{next}}, nil
		},
	}, nil
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	out := make([][]float64, len(input))
	for i, text := range input {
		if vec, ok := c.embeddings[text]; ok {
			out[i] = vec
		} else {
			out[i] = c.fallback
		}
	}
	return out, nil
}

// stubIndex reports a fixed nearest neighbor and records upserts, so
// dedup decisions can be asserted at exact similarity values.
type stubIndex struct {
	nearest  []*model.ScoredMemory
	upserted []*model.Memory
}

func (s *stubIndex) Upsert(ctx context.Context, mem *model.Memory) error {
	s.upserted = append(s.upserted, mem)
	return nil
}

func (s *stubIndex) FindNearest(ctx context.Context, embedding []float32, limit int) ([]*model.ScoredMemory, error) {
	if limit < len(s.nearest) {
		return s.nearest[:limit], nil
	}
	return s.nearest, nil
}

func (s *stubIndex) Exists(ctx context.Context) (bool, error) {
	return len(s.nearest) > 0 || len(s.upserted) > 0, nil
}

func (s *stubIndex) Close() error {
	return nil
}

func newManager(t *testing.T, llm *mockLLMClient) (*memory.Manager, *memory.Store) {
	t.Helper()
	store, err := memory.NewStore(repo.NewIndex(), llm)
	gt.NoError(t, err).Required()
	mgr, err := memory.NewManager(store, llm)
	gt.NoError(t, err).Required()
	return mgr, store
}

func TestExtractAndStore(t *testing.T) {
	ctx := context.Background()

	t.Run("stores an important fact", func(t *testing.T) {
		llm := &mockLLMClient{
			responses: []string{`{"is_important": true, "formatted_memory": "User has a parakeet named Mugi"}`},
			fallback:  []float64{1, 0, 0},
		}
		mgr, store := newManager(t, llm)

		err := mgr.ExtractAndStore(ctx, model.NewHumanMessage("I just adopted a parakeet, his name is Mugi!"))
		gt.NoError(t, err).Required()

		results, err := store.Search(ctx, "User has a parakeet named Mugi", 1)
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(1)
		gt.Value(t, results[0].Memory.Text).Equal("User has a parakeet named Mugi")
	})

	t.Run("skips unimportant messages", func(t *testing.T) {
		llm := &mockLLMClient{
			responses: []string{`{"is_important": false, "formatted_memory": ""}`},
			fallback:  []float64{1, 0, 0},
		}
		mgr, store := newManager(t, llm)

		err := mgr.ExtractAndStore(ctx, model.NewHumanMessage("lol ok"))
		gt.NoError(t, err)

		exists, err := store.Exists(ctx)
		gt.NoError(t, err)
		gt.Bool(t, exists).False()
	})

	t.Run("ignores assistant messages without analysis", func(t *testing.T) {
		llm := &mockLLMClient{fallback: []float64{1, 0, 0}}
		mgr, store := newManager(t, llm)

		err := mgr.ExtractAndStore(ctx, model.NewAssistantMessage("I live in Kyoto"))
		gt.NoError(t, err)

		exists, err := store.Exists(ctx)
		gt.NoError(t, err)
		gt.Bool(t, exists).False()
	})

	t.Run("near-duplicate reuses the existing record ID", func(t *testing.T) {
		// Unit vectors ~8 degrees apart: cosine similarity ~0.99.
		llm := &mockLLMClient{
			responses: []string{`{"is_important": true, "formatted_memory": "User loves birdwatching"}`},
			embeddings: map[string][]float64{
				"User likes watching birds": {1, 0, 0},
				"User loves birdwatching":   {0.99, 0.141, 0},
			},
		}
		mgr, store := newManager(t, llm)

		originalID := model.NewMemoryID()
		gt.NoError(t, store.Upsert(ctx, "User likes watching birds", originalID, time.Now().UTC())).Required()

		err := mgr.ExtractAndStore(ctx, model.NewHumanMessage("I really love birdwatching"))
		gt.NoError(t, err).Required()

		results, err := store.Search(ctx, "User loves birdwatching", 5)
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(1)
		gt.Value(t, results[0].Memory.ID).Equal(originalID)
		gt.Value(t, results[0].Memory.Text).Equal("User loves birdwatching")
	})

	t.Run("similarity exactly at the threshold counts as duplicate", func(t *testing.T) {
		// Float-constructed embeddings can't hit the boundary exactly,
		// so pin the nearest-neighbor score through a stub index.
		existingID := model.NewMemoryID()
		idx := &stubIndex{
			nearest: []*model.ScoredMemory{{
				Memory: &model.Memory{ID: existingID, Text: "User keeps a parakeet"},
				Score:  memory.DedupThreshold,
			}},
		}
		llm := &mockLLMClient{
			responses: []string{`{"is_important": true, "formatted_memory": "User has a parakeet"}`},
			fallback:  []float64{1, 0, 0},
		}
		store, err := memory.NewStore(idx, llm)
		gt.NoError(t, err).Required()
		mgr, err := memory.NewManager(store, llm)
		gt.NoError(t, err).Required()

		gt.NoError(t, mgr.ExtractAndStore(ctx, model.NewHumanMessage("I have a parakeet"))).Required()

		gt.Array(t, idx.upserted).Length(1).Required()
		gt.Value(t, idx.upserted[0].ID).Equal(existingID)
	})

	t.Run("distinct fact gets its own record", func(t *testing.T) {
		// Orthogonal vectors: similarity 0, well below the threshold.
		llm := &mockLLMClient{
			responses: []string{`{"is_important": true, "formatted_memory": "User works as a nurse"}`},
			embeddings: map[string][]float64{
				"User likes watching birds": {1, 0, 0},
				"User works as a nurse":     {0, 1, 0},
			},
		}
		mgr, store := newManager(t, llm)

		gt.NoError(t, store.Upsert(ctx, "User likes watching birds", model.NewMemoryID(), time.Now().UTC())).Required()

		err := mgr.ExtractAndStore(ctx, model.NewHumanMessage("I work as a nurse"))
		gt.NoError(t, err).Required()

		results, err := store.Search(ctx, "User works as a nurse", 5)
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(2)
	})
}

func TestGetRelevant(t *testing.T) {
	ctx := context.Background()

	t.Run("empty context yields no memories", func(t *testing.T) {
		llm := &mockLLMClient{fallback: []float64{1, 0, 0}}
		mgr, _ := newManager(t, llm)

		memories, err := mgr.GetRelevant(ctx, "   ")
		gt.NoError(t, err)
		gt.Array(t, memories).Length(0)
	})

	t.Run("empty store yields no memories", func(t *testing.T) {
		llm := &mockLLMClient{fallback: []float64{1, 0, 0}}
		mgr, _ := newManager(t, llm)

		memories, err := mgr.GetRelevant(ctx, "what did I tell you about my pets?")
		gt.NoError(t, err)
		gt.Array(t, memories).Length(0)
	})

	t.Run("returns memories by descending similarity", func(t *testing.T) {
		llm := &mockLLMClient{
			embeddings: map[string][]float64{
				"User has a parakeet":       {1, 0, 0},
				"User works as a nurse":     {0, 1, 0},
				"User lives in Osaka":       {0.2, 0.2, 1},
				"tell me about my parakeet": {0.95, 0.1, 0},
			},
		}
		mgr, store := newManager(t, llm)

		now := time.Now().UTC()
		gt.NoError(t, store.Upsert(ctx, "User has a parakeet", model.NewMemoryID(), now)).Required()
		gt.NoError(t, store.Upsert(ctx, "User works as a nurse", model.NewMemoryID(), now)).Required()
		gt.NoError(t, store.Upsert(ctx, "User lives in Osaka", model.NewMemoryID(), now)).Required()

		memories, err := mgr.GetRelevant(ctx, "tell me about my parakeet")
		gt.NoError(t, err).Required()
		gt.Array(t, memories).Length(3)
		gt.Value(t, memories[0]).Equal("User has a parakeet")
	})
}

func TestFormatForPrompt(t *testing.T) {
	llm := &mockLLMClient{fallback: []float64{1, 0, 0}}
	mgr, _ := newManager(t, llm)

	t.Run("bullet list", func(t *testing.T) {
		got := mgr.FormatForPrompt([]string{"User has a parakeet", "User works as a nurse"})
		gt.Value(t, got).Equal("- User has a parakeet\n- User works as a nurse")
	})

	t.Run("empty input yields empty string", func(t *testing.T) {
		gt.Value(t, mgr.FormatForPrompt(nil)).Equal("")
	})
}
