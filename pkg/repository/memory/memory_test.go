package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/himeno-lab/kotori/pkg/domain/model"
	"github.com/himeno-lab/kotori/pkg/domain/types"
	"github.com/himeno-lab/kotori/pkg/repository/memory"
	"github.com/m-mizutani/gt"
)

func TestThreadRepository(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	t.Run("Get creates empty state for unknown thread", func(t *testing.T) {
		state, err := repo.Get(ctx, "t-new")
		gt.NoError(t, err).Required()
		gt.Value(t, state.ThreadID).Equal(types.ThreadID("t-new"))
		gt.Array(t, state.Messages).Length(0)
		gt.Value(t, state.Workflow).Equal(types.WorkflowConversation)
	})

	t.Run("Put then Get round-trips messages and summary", func(t *testing.T) {
		state := model.NewThreadState("t-1")
		state.Append(model.NewHumanMessage("hello"))
		state.Append(model.NewAssistantMessage("hi there"))
		state.Summary = "greeting exchange"
		state.CurrentActivity = "Sketching at the park"

		gt.NoError(t, repo.Put(ctx, state)).Required()

		loaded, err := repo.Get(ctx, "t-1")
		gt.NoError(t, err).Required()
		gt.Array(t, loaded.Messages).Length(2)
		gt.Value(t, loaded.Messages[0].Role).Equal(types.RoleHuman)
		gt.Value(t, loaded.Messages[1].Content).Equal("hi there")
		gt.Value(t, loaded.Summary).Equal("greeting exchange")
		gt.Value(t, loaded.CurrentActivity).Equal("Sketching at the park")
	})

	t.Run("Put replaces the whole state", func(t *testing.T) {
		state := model.NewThreadState("t-2")
		for i := 0; i < 6; i++ {
			state.Append(model.NewHumanMessage("msg"))
		}
		gt.NoError(t, repo.Put(ctx, state)).Required()

		state.Truncate(2)
		state.Summary = "condensed"
		gt.NoError(t, repo.Put(ctx, state)).Required()

		loaded, err := repo.Get(ctx, "t-2")
		gt.NoError(t, err).Required()
		gt.Array(t, loaded.Messages).Length(2)
		gt.Value(t, loaded.Summary).Equal("condensed")
	})

	t.Run("memory context is not persisted", func(t *testing.T) {
		state := model.NewThreadState("t-3")
		state.MemoryContext = "- User has a parakeet"
		gt.NoError(t, repo.Put(ctx, state)).Required()

		loaded, err := repo.Get(ctx, "t-3")
		gt.NoError(t, err).Required()
		gt.Value(t, loaded.MemoryContext).Equal("")
	})

	t.Run("stored state is isolated from the caller's copy", func(t *testing.T) {
		state := model.NewThreadState("t-4")
		state.Append(model.NewHumanMessage("original"))
		gt.NoError(t, repo.Put(ctx, state)).Required()

		state.Messages[0].Content = "mutated"

		loaded, err := repo.Get(ctx, "t-4")
		gt.NoError(t, err).Required()
		gt.Value(t, loaded.Messages[0].Content).Equal("original")
	})

	t.Run("empty thread ID is rejected", func(t *testing.T) {
		_, err := repo.Get(ctx, "")
		gt.Error(t, err)
	})
}

func TestMemoryIndex(t *testing.T) {
	ctx := context.Background()

	mem := func(id, text string, vec []float32) *model.Memory {
		return &model.Memory{
			ID:        model.MemoryID(id),
			Text:      text,
			Embedding: vec,
			CreatedAt: time.Now().UTC(),
		}
	}

	t.Run("uninitialized index yields empty results", func(t *testing.T) {
		idx := memory.NewIndex()

		exists, err := idx.Exists(ctx)
		gt.NoError(t, err)
		gt.Bool(t, exists).False()

		results, err := idx.FindNearest(ctx, []float32{1, 0}, 3)
		gt.NoError(t, err)
		gt.Array(t, results).Length(0)
	})

	t.Run("results are ranked by similarity", func(t *testing.T) {
		idx := memory.NewIndex()
		gt.NoError(t, idx.Upsert(ctx, mem("a", "close", []float32{1, 0, 0}))).Required()
		gt.NoError(t, idx.Upsert(ctx, mem("b", "far", []float32{0, 1, 0}))).Required()
		gt.NoError(t, idx.Upsert(ctx, mem("c", "middle", []float32{0.7, 0.7, 0}))).Required()

		results, err := idx.FindNearest(ctx, []float32{1, 0, 0}, 3)
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(3)
		gt.Value(t, results[0].Memory.Text).Equal("close")
		gt.Value(t, results[1].Memory.Text).Equal("middle")
		gt.Value(t, results[2].Memory.Text).Equal("far")
		gt.Number(t, results[0].Score).GreaterOrEqual(results[1].Score)
	})

	t.Run("limit clamps the result set", func(t *testing.T) {
		idx := memory.NewIndex()
		gt.NoError(t, idx.Upsert(ctx, mem("a", "one", []float32{1, 0}))).Required()
		gt.NoError(t, idx.Upsert(ctx, mem("b", "two", []float32{0, 1}))).Required()

		results, err := idx.FindNearest(ctx, []float32{1, 0}, 1)
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(1)
	})

	t.Run("upsert with same ID overwrites", func(t *testing.T) {
		idx := memory.NewIndex()
		gt.NoError(t, idx.Upsert(ctx, mem("a", "before", []float32{1, 0}))).Required()
		gt.NoError(t, idx.Upsert(ctx, mem("a", "after", []float32{1, 0}))).Required()

		results, err := idx.FindNearest(ctx, []float32{1, 0}, 5)
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(1)
		gt.Value(t, results[0].Memory.Text).Equal("after")
	})
}
