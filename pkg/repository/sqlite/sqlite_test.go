package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/himeno-lab/kotori/pkg/domain/model"
	"github.com/himeno-lab/kotori/pkg/domain/types"
	"github.com/himeno-lab/kotori/pkg/repository/sqlite"
	"github.com/m-mizutani/gt"
)

func newRepo(t *testing.T) *sqlite.ThreadRepository {
	t.Helper()
	repo, err := sqlite.New(filepath.Join(t.TempDir(), "threads.db"))
	gt.NoError(t, err).Required()
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestThreadRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Get creates empty state for unknown thread", func(t *testing.T) {
		repo := newRepo(t)

		state, err := repo.Get(ctx, "t-new")
		gt.NoError(t, err).Required()
		gt.Value(t, state.ThreadID).Equal(types.ThreadID("t-new"))
		gt.Array(t, state.Messages).Length(0)
		gt.Value(t, state.Workflow).Equal(types.WorkflowConversation)
	})

	t.Run("Put then Get round-trips the state", func(t *testing.T) {
		repo := newRepo(t)

		state := model.NewThreadState("t-1")
		state.Append(model.NewHumanMessage("hello"))
		state.Append(model.NewAssistantMessage("hi there"))
		state.Summary = "greeting exchange"
		state.Workflow = types.WorkflowAudio
		state.CurrentActivity = "Barista shift"
		state.ApplyActivity = true

		gt.NoError(t, repo.Put(ctx, state)).Required()

		loaded, err := repo.Get(ctx, "t-1")
		gt.NoError(t, err).Required()
		gt.Array(t, loaded.Messages).Length(2)
		gt.Value(t, loaded.Messages[0].Role).Equal(types.RoleHuman)
		gt.Value(t, loaded.Messages[0].Content).Equal("hello")
		gt.Value(t, loaded.Messages[1].Role).Equal(types.RoleAssistant)
		gt.Value(t, loaded.Summary).Equal("greeting exchange")
		gt.Value(t, loaded.Workflow).Equal(types.WorkflowAudio)
		gt.Value(t, loaded.CurrentActivity).Equal("Barista shift")
		gt.Bool(t, loaded.ApplyActivity).True()
	})

	t.Run("Put replaces messages and summary together", func(t *testing.T) {
		repo := newRepo(t)

		state := model.NewThreadState("t-2")
		for i := 0; i < 21; i++ {
			state.Append(model.NewHumanMessage("msg"))
		}
		gt.NoError(t, repo.Put(ctx, state)).Required()

		state.Truncate(5)
		state.Summary = "long conversation, condensed"
		gt.NoError(t, repo.Put(ctx, state)).Required()

		loaded, err := repo.Get(ctx, "t-2")
		gt.NoError(t, err).Required()
		gt.Array(t, loaded.Messages).Length(5)
		gt.Value(t, loaded.Summary).Equal("long conversation, condensed")
	})

	t.Run("threads are isolated by ID", func(t *testing.T) {
		repo := newRepo(t)

		a := model.NewThreadState("t-a")
		a.Append(model.NewHumanMessage("thread a"))
		gt.NoError(t, repo.Put(ctx, a)).Required()

		b := model.NewThreadState("t-b")
		b.Append(model.NewHumanMessage("thread b"))
		gt.NoError(t, repo.Put(ctx, b)).Required()

		loaded, err := repo.Get(ctx, "t-a")
		gt.NoError(t, err).Required()
		gt.Array(t, loaded.Messages).Length(1)
		gt.Value(t, loaded.Messages[0].Content).Equal("thread a")
	})

	t.Run("state survives reopening the database", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "threads.db")

		repo, err := sqlite.New(path)
		gt.NoError(t, err).Required()

		state := model.NewThreadState("t-persist")
		state.Append(model.NewHumanMessage("remember me"))
		gt.NoError(t, repo.Put(ctx, state)).Required()
		gt.NoError(t, repo.Close()).Required()

		reopened, err := sqlite.New(path)
		gt.NoError(t, err).Required()
		defer func() { _ = reopened.Close() }()

		loaded, err := reopened.Get(ctx, "t-persist")
		gt.NoError(t, err).Required()
		gt.Array(t, loaded.Messages).Length(1)
		gt.Value(t, loaded.Messages[0].Content).Equal("remember me")
	})

	t.Run("empty thread ID is rejected", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.Get(ctx, "")
		gt.Error(t, err)

		gt.Error(t, repo.Put(ctx, model.NewThreadState("")))
	})
}
