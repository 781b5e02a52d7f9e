package memory

import (
	"context"
	"sync"
	"time"

	"github.com/himeno-lab/kotori/pkg/domain/interfaces"
	"github.com/himeno-lab/kotori/pkg/domain/model"
	"github.com/himeno-lab/kotori/pkg/domain/types"
)

// ThreadRepository is an in-process thread state store
type ThreadRepository struct {
	mu      sync.RWMutex
	threads map[types.ThreadID]*model.ThreadState
}

var _ interfaces.ThreadRepository = &ThreadRepository{}

func newThreadRepository() *ThreadRepository {
	return &ThreadRepository{
		threads: make(map[types.ThreadID]*model.ThreadState),
	}
}

func copyState(s *model.ThreadState) *model.ThreadState {
	copied := s.Clone()
	// MemoryContext is per-turn state, never persisted
	copied.MemoryContext = ""
	return copied
}

func (r *ThreadRepository) Get(ctx context.Context, threadID types.ThreadID) (*model.ThreadState, error) {
	if err := threadID.Validate(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	state, exists := r.threads[threadID]
	if !exists {
		return model.NewThreadState(threadID), nil
	}
	return copyState(state), nil
}

func (r *ThreadRepository) Put(ctx context.Context, state *model.ThreadState) error {
	if err := state.ThreadID.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := copyState(state)
	stored.UpdatedAt = time.Now().UTC()
	r.threads[state.ThreadID] = stored
	return nil
}

func (r *ThreadRepository) Close() error {
	return nil
}
