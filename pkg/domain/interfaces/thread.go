package interfaces

import (
	"context"

	"github.com/himeno-lab/kotori/pkg/domain/model"
	"github.com/himeno-lab/kotori/pkg/domain/types"
)

// ThreadRepository persists per-thread conversation state.
type ThreadRepository interface {
	// Get loads the state for a thread, creating an empty state when
	// none has been persisted yet.
	Get(ctx context.Context, threadID types.ThreadID) (*model.ThreadState, error)

	// Put replaces the whole persisted state for a thread. The message
	// list and summary are written together, all-or-nothing.
	Put(ctx context.Context, state *model.ThreadState) error

	Close() error
}
