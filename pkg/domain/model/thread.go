package model

import (
	"time"

	"github.com/himeno-lab/kotori/pkg/domain/types"
)

// ThreadState is the short-term conversation state of one thread.
// Messages and Summary are persisted together; MemoryContext is
// recomputed every turn and never stored.
type ThreadState struct {
	ThreadID        types.ThreadID
	Messages        []Message
	Summary         string
	Workflow        types.Workflow
	CurrentActivity string
	ApplyActivity   bool
	UpdatedAt       time.Time

	// MemoryContext holds the memory block retrieved for the current
	// turn. Transient: repositories must not persist it.
	MemoryContext string
}

// NewThreadState creates an empty state for a thread
func NewThreadState(threadID types.ThreadID) *ThreadState {
	return &ThreadState{
		ThreadID: threadID,
		Workflow: types.WorkflowConversation,
	}
}

// Clone returns a deep copy of the state. Graph nodes operate on copies
// so a failed turn never leaves a half-mutated state behind.
func (s *ThreadState) Clone() *ThreadState {
	copied := *s
	copied.Messages = make([]Message, len(s.Messages))
	copy(copied.Messages, s.Messages)
	return &copied
}

// Append adds a message to the history
func (s *ThreadState) Append(msg Message) {
	s.Messages = append(s.Messages, msg)
}

// LastMessage returns the most recent message, or false when the
// history is empty.
func (s *ThreadState) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Truncate drops all but the most recent keep messages. It returns the
// removed prefix, which is exactly the set of messages a summarization
// consumed.
func (s *ThreadState) Truncate(keep int) []Message {
	if keep < 0 || len(s.Messages) <= keep {
		return nil
	}
	dropped := s.Messages[:len(s.Messages)-keep]
	retained := make([]Message, keep)
	copy(retained, s.Messages[len(s.Messages)-keep:])
	s.Messages = retained
	return dropped
}
