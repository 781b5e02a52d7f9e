package graph

import (
	"github.com/himeno-lab/kotori/pkg/domain/model"
	"github.com/himeno-lab/kotori/pkg/domain/types"
)

// State is the value threaded through the node chain for one turn.
// Nodes never mutate it; each node returns an Output that merge folds
// into a fresh State.
type State struct {
	Messages        []model.Message
	Summary         string
	Workflow        types.Workflow
	CurrentActivity string
	ApplyActivity   bool
	MemoryContext   string
}

// Output is a node's partial update. Nil fields leave the current
// value untouched.
type Output struct {
	AppendMessages  []model.Message
	Summary         *string
	Workflow        *types.Workflow
	CurrentActivity *string
	ApplyActivity   *bool
	MemoryContext   *string

	// KeepLast, when positive, truncates Messages to the most recent
	// KeepLast entries after appends are applied.
	KeepLast int
}

// merge folds a node output into the state, returning a new value.
// The input state's message slice is never aliased by the result.
func merge(s State, out Output) State {
	next := s
	next.Messages = make([]model.Message, len(s.Messages), len(s.Messages)+len(out.AppendMessages))
	copy(next.Messages, s.Messages)
	next.Messages = append(next.Messages, out.AppendMessages...)

	if out.Summary != nil {
		next.Summary = *out.Summary
	}
	if out.Workflow != nil {
		next.Workflow = *out.Workflow
	}
	if out.CurrentActivity != nil {
		next.CurrentActivity = *out.CurrentActivity
	}
	if out.ApplyActivity != nil {
		next.ApplyActivity = *out.ApplyActivity
	}
	if out.MemoryContext != nil {
		next.MemoryContext = *out.MemoryContext
	}

	if out.KeepLast > 0 && len(next.Messages) > out.KeepLast {
		retained := make([]model.Message, out.KeepLast)
		copy(retained, next.Messages[len(next.Messages)-out.KeepLast:])
		next.Messages = retained
	}
	return next
}

// stateFrom builds the turn state from persisted thread state
func stateFrom(ts *model.ThreadState) State {
	messages := make([]model.Message, len(ts.Messages))
	copy(messages, ts.Messages)
	return State{
		Messages:        messages,
		Summary:         ts.Summary,
		Workflow:        ts.Workflow,
		CurrentActivity: ts.CurrentActivity,
		ApplyActivity:   ts.ApplyActivity,
	}
}

// applyTo writes the turn state back onto the persisted thread state.
// MemoryContext is transient and intentionally not carried over.
func (s State) applyTo(ts *model.ThreadState) {
	ts.Messages = s.Messages
	ts.Summary = s.Summary
	ts.Workflow = s.Workflow
	ts.CurrentActivity = s.CurrentActivity
	ts.ApplyActivity = s.ApplyActivity
}
