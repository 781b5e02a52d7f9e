package types

import "github.com/m-mizutani/goerr/v2"

// ThreadID is an opaque stable identifier for one ongoing conversation,
// e.g. a phone number or a session ID. It is the partition key for all
// per-thread persistence.
type ThreadID string

// Validate checks if the ThreadID is non-empty
func (t ThreadID) Validate() error {
	if t == "" {
		return goerr.New("thread ID must not be empty")
	}
	return nil
}

func (t ThreadID) String() string {
	return string(t)
}
