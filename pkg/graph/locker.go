package graph

import (
	"sync"

	"github.com/himeno-lab/kotori/pkg/domain/types"
)

// threadLocker serializes turns per thread. Different threads never
// contend; a second message on the same thread waits for the in-flight
// turn to finish.
//
// Mutexes are never evicted: one map entry lives per distinct thread ID
// for the process lifetime. At a few dozen bytes per conversation that
// is far below the memory the thread's own state costs, so no eviction
// pass is run.
type threadLocker struct {
	mu    sync.Mutex
	locks map[types.ThreadID]*sync.Mutex
}

func newThreadLocker() *threadLocker {
	return &threadLocker{
		locks: make(map[types.ThreadID]*sync.Mutex),
	}
}

// Lock acquires the mutex for the thread, creating it on first use,
// and returns the unlock function.
func (l *threadLocker) Lock(threadID types.ThreadID) func() {
	l.mu.Lock()
	m, ok := l.locks[threadID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[threadID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
