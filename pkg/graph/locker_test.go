package graph

import (
	"sync"
	"testing"

	"github.com/m-mizutani/gt"
)

func TestThreadLockerSerializesSameThread(t *testing.T) {
	locker := newThreadLocker()

	var mu sync.Mutex
	var active, maxActive int

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locker.Lock("t-1")
			defer unlock()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	gt.Value(t, maxActive).Equal(1)
}

func TestThreadLockerIndependentThreads(t *testing.T) {
	locker := newThreadLocker()

	unlockA := locker.Lock("t-a")
	defer unlockA()

	// A held lock on one thread must not block another thread.
	done := make(chan struct{})
	go func() {
		unlockB := locker.Lock("t-b")
		unlockB()
		close(done)
	}()

	<-done
}
