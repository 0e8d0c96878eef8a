package keylock

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Keyed provides mutual exclusion per string key. Waits are bounded by the
// caller's context, so a held lock surfaces as a context error instead of an
// unbounded block. Idle keys are removed once the last holder or waiter leaves.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// NewKeyed creates an empty keyed lock set.
func NewKeyed() *Keyed {
	return &Keyed{locks: make(map[string]*entry)}
}

// Acquire blocks until the key's lock is held or ctx is done. On success the
// returned release function must be called exactly once; extra calls are no-ops.
func (k *Keyed) Acquire(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		k.put(key, e)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			k.put(key, e)
		})
	}, nil
}

func (k *Keyed) put(key string, e *entry) {
	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()
}
