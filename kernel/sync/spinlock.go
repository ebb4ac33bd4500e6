// Package sync provides the locking primitives used by the kernel. There is
// no scheduler so a contended lock is always busy-waited on.
package sync

import "sync/atomic"

const attemptsBeforeYielding = 1

var (
	// yieldFn is invoked while spinning on a contended lock. It is nil when
	// running on bare metal and replaced with runtime.Gosched by tests.
	yieldFn func()
)

// Spinlock implements a lock where each task trying to acquire it busy-waits
// till the lock becomes available.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the currently active task.
// Any attempt to re-acquire a lock already held by the current task will cause
// a deadlock.
func (l *Spinlock) Acquire() {
	for {
		for i := 0; i < attemptsBeforeYielding; i++ {
			if atomic.CompareAndSwapUint32(&l.state, 0, 1) {
				return
			}
		}

		if yieldFn != nil {
			yieldFn()
		}
	}
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock allowing other tasks to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}
