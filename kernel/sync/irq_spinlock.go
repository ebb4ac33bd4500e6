package sync

import "github.com/DrakulaD3a/redos/kernel/cpu"

var (
	// the following functions are mocked by tests and are automatically
	// inlined by the compiler.
	interruptsEnabledFn = cpu.InterruptsEnabled
	disableInterruptsFn = cpu.DisableInterrupts
	enableInterruptsFn  = cpu.EnableInterrupts
)

// IRQSpinlock is a Spinlock that also masks interrupts for the duration of
// the critical section. It must be used for any state that is shared with
// interrupt handlers: masking guarantees that a handler cannot preempt the
// holder and spin forever on a lock that can never be released.
//
// The interrupt flag is restored to its previous value by Release so
// IRQSpinlocks may be used both from regular code (interrupts enabled) and
// from handlers entered through interrupt gates (interrupts already masked).
type IRQSpinlock struct {
	lock Spinlock

	// restoreInterrupts is true if interrupts were enabled when the lock
	// was acquired.
	restoreInterrupts bool
}

// Acquire masks interrupts and then blocks until the lock becomes available.
func (l *IRQSpinlock) Acquire() {
	wasEnabled := interruptsEnabledFn()
	disableInterruptsFn()
	l.lock.Acquire()
	l.restoreInterrupts = wasEnabled
}

// TryToAcquire masks interrupts and attempts to acquire the lock. If the lock
// is held, the interrupt flag is restored and TryToAcquire returns false.
func (l *IRQSpinlock) TryToAcquire() bool {
	wasEnabled := interruptsEnabledFn()
	disableInterruptsFn()
	if !l.lock.TryToAcquire() {
		if wasEnabled {
			enableInterruptsFn()
		}
		return false
	}

	l.restoreInterrupts = wasEnabled
	return true
}

// Release relinquishes the lock and re-enables interrupts if they were enabled
// when the lock was acquired.
func (l *IRQSpinlock) Release() {
	restore := l.restoreInterrupts
	l.restoreInterrupts = false
	l.lock.Release()

	if restore {
		enableInterruptsFn()
	}
}
