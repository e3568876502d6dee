package sync

import "github.com/nickorlow/rosco/kernel/cpu"

var (
	// the following functions are mocked by tests.
	saveAndDisableInterruptsFn = cpu.SaveAndDisableInterrupts
	restoreInterruptsFn        = cpu.RestoreInterrupts
)

// IRQLock guards state that is shared between the foreground flow and
// interrupt handlers. Acquiring it from the foreground masks interrupts for
// the duration of the critical section so that a handler can never spin on
// a lock held by the code it interrupted. Inside a handler interrupts are
// already masked and only the spinlock is taken.
//
// The zero value is an unlocked IRQLock.
type IRQLock struct {
	sl Spinlock
}

// Acquire masks interrupts, takes the lock and returns the interrupt state
// that must be passed to the matching Release call.
func (l *IRQLock) Acquire() cpu.InterruptState {
	state := saveAndDisableInterruptsFn()
	l.sl.Acquire()
	return state
}

// Release drops the lock and restores the interrupt state captured by
// Acquire.
func (l *IRQLock) Release(state cpu.InterruptState) {
	l.sl.Release()
	restoreInterruptsFn(state)
}

// Do runs fn while holding the lock.
func (l *IRQLock) Do(fn func()) {
	state := l.Acquire()
	defer l.Release(state)
	fn()
}
