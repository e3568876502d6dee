package sync

import (
	"sync"
	"testing"

	"github.com/nickorlow/rosco/kernel/cpu"
	"github.com/nickorlow/rosco/kernel/cpu/cputest"
)

func TestIRQLockMasksInterrupts(t *testing.T) {
	defer func() {
		saveAndDisableInterruptsFn = cpu.SaveAndDisableInterrupts
		restoreInterruptsFn = cpu.RestoreInterrupts
	}()

	var calls []string
	saveAndDisableInterruptsFn = func() cpu.InterruptState {
		calls = append(calls, "save")
		return true
	}
	restoreInterruptsFn = func(state cpu.InterruptState) {
		if !state {
			t.Error("expected Release to restore the state returned by Acquire")
		}
		calls = append(calls, "restore")
	}

	var l IRQLock
	l.Do(func() {
		calls = append(calls, "critical")
		if l.sl.TryToAcquire() {
			t.Error("expected spinlock to be held inside the critical section")
		}
	})

	exp := []string{"save", "critical", "restore"}
	if len(calls) != len(exp) {
		t.Fatalf("expected calls %v; got %v", exp, calls)
	}
	for i := range exp {
		if calls[i] != exp[i] {
			t.Fatalf("expected calls %v; got %v", exp, calls)
		}
	}
}

func TestIRQLockExcludesHandlers(t *testing.T) {
	bus := cputest.New()
	cpu.EnableInterrupts()

	var (
		l       IRQLock
		counter int
		wg      sync.WaitGroup
	)

	const iterations = 500
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			l.Do(func() { counter++ })
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			bus.Deliver(func() {
				if cpu.InterruptsEnabled() {
					t.Error("expected interrupts to be reported as disabled inside a handler")
				}
				l.Do(func() { counter++ })
			})
		}
	}()
	wg.Wait()

	if counter != 2*iterations {
		t.Fatalf("expected counter to be %d; got %d", 2*iterations, counter)
	}

	if !cpu.InterruptsEnabled() {
		t.Fatal("expected interrupts to remain enabled once the foreground released the lock")
	}
}
