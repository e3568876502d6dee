// Package cputest provides a recording cpu.Bus for use in tests.
package cputest

import (
	"runtime"
	"sync"

	"github.com/nickorlow/rosco/kernel/cpu"
)

// PortWrite describes a single byte written to an I/O port.
type PortWrite struct {
	Port  uint16
	Value uint8
}

// Bus is a cpu.Bus that records port writes and serves port reads from a
// per-port queue. Its delivery lock is held while interrupts are disabled,
// mirroring how the interrupt flag gates delivery on real hardware.
type Bus struct {
	// Framebuffer backs all MapFramebuffer requests. It is allocated on
	// first use if nil.
	Framebuffer []uint16

	// OnBreakpoint, if set, is invoked by Breakpoint instead of the
	// installed dispatcher.
	OnBreakpoint func()

	delivery sync.Mutex

	mu          sync.Mutex
	writes      []PortWrite
	reads       map[uint16][]uint8
	dispatcher  cpu.Dispatcher
	haltCount   int
	stopped     bool
	ifEnabled   bool
	breakpoints int
}

// New returns a Bus with interrupts disabled, attaches it via cpu.Attach
// and returns it.
func New() *Bus {
	b := &Bus{reads: make(map[uint16][]uint8)}
	b.delivery.Lock()
	cpu.Attach(b)
	return b
}

// PortReadByte implements cpu.Bus.
func (b *Bus) PortReadByte(port uint16) uint8 {
	b.mu.Lock()
	defer b.mu.Unlock()

	queue := b.reads[port]
	if len(queue) == 0 {
		return 0
	}

	b.reads[port] = queue[1:]
	return queue[0]
}

// PortWriteByte implements cpu.Bus.
func (b *Bus) PortWriteByte(port uint16, val uint8) {
	b.mu.Lock()
	b.writes = append(b.writes, PortWrite{Port: port, Value: val})
	b.mu.Unlock()
}

// EnableInterrupts implements cpu.Bus.
func (b *Bus) EnableInterrupts() {
	b.mu.Lock()
	wasEnabled := b.ifEnabled
	b.ifEnabled = true
	b.mu.Unlock()

	if !wasEnabled {
		b.delivery.Unlock()
	}
}

// DisableInterrupts implements cpu.Bus.
func (b *Bus) DisableInterrupts() {
	b.mu.Lock()
	wasEnabled := b.ifEnabled
	b.mu.Unlock()

	if !wasEnabled {
		return
	}

	b.delivery.Lock()
	b.mu.Lock()
	b.ifEnabled = false
	b.mu.Unlock()
}

// Halt implements cpu.Bus.
func (b *Bus) Halt() {
	b.mu.Lock()
	b.haltCount++
	b.mu.Unlock()
	runtime.Gosched()
}

// Stop implements cpu.Bus. Unlike a real CPU it returns so tests can observe
// the outcome.
func (b *Bus) Stop() {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()
}

// Breakpoint implements cpu.Bus.
func (b *Bus) Breakpoint() {
	b.mu.Lock()
	b.breakpoints++
	d := b.dispatcher
	b.mu.Unlock()

	switch {
	case b.OnBreakpoint != nil:
		b.OnBreakpoint()
	case d != nil:
		d.Dispatch(3, &cpu.Registers{Info: 3})
	}
}

// LoadIDT implements cpu.Bus.
func (b *Bus) LoadIDT(d cpu.Dispatcher) {
	b.mu.Lock()
	b.dispatcher = d
	b.mu.Unlock()
}

// MapFramebuffer implements cpu.Bus.
func (b *Bus) MapFramebuffer(_ uintptr, count int) []uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.Framebuffer) < count {
		b.Framebuffer = make([]uint16, count)
	}
	return b.Framebuffer[:count]
}

// Deliver runs fn as if it were an interrupt handler. It blocks while
// interrupts are disabled and prevents the foreground flow from disabling
// interrupts until fn returns.
func (b *Bus) Deliver(fn func()) {
	b.delivery.Lock()
	defer b.delivery.Unlock()

	cpu.EnterInterrupt()
	defer cpu.ExitInterrupt()
	fn()
}

// Raise delivers vector num to the installed dispatcher as a hardware
// interrupt.
func (b *Bus) Raise(num uint8) {
	b.mu.Lock()
	d := b.dispatcher
	b.mu.Unlock()

	if d == nil {
		return
	}

	b.delivery.Lock()
	defer b.delivery.Unlock()
	d.Dispatch(num, &cpu.Registers{Info: uint64(num)})
}

// QueueRead appends values to the queue served by reads from port.
func (b *Bus) QueueRead(port uint16, values ...uint8) {
	b.mu.Lock()
	b.reads[port] = append(b.reads[port], values...)
	b.mu.Unlock()
}

// Writes returns a copy of all recorded port writes.
func (b *Bus) Writes() []PortWrite {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]PortWrite(nil), b.writes...)
}

// ResetWrites discards all recorded port writes.
func (b *Bus) ResetWrites() {
	b.mu.Lock()
	b.writes = nil
	b.mu.Unlock()
}

// HaltCount returns the number of Halt invocations.
func (b *Bus) HaltCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.haltCount
}

// Stopped returns true if Stop was invoked.
func (b *Bus) Stopped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopped
}

// Breakpoints returns the number of Breakpoint invocations.
func (b *Bus) Breakpoints() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.breakpoints
}

// Dispatcher returns the dispatcher installed via LoadIDT.
func (b *Bus) Dispatcher() cpu.Dispatcher {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dispatcher
}
