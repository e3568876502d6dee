// Package cpu exposes the privileged operations that the kernel needs from
// the processor: port I/O, interrupt masking, halting and descriptor table
// loading. All operations are forwarded to the Bus attached via Attach.
package cpu

import "sync/atomic"

// Bus is implemented by the machine that executes the kernel.
type Bus interface {
	// PortReadByte reads a uint8 value from the requested port.
	PortReadByte(port uint16) uint8

	// PortWriteByte writes a uint8 value to the requested port.
	PortWriteByte(port uint16, val uint8)

	// EnableInterrupts sets the interrupt flag. Pending interrupts may be
	// delivered as soon as this call returns.
	EnableInterrupts()

	// DisableInterrupts clears the interrupt flag. When it returns, no
	// handler is running and no interrupt will be delivered until
	// EnableInterrupts is invoked.
	DisableInterrupts()

	// Halt suspends execution until the next interrupt is delivered. It
	// returns immediately if an interrupt was delivered since the
	// previous call to Halt.
	Halt()

	// Stop suspends execution with interrupts disabled. It never returns.
	Stop()

	// Breakpoint raises a breakpoint trap and synchronously invokes the
	// dispatcher for vector 3.
	Breakpoint()

	// LoadIDT installs the dispatcher that receives every interrupt and
	// exception raised by the machine.
	LoadIDT(d Dispatcher)

	// MapFramebuffer returns a view of count 16-bit cells of memory-mapped
	// video memory starting at physAddr or nil if the region is not
	// backed by a video device.
	MapFramebuffer(physAddr uintptr, count int) []uint16
}

// Dispatcher receives interrupts and exceptions. It is implemented by the
// kernel's interrupt descriptor table.
type Dispatcher interface {
	Dispatch(num uint8, regs *Registers)
}

// Registers contains a snapshot of all register values when an exception or
// interrupt occurs.
type Registers struct {
	RAX uint64
	RBX uint64
	RCX uint64
	RDX uint64
	RSI uint64
	RDI uint64
	RBP uint64
	R8  uint64
	R9  uint64
	R10 uint64
	R11 uint64
	R12 uint64
	R13 uint64
	R14 uint64
	R15 uint64

	// Info contains the exception code for exceptions or the vector
	// number for HW interrupts.
	Info uint64

	// The return frame used by IRETQ
	RIP    uint64
	CS     uint64
	RFlags uint64
	RSP    uint64
	SS     uint64
}

// InterruptState records whether interrupts were enabled before a call to
// SaveAndDisableInterrupts.
type InterruptState bool

var (
	bus Bus

	// interruptsEnabled tracks the interrupt flag of the foreground flow.
	// Like the real IF bit it is cleared at reset.
	interruptsEnabled atomic.Bool

	// handlerDepth counts the interrupt handlers that are currently
	// executing. The CPU clears IF on entry to an interrupt gate so
	// InterruptsEnabled reports false while it is non-zero.
	handlerDepth atomic.Int32
)

// Attach routes all CPU operations to b. It must be invoked before the
// kernel entrypoint runs.
func Attach(b Bus) {
	bus = b
	interruptsEnabled.Store(false)
	handlerDepth.Store(0)
}

// PortWriteByte writes a uint8 value to the requested port.
func PortWriteByte(port uint16, val uint8) {
	bus.PortWriteByte(port, val)
}

// PortReadByte reads a uint8 value from the requested port.
func PortReadByte(port uint16) uint8 {
	return bus.PortReadByte(port)
}

// EnableInterrupts enables interrupt handling.
func EnableInterrupts() {
	interruptsEnabled.Store(true)
	bus.EnableInterrupts()
}

// DisableInterrupts disables interrupt handling.
func DisableInterrupts() {
	bus.DisableInterrupts()
	interruptsEnabled.Store(false)
}

// InterruptsEnabled returns true if interrupts can be delivered to the
// currently executing flow. It always returns false inside an interrupt
// handler.
func InterruptsEnabled() bool {
	return handlerDepth.Load() == 0 && interruptsEnabled.Load()
}

// SaveAndDisableInterrupts disables interrupts and returns the previous
// state so it can be restored via RestoreInterrupts.
func SaveAndDisableInterrupts() InterruptState {
	if !InterruptsEnabled() {
		return false
	}

	DisableInterrupts()
	return true
}

// RestoreInterrupts re-enables interrupts if they were enabled when state
// was captured.
func RestoreInterrupts(state InterruptState) {
	if state {
		EnableInterrupts()
	}
}

// WithoutInterrupts invokes fn with interrupts disabled and restores the
// previous interrupt state afterwards.
func WithoutInterrupts(fn func()) {
	state := SaveAndDisableInterrupts()
	defer RestoreInterrupts(state)
	fn()
}

// EnterInterrupt marks the start of an interrupt handler. It is invoked by
// the interrupt dispatcher.
func EnterInterrupt() {
	handlerDepth.Add(1)
}

// ExitInterrupt marks the end of an interrupt handler.
func ExitInterrupt() {
	handlerDepth.Add(-1)
}

// InInterrupt returns true while an interrupt handler is executing.
func InInterrupt() bool {
	return handlerDepth.Load() != 0
}

// Halt stops instruction execution until the next interrupt arrives.
func Halt() {
	bus.Halt()
}

// Stop disables interrupts and halts the CPU. Calls to Stop never return.
func Stop() {
	bus.Stop()
}

// Breakpoint executes a breakpoint trap (INT3). Interrupts are masked while
// the trap handler runs.
func Breakpoint() {
	state := SaveAndDisableInterrupts()
	bus.Breakpoint()
	RestoreInterrupts(state)
}

// LoadIDT activates the supplied interrupt dispatcher.
func LoadIDT(d Dispatcher) {
	bus.LoadIDT(d)
}

// MapFramebuffer returns a slice backed by the memory-mapped framebuffer at
// physAddr.
func MapFramebuffer(physAddr uintptr, count int) []uint16 {
	return bus.MapFramebuffer(physAddr, count)
}
