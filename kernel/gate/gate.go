// Package gate implements the interrupt descriptor table: a mapping from
// interrupt vectors to the handlers that service them.
package gate

import (
	"io"
	"sync/atomic"

	"github.com/nickorlow/rosco/kernel"
	"github.com/nickorlow/rosco/kernel/cpu"
	"github.com/nickorlow/rosco/kernel/kfmt"
)

// InterruptNumber describes an x86 interrupt/exception/trap slot.
type InterruptNumber uint8

const (
	// DivideByZero occurs when dividing any number by 0 using the DIV or
	// IDIV instruction.
	DivideByZero = InterruptNumber(0)

	// Debug is raised by the single-step and debug register machinery.
	Debug = InterruptNumber(1)

	// NMI is a non-maskable hardware interrupt.
	NMI = InterruptNumber(2)

	// Breakpoint is raised by the INT3 instruction.
	Breakpoint = InterruptNumber(3)

	// InvalidOpcode occurs when the CPU attempts to execute an invalid or
	// undefined instruction opcode.
	InvalidOpcode = InterruptNumber(6)

	// DoubleFault occurs when an exception is raised while the CPU tries
	// to invoke the handler for a prior exception.
	DoubleFault = InterruptNumber(8)

	// GPFException occurs when a general protection fault occurs.
	GPFException = InterruptNumber(13)

	// PageFaultException occurs on a failed page translation.
	PageFaultException = InterruptNumber(14)

	// FirstExternal is the first vector that may be assigned to an
	// external interrupt source. Vectors below it are reserved for CPU
	// exceptions.
	FirstExternal = InterruptNumber(32)
)

// Handler services an interrupt. regs contains a snapshot of the CPU state
// at the time the interrupt occurred.
type Handler func(regs *cpu.Registers)

// State describes the lifecycle of a Table.
type State uint8

const (
	// StateEmpty is the state of a table without any handlers.
	StateEmpty State = iota

	// StateBuilt is the state of a table with at least one handler that
	// has not been loaded yet.
	StateBuilt

	// StateActive is the state of a table that has been loaded and is
	// receiving interrupts.
	StateActive
)

// String implements fmt.Stringer for State.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateBuilt:
		return "built"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

var (
	// the following functions are mocked by tests.
	loadIDTFn        = cpu.LoadIDT
	enterInterruptFn = cpu.EnterInterrupt
	exitInterruptFn  = cpu.ExitInterrupt
	panicFn          = kfmt.Panic

	errTableActive        = &kernel.Error{Module: "gate", Message: "interrupt table is active and cannot be modified"}
	errTableEmpty         = &kernel.Error{Module: "gate", Message: "interrupt table has no handlers"}
	errNilHandler         = &kernel.Error{Module: "gate", Message: "nil interrupt handler"}
	errUnhandledInterrupt = &kernel.Error{Module: "gate", Message: "unhandled interrupt"}
)

// Table routes interrupt vectors to handlers. Handlers can only be
// installed before the table is loaded; once active, the table is only read
// so Dispatch does not need to synchronize with the installer.
type Table struct {
	state    State
	handlers [256]Handler
	counts   [256]atomic.Uint64
}

// NewTable returns an empty interrupt table.
func NewTable() *Table {
	return &Table{}
}

// State returns the current lifecycle state of the table.
func (t *Table) State() State {
	return t.state
}

// HandleInterrupt ensures that the provided handler will be invoked when a
// particular interrupt number occurs. Installing a handler for a vector that
// already has one replaces it.
func (t *Table) HandleInterrupt(num InterruptNumber, handler Handler) *kernel.Error {
	switch {
	case t.state == StateActive:
		return errTableActive
	case handler == nil:
		return errNilHandler
	}

	t.handlers[num] = handler
	t.state = StateBuilt
	return nil
}

// Load activates the table on the CPU. After a successful call no further
// handlers can be installed.
func (t *Table) Load() *kernel.Error {
	switch t.state {
	case StateEmpty:
		return errTableEmpty
	case StateActive:
		return errTableActive
	}

	t.state = StateActive
	loadIDTFn(t)
	return nil
}

// Dispatch is invoked by the CPU for each interrupt or exception and routes
// it to the installed handler. Interrupts without a handler cause a kernel
// panic.
func (t *Table) Dispatch(num uint8, regs *cpu.Registers) {
	enterInterruptFn()
	defer exitInterruptFn()

	t.counts[num].Add(1)

	handler := t.handlers[num]
	if handler == nil {
		kfmt.Printf("\nunhandled interrupt: vector %d\n", num)
		DumpRegisters(kfmt.GetOutputSink(), regs)
		panicFn(errUnhandledInterrupt)
		return
	}

	handler(regs)
}

// Count returns the number of times vector num has been dispatched.
func (t *Table) Count(num InterruptNumber) uint64 {
	return t.counts[num].Load()
}

// DumpRegisters outputs the contents of regs to w.
func DumpRegisters(w io.Writer, r *cpu.Registers) {
	if r == nil {
		return
	}

	kfmt.Fprintf(w, "RAX = %16x RBX = %16x\n", r.RAX, r.RBX)
	kfmt.Fprintf(w, "RCX = %16x RDX = %16x\n", r.RCX, r.RDX)
	kfmt.Fprintf(w, "RSI = %16x RDI = %16x\n", r.RSI, r.RDI)
	kfmt.Fprintf(w, "RBP = %16x\n", r.RBP)
	kfmt.Fprintf(w, "R8  = %16x R9  = %16x\n", r.R8, r.R9)
	kfmt.Fprintf(w, "R10 = %16x R11 = %16x\n", r.R10, r.R11)
	kfmt.Fprintf(w, "R12 = %16x R13 = %16x\n", r.R12, r.R13)
	kfmt.Fprintf(w, "R14 = %16x R15 = %16x\n", r.R14, r.R15)
	kfmt.Fprintf(w, "\n")
	kfmt.Fprintf(w, "RIP = %16x CS  = %16x\n", r.RIP, r.CS)
	kfmt.Fprintf(w, "RSP = %16x SS  = %16x\n", r.RSP, r.SS)
	kfmt.Fprintf(w, "RFL = %16x\n", r.RFlags)
}
