// Package keyboard decodes PS/2 scancodes and exposes a blocking line
// reader on top of the keyboard interrupt.
package keyboard

import (
	"io"
	"sync/atomic"

	"github.com/nickorlow/rosco/kernel"
	"github.com/nickorlow/rosco/kernel/cpu"
	"github.com/nickorlow/rosco/kernel/kfmt"
	"github.com/nickorlow/rosco/kernel/sync"
)

// PS/2 controller ports.
const (
	DataPort   uint16 = 0x60
	StatusPort uint16 = 0x64

	// statusOutputFull is set in the status register while a byte is
	// waiting in the data port.
	statusOutputFull uint8 = 0x01
)

var (
	// the following functions are mocked by tests.
	portReadByteFn      = cpu.PortReadByte
	haltFn              = cpu.Halt
	interruptsEnabledFn = cpu.InterruptsEnabled
	panicFn             = kfmt.Panic

	errReadInProgress     = &kernel.Error{Module: "keyboard", Message: "ReadLine is not reentrant"}
	errInterruptsDisabled = &kernel.Error{Module: "keyboard", Message: "ReadLine called with interrupts disabled"}
)

// Echoer receives the characters that are typed while a line is being
// read. WriteLocked is invoked with the keyboard lock held.
type Echoer interface {
	WriteLocked(p []byte)
}

// Keyboard services the keyboard interrupt and assembles typed characters
// into lines. Its lock must be the lock that guards the Echoer so that a
// keystroke is decoded and echoed within a single critical section.
type Keyboard struct {
	lock *sync.IRQLock
	echo Echoer

	state State

	// waiting is raised by ReadLine and cleared by the interrupt handler
	// once the line is complete. It is only modified while lock is held
	// but can be polled without it.
	waiting atomic.Bool

	// busy guards against concurrent ReadLine calls.
	busy atomic.Bool

	echoBuf [1]byte

	scancodes atomic.Uint64
}

// New returns a keyboard that echoes to echo and serializes state changes
// through lock.
func New(lock *sync.IRQLock, echo Echoer) *Keyboard {
	return &Keyboard{lock: lock, echo: echo}
}

// HandleIRQ reads one scancode from the controller and feeds it to the
// decoder. It must be installed as the handler for the keyboard line.
func (k *Keyboard) HandleIRQ(_ *cpu.Registers) {
	// The controller only raises the next interrupt once the pending
	// byte is consumed so it has to be read even when not reading.
	code := Scancode(portReadByteFn(DataPort))
	k.scancodes.Add(1)

	state := k.lock.Acquire()
	defer k.lock.Release(state)

	next, fx := step(k.state, code)
	k.state = next

	if fx.echo != 0 && k.echo != nil {
		k.echoBuf[0] = fx.echo
		k.echo.WriteLocked(k.echoBuf[:])
	}

	if fx.complete {
		k.waiting.Store(false)
	}
}

// ReadLine blocks until a line has been typed and the enter key released.
// The returned line contains the characters typed since the call, with
// upper-case letters for keys pressed while shift was held, truncated to
// LineCapacity characters.
//
// Interrupts must be enabled. ReadLine can neither be cancelled nor
// called concurrently.
func (k *Keyboard) ReadLine() Line {
	if !k.busy.CompareAndSwap(false, true) {
		panicFn(errReadInProgress)
		return Line{}
	}
	defer k.busy.Store(false)

	if !interruptsEnabledFn() {
		panicFn(errInterruptsDisabled)
		return Line{}
	}

	state := k.lock.Acquire()
	k.state = k.state.begin()
	k.waiting.Store(true)
	k.lock.Release(state)

	for k.waiting.Load() {
		haltFn()
	}

	state = k.lock.Acquire()
	line := k.state.Line()
	k.lock.Release(state)

	return line
}

// Reading returns true while a ReadLine call is waiting for input.
func (k *Keyboard) Reading() bool {
	return k.waiting.Load()
}

// State returns a snapshot of the decoder state.
func (k *Keyboard) State() State {
	state := k.lock.Acquire()
	defer k.lock.Release(state)
	return k.state
}

// Scancodes returns the number of scancodes received.
func (k *Keyboard) Scancodes() uint64 {
	return k.scancodes.Load()
}

// DriverName returns the name of this driver.
func (k *Keyboard) DriverName() string {
	return "ps2_keyboard"
}

// DriverVersion returns the version of this driver.
func (k *Keyboard) DriverVersion() (uint16, uint16, uint16) {
	return 0, 1, 0
}

// DriverInit drains any bytes left in the controller output buffer so that
// the first interrupt carries a fresh scancode.
func (k *Keyboard) DriverInit(w io.Writer) *kernel.Error {
	var drained int
	for portReadByteFn(StatusPort)&statusOutputFull != 0 && drained < 16 {
		portReadByteFn(DataPort)
		drained++
	}

	kfmt.Fprintf(w, "scancode set 1, line capacity %d, drained %d bytes\n", LineCapacity, drained)
	return nil
}
