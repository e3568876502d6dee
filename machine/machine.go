// Package machine emulates the parts of a PC that the kernel drives: an
// 8259 interrupt controller pair, an 8253 timer, an 8042 keyboard
// controller and a VGA text display. A Machine implements cpu.Bus and runs
// the kernel entrypoint on its own goroutine.
//
// Interrupts are delivered on the kernel goroutine whenever it enables
// interrupts or halts, so handlers never run concurrently with the code
// they interrupted. Only one Machine can be booted per process because the
// cpu package routes all operations to a single bus.
package machine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/nickorlow/rosco/device/keyboard"
	"github.com/nickorlow/rosco/device/pic"
	"github.com/nickorlow/rosco/kernel/cpu"
)

const ioWaitPort uint16 = 0x80

// State describes the power state of a machine.
type State uint8

// The possible machine states.
const (
	StateOff State = iota
	StateRunning
	StateHalted
	StateReturned
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOff:
		return "off"
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	case StateReturned:
		return "returned"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

var (
	// ErrHalted is reported once the CPU stopped with interrupts
	// disabled.
	ErrHalted = errors.New("machine: cpu halted")

	// ErrReturned is reported if the kernel entrypoint returned.
	ErrReturned = errors.New("machine: kernel entrypoint returned")

	// ErrClosed is reported after Close.
	ErrClosed = errors.New("machine: powered off")

	// ErrNotBooted is reported by operations that need a running kernel.
	ErrNotBooted = errors.New("machine: not booted")

	// ErrBooted is returned by Boot if the machine was booted before.
	ErrBooted = errors.New("machine: already booted")
)

// Config describes the emulated hardware.
type Config struct {
	// CmdLine is passed to the kernel entrypoint.
	CmdLine string

	// TimerHz is the rate of the timer interrupt. The timer only fires
	// through Tick when it is zero.
	TimerHz float64

	// Logger receives hardware events. slog.Default is used if nil.
	Logger *slog.Logger
}

// Machine is an emulated PC.
type Machine struct {
	cfg Config
	log *slog.Logger

	mu   sync.Mutex
	cond *sync.Cond

	state  State
	fault  error
	booted bool

	ifEnabled  bool
	depth      int
	halting    bool
	dispatcher cpu.Dispatcher

	pic picPair
	kbc kbc
	pit pit
	vga vga

	vectors     [256]uint64
	ticks       uint64
	breakpoints uint64

	snapReq  uint64
	snapDone uint64
	snap     Screen

	done   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a powered-off machine.
func New(cfg Config) *Machine {
	m := &Machine{
		cfg:  cfg,
		log:  cfg.Logger,
		done: make(chan struct{}),
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	m.cond = sync.NewCond(&m.mu)

	m.pic.reset()
	m.kbc.reset()
	m.pit.reset()
	m.vga.reset()
	m.snap = m.vga.screen()

	return m
}

// Boot attaches the machine to the cpu package and runs entry with the
// configured command line on a new goroutine.
func (m *Machine) Boot(entry func(cmdLine string)) error {
	m.mu.Lock()
	if m.booted {
		m.mu.Unlock()
		return ErrBooted
	}
	m.booted = true
	m.state = StateRunning
	m.mu.Unlock()

	cpu.Attach(m)

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	if m.cfg.TimerHz > 0 {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			runTicker(ctx, m.cfg.TimerHz, m.pit.rate, m.Tick)
		}()
	}

	m.log.Info("boot", "cmdline", m.cfg.CmdLine, "timer_hz", m.cfg.TimerHz)
	go m.run(entry)
	return nil
}

func (m *Machine) run(entry func(string)) {
	defer close(m.done)
	defer func() {
		r := recover()

		m.mu.Lock()
		defer m.mu.Unlock()

		switch {
		case r != nil:
			m.state = StateHalted
			m.fault = fmt.Errorf("machine: kernel fault: %v", r)
			m.log.Error("kernel fault", "err", m.fault)
		case m.state == StateRunning:
			m.state = StateReturned
			m.log.Warn("kernel entrypoint returned")
		}
		m.halting = false
		m.cond.Broadcast()
	}()

	entry(m.cfg.CmdLine)
}

// Close powers the machine off and waits for the kernel goroutine to exit.
func (m *Machine) Close() error {
	m.mu.Lock()
	if m.state == StateRunning || m.state == StateOff {
		m.state = StateClosed
	}
	booted := m.booted
	m.cond.Broadcast()
	m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()

	if booted {
		<-m.done
	}
	return nil
}

// Wait blocks until the kernel stops running and reports why.
func (m *Machine) Wait(ctx context.Context) error {
	select {
	case <-m.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exitErrLocked()
}

// Done returns a channel that is closed when the kernel stops running.
func (m *Machine) Done() <-chan struct{} {
	return m.done
}

// State returns the power state of the machine.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) exitErrLocked() error {
	switch m.state {
	case StateOff:
		return ErrNotBooted
	case StateHalted:
		if m.fault != nil {
			return m.fault
		}
		return ErrHalted
	case StateReturned:
		return ErrReturned
	case StateClosed:
		return ErrClosed
	}
	return nil
}

// Tick raises the timer interrupt line.
func (m *Machine) Tick() {
	m.mu.Lock()
	m.ticks++
	m.raiseLocked(uint8(pic.TimerLine))
	m.mu.Unlock()
}

// SendScancodes queues raw scancodes at the keyboard controller.
func (m *Machine) SendScancodes(codes ...uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := m.kbc.dropped
	if m.kbc.push(codes...) {
		m.raiseLocked(uint8(pic.KeyboardLine))
	}
	if m.kbc.dropped != dropped {
		m.log.Warn("keyboard queue full", "dropped", m.kbc.dropped-dropped)
	}
	m.cond.Broadcast()
}

// PressKey sends the make and break codes of the key with make code code.
func (m *Machine) PressKey(code keyboard.Scancode) {
	m.SendScancodes(uint8(code.Make()), uint8(code.Break()))
}

// Type waits for the kernel to wait for input and then types s. Text after
// each line feed is only typed once the kernel waits for input again since
// keystrokes that arrive while no line is being read are discarded.
func (m *Machine) Type(ctx context.Context, s string) error {
	for _, segment := range strings.SplitAfter(s, "\n") {
		if segment == "" {
			continue
		}

		if err := m.WaitIdle(ctx); err != nil {
			return err
		}

		codes, skipped := Scancodes(segment)
		if len(skipped) != 0 {
			m.log.Debug("characters without a key were skipped", "chars", string(skipped))
		}
		m.SendScancodes(codes...)
	}

	return m.WaitIdle(ctx)
}

// WaitIdle blocks until the kernel is halted waiting for an interrupt with
// no keyboard input left to process.
func (m *Machine) WaitIdle(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	defer stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		if m.state != StateRunning {
			return m.exitErrLocked()
		}
		if m.idleLocked() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		m.cond.Wait()
	}
}

func (m *Machine) idleLocked() bool {
	if !m.halting || !m.kbc.idle() {
		return false
	}

	kbdBit := uint8(1) << pic.KeyboardLine
	if (m.pic.master.IRR|m.pic.master.ISR)&kbdBit != 0 {
		return false
	}

	_, deliverable := m.pic.pending()
	return !deliverable
}

// raiseLocked latches a request on irq and wakes a halted CPU.
func (m *Machine) raiseLocked(irq uint8) {
	m.pic.raise(irq)
	m.cond.Broadcast()
}

// deliverLocked dispatches pending interrupts while the CPU accepts them.
// It is invoked on the kernel goroutine with m.mu held.
func (m *Machine) deliverLocked() {
	for m.ifEnabled && m.depth == 0 && m.state == StateRunning && m.dispatcher != nil {
		_, vector, ok := m.pic.acknowledge()
		if !ok {
			return
		}

		m.dispatchLocked(vector)
		m.captureLockedIfRequested()
	}
}

// dispatchLocked runs the handler for vector with m.mu released. If the
// handler stops the CPU, the kernel goroutine exits without re-acquiring
// m.mu.
func (m *Machine) dispatchLocked(vector uint8) {
	d := m.dispatcher
	m.depth++
	m.vectors[vector]++
	m.mu.Unlock()

	d.Dispatch(vector, &cpu.Registers{
		Info:   uint64(vector),
		CS:     0x08,
		SS:     0x10,
		RFlags: 0x202,
	})

	m.mu.Lock()
	m.depth--
}

// captureLocked copies the display for all pending Snapshot calls.
func (m *Machine) captureLocked() {
	m.snap = m.vga.screen()
	m.snapDone = m.snapReq
	m.cond.Broadcast()
}

func (m *Machine) captureLockedIfRequested() {
	if m.snapDone != m.snapReq {
		m.captureLocked()
	}
}

// PortReadByte implements cpu.Bus. A powered off machine stops the kernel
// at its next port read.
func (m *Machine) PortReadByte(port uint16) uint8 {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		runtime.Goexit()
	}
	defer m.mu.Unlock()

	switch port {
	case pic.MasterCmdPort, pic.MasterDataPort, pic.SlaveCmdPort, pic.SlaveDataPort:
		return m.pic.portRead(port)
	case keyboard.DataPort:
		val, raise := m.kbc.readData()
		if raise {
			m.raiseLocked(uint8(pic.KeyboardLine))
		}
		return val
	case keyboard.StatusPort:
		return m.kbc.readStatus()
	case crtcIndexPort, crtcDataPort:
		return m.vga.portRead(port)
	}

	m.log.Debug("read from unhandled port", "port", fmt.Sprintf("0x%x", port))
	return 0xff
}

// PortWriteByte implements cpu.Bus.
func (m *Machine) PortWriteByte(port uint16, val uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch port {
	case pic.MasterCmdPort, pic.MasterDataPort, pic.SlaveCmdPort, pic.SlaveDataPort:
		m.pic.portWrite(port, val)
	case pitChannel0Port, pitCommandPort:
		m.pit.portWrite(port, val)
	case crtcIndexPort, crtcDataPort, dacWriteIndexPort, dacDataPort:
		m.vga.portWrite(port, val)
	case ioWaitPort:
	default:
		m.log.Debug("write to unhandled port", "port", fmt.Sprintf("0x%x", port), "val", fmt.Sprintf("0x%x", val))
	}
}

// EnableInterrupts implements cpu.Bus. Pending interrupts are delivered
// before it returns.
func (m *Machine) EnableInterrupts() {
	m.mu.Lock()
	m.ifEnabled = true
	m.deliverLocked()
	m.captureLockedIfRequested()
	m.mu.Unlock()
}

// DisableInterrupts implements cpu.Bus.
func (m *Machine) DisableInterrupts() {
	m.mu.Lock()
	m.ifEnabled = false
	m.mu.Unlock()
}

// Halt implements cpu.Bus. It blocks until at least one interrupt has been
// delivered. Halting with interrupts disabled stops the CPU.
func (m *Machine) Halt() {
	m.mu.Lock()
	if !m.ifEnabled || m.depth != 0 {
		m.mu.Unlock()
		m.Stop()
		return
	}

	for {
		if m.state != StateRunning {
			m.mu.Unlock()
			runtime.Goexit()
		}

		m.captureLockedIfRequested()

		if _, ok := m.pic.pending(); ok && m.dispatcher != nil {
			m.deliverLocked()
			m.mu.Unlock()
			return
		}

		m.halting = true
		m.cond.Broadcast()
		m.cond.Wait()
		m.halting = false
	}
}

// Stop implements cpu.Bus. The calling goroutine exits.
func (m *Machine) Stop() {
	m.mu.Lock()
	m.ifEnabled = false
	m.halting = false
	if m.state == StateRunning {
		m.state = StateHalted
		m.log.Info("cpu halted")
	}
	m.cond.Broadcast()
	m.mu.Unlock()

	runtime.Goexit()
}

// Breakpoint implements cpu.Bus.
func (m *Machine) Breakpoint() {
	m.mu.Lock()
	m.breakpoints++
	if m.dispatcher == nil {
		m.mu.Unlock()
		m.log.Warn("breakpoint without a vector table")
		return
	}
	m.dispatchLocked(uint8(3))
	m.mu.Unlock()
}

// LoadIDT implements cpu.Bus.
func (m *Machine) LoadIDT(d cpu.Dispatcher) {
	m.mu.Lock()
	m.dispatcher = d
	m.mu.Unlock()
	m.log.Debug("vector table loaded")
}

// MapFramebuffer implements cpu.Bus. Only the text framebuffer is backed by
// memory.
func (m *Machine) MapFramebuffer(physAddr uintptr, count int) []uint16 {
	if physAddr != FramebufferAddr || count <= 0 || count > len(m.vga.fb) {
		return nil
	}
	return m.vga.fb[:count]
}

// Snapshot is a consistent copy of the display and the hardware state.
type Snapshot struct {
	Screen

	State             State
	InterruptsEnabled bool

	// Halting is true while the CPU waits for an interrupt.
	Halting bool

	PIC  [2]PICState
	EOIs [16]uint64

	// Vectors counts the interrupts delivered per vector.
	Vectors [256]uint64

	Ticks       uint64
	TimerHz     float64
	Breakpoints uint64

	KeyboardPending   int
	KeyboardDropped   uint64
	KeyboardDelivered uint64
}

// Snapshot returns the current state of the machine. The display is copied
// while the kernel is between two operations so that it never observes a
// half-finished screen update.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	m.snapReq++
	req := m.snapReq

	for m.snapDone < req {
		switch {
		case !m.booted || m.halting:
			m.captureLocked()
		case m.state != StateRunning:
			m.mu.Unlock()
			<-m.done
			m.mu.Lock()
			m.captureLocked()
		default:
			m.cond.Broadcast()
			m.cond.Wait()
		}
	}

	snap := Snapshot{
		Screen:            m.snap,
		State:             m.state,
		InterruptsEnabled: m.ifEnabled,
		Halting:           m.halting,
		PIC:               m.pic.state(),
		EOIs:              m.pic.eois,
		Vectors:           m.vectors,
		Ticks:             m.ticks,
		TimerHz:           m.cfg.TimerHz,
		Breakpoints:       m.breakpoints,
		KeyboardPending:   m.kbc.pending(),
		KeyboardDropped:   m.kbc.dropped,
		KeyboardDelivered: m.kbc.delivered,
	}
	m.mu.Unlock()

	return snap
}

// ProgrammedTimerHz returns the rate that the kernel programmed channel 0
// of the timer to.
func (m *Machine) ProgrammedTimerHz() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pit.hz()
}
