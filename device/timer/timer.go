// Package timer counts PIT ticks and renders the elapsed time on a status
// line at the bottom of the screen.
package timer

import (
	"io"
	"math"
	"sync/atomic"
	"time"

	"github.com/nickorlow/rosco/kernel"
	"github.com/nickorlow/rosco/kernel/cpu"
	"github.com/nickorlow/rosco/kernel/kfmt"
)

const (
	// DefaultSecondsPerTick is the period of a PIT channel 0 that was left
	// at its power-on divisor of 65536.
	DefaultSecondsPerTick = 65536.0 / 1193182.0

	// DefaultAttr draws the status line as black on white.
	DefaultAttr uint8 = 0xf0

	maxLineWidth = 256
)

// StatusWriter is implemented by consoles that can draw text at a fixed
// position without disturbing the cursor.
type StatusWriter interface {
	Dimensions() (uint32, uint32)
	WriteAtAttr(s string, x, y uint32, attr uint8)
}

// Config controls how ticks are converted and displayed.
type Config struct {
	// SecondsPerTick is the interval between two timer interrupts.
	SecondsPerTick float64

	// Attr is the attribute used for the status line.
	Attr uint8

	// StatusLine enables rendering on every tick.
	StatusLine bool
}

// DefaultConfig returns the configuration used when the boot command line
// does not override it.
func DefaultConfig() Config {
	return Config{
		SecondsPerTick: DefaultSecondsPerTick,
		Attr:           DefaultAttr,
		StatusLine:     true,
	}
}

// Timer services the timer interrupt.
type Timer struct {
	out StatusWriter
	cfg Config
	row uint32

	ticks atomic.Uint64

	// line is only touched by the timer handler which never nests with
	// itself.
	line lineWriter
}

// New returns a timer that renders to the last row of out.
func New(out StatusWriter, cfg Config) *Timer {
	if cfg.SecondsPerTick <= 0 {
		cfg.SecondsPerTick = DefaultSecondsPerTick
	}

	t := &Timer{out: out, cfg: cfg}
	if out != nil {
		_, height := out.Dimensions()
		if height > 0 {
			t.row = height - 1
		}
	}
	return t
}

// HandleIRQ increments the tick counter and refreshes the status line. It
// must be installed as the handler for the timer line.
func (t *Timer) HandleIRQ(_ *cpu.Registers) {
	ticks := t.ticks.Add(1)

	if !t.cfg.StatusLine || t.out == nil {
		return
	}

	width, _ := t.out.Dimensions()
	t.out.WriteAtAttr(t.render(ticks, width), 0, t.row, t.cfg.Attr)
}

// render formats the status line for ticks, padded with blanks to width.
func (t *Timer) render(ticks uint64, width uint32) string {
	centis := uint64(math.Round(float64(ticks) * t.cfg.SecondsPerTick * 100))

	t.line.reset()
	kfmt.Fprintf(&t.line, "Tick Number: %d  /  Seconds Elapsed: %d.%02d", ticks, centis/100, centis%100)
	t.line.pad(int(width))

	return t.line.String()
}

// Ticks returns the number of timer interrupts serviced so far.
func (t *Timer) Ticks() uint64 {
	return t.ticks.Load()
}

// Elapsed returns the time represented by the ticks serviced so far.
func (t *Timer) Elapsed() time.Duration {
	return time.Duration(float64(t.ticks.Load()) * t.cfg.SecondsPerTick * float64(time.Second))
}

// DriverName returns the name of this driver.
func (t *Timer) DriverName() string {
	return "pit_timer"
}

// DriverVersion returns the version of this driver.
func (t *Timer) DriverVersion() (uint16, uint16, uint16) {
	return 0, 1, 0
}

// DriverInit reports the tick period and where the status line is drawn.
func (t *Timer) DriverInit(w io.Writer) *kernel.Error {
	micros := uint64(math.Round(t.cfg.SecondsPerTick * 1e6))
	kfmt.Fprintf(w, "tick period %d.%06ds", micros/1000000, micros%1000000)
	if t.cfg.StatusLine {
		kfmt.Fprintf(w, ", status line at row %d\n", t.row)
	} else {
		kfmt.Fprintf(w, ", status line disabled\n")
	}
	return nil
}

// lineWriter is an io.Writer backed by a fixed buffer. Bytes past the end
// of the buffer are dropped.
type lineWriter struct {
	buf [maxLineWidth]byte
	n   int
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.n += copy(w.buf[w.n:], p)
	return len(p), nil
}

func (w *lineWriter) reset() {
	w.n = 0
}

// pad fills the buffer with blanks up to width or truncates it to width.
func (w *lineWriter) pad(width int) {
	if width > len(w.buf) {
		width = len(w.buf)
	}
	for ; w.n < width; w.n++ {
		w.buf[w.n] = ' '
	}
	w.n = width
}

func (w *lineWriter) String() string {
	return string(w.buf[:w.n])
}
