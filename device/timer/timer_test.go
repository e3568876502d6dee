package timer

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/nickorlow/rosco/device/tty"
	"github.com/nickorlow/rosco/device/video/console"
	"github.com/nickorlow/rosco/kernel/cpu"
	"github.com/nickorlow/rosco/kernel/cpu/cputest"
	"github.com/nickorlow/rosco/kernel/sync"
)

type statusCall struct {
	s    string
	x, y uint32
	attr uint8
}

type recordingStatus struct {
	width, height uint32
	calls         []statusCall
}

func (r *recordingStatus) Dimensions() (uint32, uint32) {
	return r.width, r.height
}

func (r *recordingStatus) WriteAtAttr(s string, x, y uint32, attr uint8) {
	r.calls = append(r.calls, statusCall{s, x, y, attr})
}

func TestHandleIRQ(t *testing.T) {
	specs := []struct {
		secondsPerTick float64
		ticks          int
		exp            string
	}{
		{DefaultSecondsPerTick, 1, "Tick Number: 1  /  Seconds Elapsed: 0.05"},
		{DefaultSecondsPerTick, 18, "Tick Number: 18  /  Seconds Elapsed: 0.99"},
		{DefaultSecondsPerTick, 100, "Tick Number: 100  /  Seconds Elapsed: 5.49"},
		{0.06, 1, "Tick Number: 1  /  Seconds Elapsed: 0.06"},
		{0.06, 250, "Tick Number: 250  /  Seconds Elapsed: 15.00"},
		{0.01, 7, "Tick Number: 7  /  Seconds Elapsed: 0.07"},
		// non-positive periods fall back to the default
		{0, 100, "Tick Number: 100  /  Seconds Elapsed: 5.49"},
	}

	for specIndex, spec := range specs {
		out := &recordingStatus{width: 80, height: 25}
		cfg := DefaultConfig()
		cfg.SecondsPerTick = spec.secondsPerTick
		tmr := New(out, cfg)

		for i := 0; i < spec.ticks; i++ {
			tmr.HandleIRQ(nil)
		}

		if got := tmr.Ticks(); got != uint64(spec.ticks) {
			t.Errorf("[spec %d] expected %d ticks; got %d", specIndex, spec.ticks, got)
			continue
		}

		if len(out.calls) != spec.ticks {
			t.Errorf("[spec %d] expected the status line to be drawn on every tick; got %d draws", specIndex, len(out.calls))
			continue
		}

		last := out.calls[len(out.calls)-1]
		if last.x != 0 || last.y != 24 || last.attr != DefaultAttr {
			t.Errorf("[spec %d] expected status line at (0, 24) with attr 0x%x; got (%d, %d) with 0x%x", specIndex, DefaultAttr, last.x, last.y, last.attr)
		}

		if len(last.s) != 80 {
			t.Errorf("[spec %d] expected status line to be padded to 80 columns; got %d", specIndex, len(last.s))
		}

		if got := strings.TrimRight(last.s, " "); got != spec.exp {
			t.Errorf("[spec %d] expected status line %q; got %q", specIndex, spec.exp, got)
		}
	}
}

func TestStatusLineDisabled(t *testing.T) {
	out := &recordingStatus{width: 80, height: 25}
	cfg := DefaultConfig()
	cfg.StatusLine = false
	tmr := New(out, cfg)

	tmr.HandleIRQ(nil)
	tmr.HandleIRQ(nil)

	if tmr.Ticks() != 2 {
		t.Fatalf("expected ticks to be counted; got %d", tmr.Ticks())
	}
	if len(out.calls) != 0 {
		t.Fatalf("expected no status line output; got %d draws", len(out.calls))
	}
}

func TestStatusLineTruncatedToWidth(t *testing.T) {
	out := &recordingStatus{width: 20, height: 5}
	tmr := New(out, DefaultConfig())
	tmr.HandleIRQ(nil)

	if len(out.calls) != 1 {
		t.Fatalf("expected one draw; got %d", len(out.calls))
	}
	if got := out.calls[0]; got.s != "Tick Number: 1  /  S" || got.y != 4 {
		t.Fatalf("expected truncated status line on row 4; got %q on row %d", got.s, got.y)
	}
}

func TestElapsed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SecondsPerTick = 0.5
	tmr := New(nil, cfg)

	for i := 0; i < 5; i++ {
		tmr.HandleIRQ(nil)
	}

	if got := tmr.Elapsed(); got != 2500*time.Millisecond {
		t.Fatalf("expected 2.5s to have elapsed; got %s", got)
	}
}

func TestStatusLineKeepsCursor(t *testing.T) {
	bus := cputest.New()
	vga := console.NewVgaText(80, 25, console.DefaultFramebufferAddr)
	if err := vga.DriverInit(io.Discard); err != nil {
		t.Fatal(err)
	}

	con := tty.NewConsole(vga, &sync.IRQLock{}, 0x0a)
	con.ReserveRows(1)
	con.Print("> ")

	tmr := New(con, DefaultConfig())
	cpu.EnableInterrupts()
	bus.Deliver(func() { tmr.HandleIRQ(nil) })

	if x, y := con.CursorPosition(); x != 2 || y != 0 {
		t.Fatalf("expected cursor to stay at (2, 0); got (%d, %d)", x, y)
	}
	if con.Color() != 0x0a {
		t.Fatalf("expected console color to be untouched; got 0x%x", con.Color())
	}

	var row bytes.Buffer
	for x := uint32(0); x < 80; x++ {
		ch, attr := vga.Cell(x, 24)
		if attr != DefaultAttr {
			t.Fatalf("expected cell (%d, 24) to use attr 0x%x; got 0x%x", x, DefaultAttr, attr)
		}
		row.WriteByte(ch)
	}

	if exp := "Tick Number: 1  /  Seconds Elapsed: 0.05"; !strings.HasPrefix(row.String(), exp) {
		t.Fatalf("expected row 24 to start with %q; got %q", exp, row.String())
	}
}

func TestDriverInit(t *testing.T) {
	specs := []struct {
		cfg func() Config
		exp string
	}{
		{DefaultConfig, "tick period 0.054925s, status line at row 24\n"},
		{
			func() Config {
				cfg := DefaultConfig()
				cfg.SecondsPerTick = 0.06
				cfg.StatusLine = false
				return cfg
			},
			"tick period 0.060000s, status line disabled\n",
		},
	}

	for specIndex, spec := range specs {
		var buf bytes.Buffer
		tmr := New(&recordingStatus{width: 80, height: 25}, spec.cfg())
		if err := tmr.DriverInit(&buf); err != nil {
			t.Errorf("[spec %d] unexpected error: %v", specIndex, err)
		}
		if got := buf.String(); got != spec.exp {
			t.Errorf("[spec %d] expected %q; got %q", specIndex, spec.exp, got)
		}
	}
}
