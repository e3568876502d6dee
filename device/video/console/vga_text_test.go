package console

import (
	"bytes"
	"image/color"
	"testing"

	"github.com/nickorlow/rosco/kernel/cpu"
)

func newTestConsole(w, h uint32) *VgaText {
	cons := NewVgaText(w, h, DefaultFramebufferAddr)
	cons.fb = make([]uint16, w*h)
	return cons
}

func TestVgaTextDimensions(t *testing.T) {
	cons := NewVgaText(40, 50, 0)
	if w, h := cons.Dimensions(); w != 40 || h != 50 {
		t.Fatalf("expected console dimensions to be 40x50; got %dx%d", w, h)
	}

	if exp, got := MakeAttr(7, 0), cons.DefaultAttr(); got != exp {
		t.Fatalf("expected default attr 0x%x; got 0x%x", exp, got)
	}
}

func TestAttr(t *testing.T) {
	if got := MakeAttr(0xa, 0x1); got != 0x1a {
		t.Fatalf("expected MakeAttr(0xa, 0x1) to return 0x1a; got 0x%x", got)
	}

	if fg, bg := SplitAttr(0xf0); fg != 0 || bg != 0xf {
		t.Fatalf("expected SplitAttr(0xf0) to return 0, 0xf; got 0x%x, 0x%x", fg, bg)
	}
}

func TestVgaTextWrite(t *testing.T) {
	cons := newTestConsole(80, 25)

	specs := []struct {
		x, y uint32
		ch   byte
		attr uint8
	}{
		{0, 0, 'a', 0x0a},
		{79, 0, 'b', 0x1e},
		{0, 24, 'c', 0xf0},
		{79, 24, 'd', 0x07},
	}

	for specIndex, spec := range specs {
		cons.Write(spec.ch, spec.attr, spec.x, spec.y)

		if got, exp := cons.fb[spec.y*80+spec.x], uint16(spec.attr)<<8|uint16(spec.ch); got != exp {
			t.Errorf("[spec %d] expected cell value 0x%x; got 0x%x", specIndex, exp, got)
		}

		ch, attr := cons.Cell(spec.x, spec.y)
		if ch != spec.ch || attr != spec.attr {
			t.Errorf("[spec %d] expected Cell to return %q/0x%x; got %q/0x%x", specIndex, spec.ch, spec.attr, ch, attr)
		}
	}

	// out of bounds writes are ignored
	before := append([]uint16(nil), cons.fb...)
	cons.Write('x', 0x0f, 80, 0)
	cons.Write('x', 0x0f, 0, 25)
	for i := range before {
		if before[i] != cons.fb[i] {
			t.Fatalf("expected out of bounds writes to be ignored; cell %d changed", i)
		}
	}

	if ch, attr := cons.Cell(100, 100); ch != 0 || attr != 0 {
		t.Fatal("expected out of bounds Cell to return zero values")
	}
}

func TestVgaTextFill(t *testing.T) {
	specs := []struct {
		x, y, w, h uint32
		expFilled  int
	}{
		{0, 0, 80, 25, 80 * 25},
		{10, 10, 5, 2, 10},
		// clipped
		{78, 24, 10, 10, 2},
		{0, 0, 1000, 1, 80},
		// outside
		{80, 0, 1, 1, 0},
	}

	for specIndex, spec := range specs {
		cons := newTestConsole(80, 25)
		cons.Fill(spec.x, spec.y, spec.w, spec.h, 0x1f)

		var filled int
		for i, cell := range cons.fb {
			if cell == 0x1f20 {
				filled++
				x, y := uint32(i%80), uint32(i/80)
				if x < spec.x || y < spec.y || x >= spec.x+spec.w || y >= spec.y+spec.h {
					t.Errorf("[spec %d] cell (%d, %d) filled outside the requested region", specIndex, x, y)
				}
			}
		}

		if filled != spec.expFilled {
			t.Errorf("[spec %d] expected %d cells to be filled; got %d", specIndex, spec.expFilled, filled)
		}
	}
}

func TestVgaTextScroll(t *testing.T) {
	var (
		w, h uint32 = 4, 5
		cons        = newTestConsole(w, h)
	)

	fillRows := func() {
		for y := uint32(0); y < h; y++ {
			for x := uint32(0); x < w; x++ {
				cons.Write(byte('0'+y), 0x07, x, y)
			}
		}
	}

	rowChars := func() string {
		var buf bytes.Buffer
		for y := uint32(0); y < h; y++ {
			ch, _ := cons.Cell(0, y)
			buf.WriteByte(ch)
		}
		return buf.String()
	}

	specs := []struct {
		dir         ScrollDir
		lines, rows uint32
		exp         string
	}{
		{ScrollDirUp, 1, h, "12344"},
		{ScrollDirUp, 2, h, "23434"},
		{ScrollDirDown, 1, h, "00123"},
		// region that excludes the last row
		{ScrollDirUp, 1, h - 1, "12334"},
		// no-ops
		{ScrollDirUp, 0, h, "01234"},
		{ScrollDirUp, h, h, "01234"},
	}

	for specIndex, spec := range specs {
		fillRows()
		cons.Scroll(spec.dir, spec.lines, spec.rows)

		if got := rowChars(); got != spec.exp {
			t.Errorf("[spec %d] expected rows after scroll to be %q; got %q", specIndex, spec.exp, got)
		}
	}
}

func TestVgaTextSetCursor(t *testing.T) {
	defer func() { portWriteByteFn = cpu.PortWriteByte }()

	var writes []uint8
	portWriteByteFn = func(_ uint16, val uint8) {
		writes = append(writes, val)
	}

	cons := newTestConsole(80, 25)
	cons.SetCursor(5, 3)

	// 3*80+5 = 245 = 0x00f5
	exp := []uint8{crtcCursorLocationLow, 0xf5, crtcCursorLocationHigh, 0x00}
	if !bytes.Equal(writes, exp) {
		t.Fatalf("expected CRTC writes %v; got %v", exp, writes)
	}
}

func TestVgaTextSetPaletteColor(t *testing.T) {
	defer func() { portWriteByteFn = cpu.PortWriteByte }()

	cons := newTestConsole(80, 25)

	var writes []uint8
	portWriteByteFn = func(_ uint16, val uint8) {
		writes = append(writes, val)
	}

	rgba := color.RGBA{R: 255, G: 128, B: 4}
	cons.SetPaletteColor(2, rgba)

	if got := cons.Palette()[2]; got != rgba {
		t.Errorf("expected color at index 2 to be %v; got %v", rgba, got)
	}

	if exp := []uint8{2, 255 >> 2, 128 >> 2, 4 >> 2}; !bytes.Equal(writes, exp) {
		t.Errorf("expected DAC writes %v; got %v", exp, writes)
	}

	// out of range index is a no-op
	writes = nil
	cons.SetPaletteColor(16, rgba)
	if len(writes) != 0 {
		t.Errorf("expected no DAC writes for an out of range index; got %v", writes)
	}
}

func TestVgaTextDriverInit(t *testing.T) {
	defer func() { mapFramebufferFn = cpu.MapFramebuffer }()

	cons := NewVgaText(80, 25, DefaultFramebufferAddr)

	if cons.DriverName() != "vga_text_console" {
		t.Errorf("unexpected driver name %q", cons.DriverName())
	}
	if major, minor, patch := cons.DriverVersion(); major != 0 || minor != 1 || patch != 0 {
		t.Errorf("unexpected driver version %d.%d.%d", major, minor, patch)
	}

	t.Run("map fails", func(t *testing.T) {
		mapFramebufferFn = func(_ uintptr, _ int) []uint16 { return nil }
		if err := cons.DriverInit(nil); err != errMapFailed {
			t.Fatalf("expected errMapFailed; got %v", err)
		}
	})

	t.Run("success", func(t *testing.T) {
		var gotAddr uintptr
		mapFramebufferFn = func(addr uintptr, count int) []uint16 {
			gotAddr = addr
			return make([]uint16, count)
		}

		var buf bytes.Buffer
		if err := cons.DriverInit(&buf); err != nil {
			t.Fatal(err)
		}

		if gotAddr != DefaultFramebufferAddr {
			t.Errorf("expected framebuffer at 0x%x to be mapped; got 0x%x", DefaultFramebufferAddr, gotAddr)
		}
		if exp := "mapped 80x25 framebuffer at 0xb8000\n"; buf.String() != exp {
			t.Errorf("expected init output %q; got %q", exp, buf.String())
		}
	})
}
