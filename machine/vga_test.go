package machine

import (
	"image/color"
	"testing"
)

func TestVGACursorRegisters(t *testing.T) {
	var v vga
	v.reset()

	pos := uint16(3*Columns + 7)
	v.portWrite(crtcIndexPort, crtcCursorLow)
	v.portWrite(crtcDataPort, uint8(pos))
	v.portWrite(crtcIndexPort, crtcCursorHigh)
	v.portWrite(crtcDataPort, uint8(pos>>8))

	if got := v.portRead(crtcDataPort); got != uint8(pos>>8) {
		t.Errorf("expected cursor high 0x%x; got 0x%x", uint8(pos>>8), got)
	}

	s := v.screen()
	if s.CursorX != 7 || s.CursorY != 3 {
		t.Fatalf("expected cursor at (7, 3); got (%d, %d)", s.CursorX, s.CursorY)
	}
}

func TestVGAPaletteProgramming(t *testing.T) {
	var v vga
	v.reset()

	if exp, got := (color.RGBA{R: 85, G: 255, B: 85, A: 255}), v.palette[10]; got != exp {
		t.Fatalf("expected default palette entry %v; got %v", exp, got)
	}

	// two triplets starting at index 1 exercise the auto-increment
	v.portWrite(dacWriteIndexPort, 1)
	for _, c := range []uint8{0x3f, 0x00, 0x20, 0x00, 0x10, 0xff} {
		v.portWrite(dacDataPort, c)
	}

	specs := []struct {
		index int
		exp   color.RGBA
	}{
		{1, color.RGBA{R: 255, G: 0, B: 130, A: 255}},
		{2, color.RGBA{R: 0, G: 65, B: 255, A: 255}},
	}

	for specIndex, spec := range specs {
		if got := v.palette[spec.index]; got != spec.exp {
			t.Errorf("[spec %d] expected palette entry %d to be %v; got %v", specIndex, spec.index, spec.exp, got)
		}
	}
}

func TestScreenText(t *testing.T) {
	var s Screen
	for i, ch := range []byte("hi") {
		s.Cells[Columns+i] = uint16(0x1e)<<8 | uint16(ch)
	}
	s.Cells[2*Columns] = uint16(0x07)<<8 | ' '
	s.Palette[0x0e] = color.RGBA{R: 1, A: 255}
	s.Palette[0x01] = color.RGBA{B: 1, A: 255}

	if got := s.Line(1); got != "hi" {
		t.Errorf("expected line 1 to be %q; got %q", "hi", got)
	}
	if got := s.Line(2); got != "" {
		t.Errorf("expected line 2 to be empty; got %q", got)
	}

	ch, attr := s.Cell(1, 1)
	if ch != 'i' || attr != 0x1e {
		t.Errorf("expected ('i', 0x1e); got (%q, 0x%x)", ch, attr)
	}
	if ch, attr = s.Cell(Columns, 0); ch != 0 || attr != 0 {
		t.Errorf("expected out of bounds cell to be empty; got (%q, 0x%x)", ch, attr)
	}

	fg, bg := s.Colors(0, 1)
	if fg != s.Palette[0x0e] || bg != s.Palette[0x01] {
		t.Errorf("expected fg %v bg %v; got fg %v bg %v", s.Palette[0x0e], s.Palette[0x01], fg, bg)
	}

	if exp, got := "\nhi\n\n", s.Text()[:5]; got != exp {
		t.Errorf("expected text to start with %q; got %q", exp, got)
	}
}
