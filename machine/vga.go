package machine

import (
	"image/color"
	"strings"

	"github.com/nickorlow/rosco/device/video/console"
)

// Text mode geometry.
const (
	Columns = 80
	Rows    = 25

	// FramebufferAddr is the physical address of the text framebuffer.
	FramebufferAddr uintptr = 0xb8000
)

const (
	dacWriteIndexPort uint16 = 0x3c8
	dacDataPort       uint16 = 0x3c9
	crtcIndexPort     uint16 = 0x3d4
	crtcDataPort      uint16 = 0x3d5

	crtcCursorHigh uint8 = 0x0e
	crtcCursorLow  uint8 = 0x0f
)

// vga emulates the text-mode memory, the CRTC cursor registers and the DAC
// of a VGA adapter.
type vga struct {
	fb [Columns * Rows]uint16

	crtcIndex uint8
	cursor    uint16

	dacIndex     uint8
	dacComponent int
	dacRGB       [3]uint8
	palette      [16]color.RGBA
}

func (v *vga) reset() {
	*v = vga{}
	for i, c := range console.EGAPalette() {
		v.palette[i] = c.(color.RGBA)
	}
}

func (v *vga) portRead(port uint16) uint8 {
	switch port {
	case crtcIndexPort:
		return v.crtcIndex
	case crtcDataPort:
		switch v.crtcIndex {
		case crtcCursorHigh:
			return uint8(v.cursor >> 8)
		case crtcCursorLow:
			return uint8(v.cursor)
		}
	}
	return 0
}

func (v *vga) portWrite(port uint16, val uint8) {
	switch port {
	case crtcIndexPort:
		v.crtcIndex = val
	case crtcDataPort:
		switch v.crtcIndex {
		case crtcCursorHigh:
			v.cursor = v.cursor&0x00ff | uint16(val)<<8
		case crtcCursorLow:
			v.cursor = v.cursor&0xff00 | uint16(val)
		}
	case dacWriteIndexPort:
		v.dacIndex, v.dacComponent = val, 0
	case dacDataPort:
		v.dacRGB[v.dacComponent] = val & 0x3f
		v.dacComponent++
		if v.dacComponent < 3 {
			return
		}

		if int(v.dacIndex) < len(v.palette) {
			v.palette[v.dacIndex] = color.RGBA{
				R: expand6(v.dacRGB[0]),
				G: expand6(v.dacRGB[1]),
				B: expand6(v.dacRGB[2]),
				A: 255,
			}
		}

		// the DAC auto-increments the index after each triplet
		v.dacIndex++
		v.dacComponent = 0
	}
}

// expand6 scales a 6-bit DAC component to 8 bits.
func expand6(c uint8) uint8 {
	return c<<2 | c>>4
}

// Screen is a copy of the visible state of the text display.
type Screen struct {
	Cells   [Columns * Rows]uint16
	CursorX int
	CursorY int
	Palette [16]color.RGBA
}

func (v *vga) screen() Screen {
	return Screen{
		Cells:   v.fb,
		CursorX: int(v.cursor) % Columns,
		CursorY: int(v.cursor) / Columns,
		Palette: v.palette,
	}
}

// Cell returns the character and attribute at (x, y).
func (s *Screen) Cell(x, y int) (byte, uint8) {
	if x < 0 || y < 0 || x >= Columns || y >= Rows {
		return 0, 0
	}

	cell := s.Cells[y*Columns+x]
	return byte(cell), uint8(cell >> 8)
}

// Line returns row y as text with trailing blanks removed. Empty cells
// read as blanks.
func (s *Screen) Line(y int) string {
	var sb strings.Builder
	for x := 0; x < Columns; x++ {
		ch, _ := s.Cell(x, y)
		if ch == 0 {
			ch = ' '
		}
		sb.WriteByte(ch)
	}
	return strings.TrimRight(sb.String(), " ")
}

// Text returns all rows joined by line feeds.
func (s *Screen) Text() string {
	lines := make([]string, Rows)
	for y := range lines {
		lines[y] = s.Line(y)
	}
	return strings.Join(lines, "\n")
}

// Colors returns the foreground and background color of the cell at
// (x, y).
func (s *Screen) Colors(x, y int) (fg, bg color.RGBA) {
	_, attr := s.Cell(x, y)
	f, b := console.SplitAttr(attr)
	return s.Palette[f], s.Palette[b]
}
