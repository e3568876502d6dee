package console

import (
	"image/color"
	"io"

	"github.com/nickorlow/rosco/kernel"
	"github.com/nickorlow/rosco/kernel/cpu"
	"github.com/nickorlow/rosco/kernel/kfmt"
)

// VGA hardware registers.
const (
	dacWriteIndexPort uint16 = 0x3c8
	dacDataPort       uint16 = 0x3c9
	crtcIndexPort     uint16 = 0x3d4
	crtcDataPort      uint16 = 0x3d5

	crtcCursorLocationHigh uint8 = 0x0e
	crtcCursorLocationLow  uint8 = 0x0f
)

// DefaultFramebufferAddr is the physical address of the text-mode
// framebuffer.
const DefaultFramebufferAddr uintptr = 0xb8000

var (
	// the following functions are mocked by tests.
	mapFramebufferFn = cpu.MapFramebuffer
	portWriteByteFn  = cpu.PortWriteByte

	errMapFailed = &kernel.Error{Module: "vga_text", Message: "could not map framebuffer"}
)

// EGAPalette returns the 16 default colors of a text-mode console.
func EGAPalette() color.Palette {
	return color.Palette{
		color.RGBA{R: 0, G: 0, B: 0, A: 255},       /* black */
		color.RGBA{R: 0, G: 0, B: 170, A: 255},     /* blue */
		color.RGBA{R: 0, G: 170, B: 0, A: 255},     /* green */
		color.RGBA{R: 0, G: 170, B: 170, A: 255},   /* cyan */
		color.RGBA{R: 170, G: 0, B: 0, A: 255},     /* red */
		color.RGBA{R: 170, G: 0, B: 170, A: 255},   /* magenta */
		color.RGBA{R: 170, G: 85, B: 0, A: 255},    /* brown */
		color.RGBA{R: 170, G: 170, B: 170, A: 255}, /* light gray */
		color.RGBA{R: 85, G: 85, B: 85, A: 255},    /* dark gray */
		color.RGBA{R: 85, G: 85, B: 255, A: 255},   /* light blue */
		color.RGBA{R: 85, G: 255, B: 85, A: 255},   /* light green */
		color.RGBA{R: 85, G: 255, B: 255, A: 255},  /* light cyan */
		color.RGBA{R: 255, G: 85, B: 85, A: 255},   /* light red */
		color.RGBA{R: 255, G: 85, B: 255, A: 255},  /* light magenta */
		color.RGBA{R: 255, G: 255, B: 85, A: 255},  /* yellow */
		color.RGBA{R: 255, G: 255, B: 255, A: 255}, /* white */
	}
}

// VgaText implements an 80x25 text console backed by VGA mode 0x3 video
// memory.
//
// Each cell in the framebuffer is a uint16: the low byte holds the ASCII
// code and the high byte the attribute (4 bits of background followed by 4
// bits of foreground).
//
// VgaText does not synchronize access to the framebuffer; callers are
// expected to serialize access via a tty.
type VgaText struct {
	width  uint32
	height uint32

	fbPhysAddr uintptr
	fb         []uint16

	palette     color.Palette
	defaultAttr uint8
	clearChar   uint16
}

// NewVgaText creates a new vga text console with its framebuffer mapped to
// fbPhysAddr.
func NewVgaText(columns, rows uint32, fbPhysAddr uintptr) *VgaText {
	return &VgaText{
		width:      columns,
		height:     rows,
		fbPhysAddr: fbPhysAddr,
		clearChar:  uint16(' '),
		palette:    EGAPalette(),
		// light gray text on black background
		defaultAttr: MakeAttr(7, 0),
	}
}

// Dimensions returns the console width and height in characters.
func (cons *VgaText) Dimensions() (uint32, uint32) {
	return cons.width, cons.height
}

// DefaultAttr returns the default attribute used by this console.
func (cons *VgaText) DefaultAttr() uint8 {
	return cons.defaultAttr
}

// Fill sets the contents of the specified rectangular region to blank cells
// with the requested attribute.
func (cons *VgaText) Fill(x, y, width, height uint32, attr uint8) {
	if x >= cons.width || y >= cons.height {
		return
	}

	if width > cons.width-x {
		width = cons.width - x
	}
	if height > cons.height-y {
		height = cons.height - y
	}

	clr := uint16(attr)<<8 | cons.clearChar
	for row := y; row < y+height; row++ {
		rowOffset := row * cons.width
		for col := x; col < x+width; col++ {
			cons.fb[rowOffset+col] = clr
		}
	}
}

// Scroll moves the contents of the first rows rows of the console by lines
// in the specified direction.
func (cons *VgaText) Scroll(dir ScrollDir, lines, rows uint32) {
	if rows > cons.height {
		rows = cons.height
	}
	if lines == 0 || lines >= rows {
		return
	}

	region := cons.fb[:rows*cons.width]
	offset := lines * cons.width

	switch dir {
	case ScrollDirUp:
		copy(region, region[offset:])
	case ScrollDirDown:
		copy(region[offset:], region)
	}
}

// Write a char to the specified location.
func (cons *VgaText) Write(ch byte, attr uint8, x, y uint32) {
	if x >= cons.width || y >= cons.height {
		return
	}

	cons.fb[y*cons.width+x] = uint16(attr)<<8 | uint16(ch)
}

// Cell returns the character and attribute stored at the specified
// location.
func (cons *VgaText) Cell(x, y uint32) (ch byte, attr uint8) {
	if x >= cons.width || y >= cons.height {
		return 0, 0
	}

	cell := cons.fb[y*cons.width+x]
	return byte(cell), uint8(cell >> 8)
}

// SetCursor moves the blinking hardware cursor to the specified location.
func (cons *VgaText) SetCursor(x, y uint32) {
	if x >= cons.width {
		x = cons.width - 1
	}
	if y >= cons.height {
		y = cons.height - 1
	}

	pos := uint16(y*cons.width + x)
	portWriteByteFn(crtcIndexPort, crtcCursorLocationLow)
	portWriteByteFn(crtcDataPort, uint8(pos))
	portWriteByteFn(crtcIndexPort, crtcCursorLocationHigh)
	portWriteByteFn(crtcDataPort, uint8(pos>>8))
}

// Palette returns the active color palette for this console.
func (cons *VgaText) Palette() color.Palette {
	return cons.palette
}

// SetPaletteColor updates the color definition for the specified
// palette index. Passing a color index greater than the number of
// supported colors is a no-op.
func (cons *VgaText) SetPaletteColor(index uint8, rgba color.RGBA) {
	if int(index) >= len(cons.palette) {
		return
	}

	cons.palette[index] = rgba

	// Load palette entry to the DAC. In this mode, colors are specified
	// using 6-bits for each component; the RGB values need to be converted
	// to the 0-63 range.
	portWriteByteFn(dacWriteIndexPort, index)
	portWriteByteFn(dacDataPort, rgba.R>>2)
	portWriteByteFn(dacDataPort, rgba.G>>2)
	portWriteByteFn(dacDataPort, rgba.B>>2)
}

// DriverName returns the name of this driver.
func (cons *VgaText) DriverName() string {
	return "vga_text_console"
}

// DriverVersion returns the version of this driver.
func (cons *VgaText) DriverVersion() (uint16, uint16, uint16) {
	return 0, 1, 0
}

// DriverInit maps the framebuffer so it can be written to.
func (cons *VgaText) DriverInit(w io.Writer) *kernel.Error {
	cells := int(cons.width * cons.height)
	fb := mapFramebufferFn(cons.fbPhysAddr, cells)
	if len(fb) < cells {
		return errMapFailed
	}

	cons.fb = fb
	kfmt.Fprintf(w, "mapped %dx%d framebuffer at 0x%x\n", cons.width, cons.height, cons.fbPhysAddr)
	return nil
}

// ProbeVgaText returns a driver for the standard 80x25 text console.
func ProbeVgaText() *VgaText {
	return NewVgaText(80, 25, DefaultFramebufferAddr)
}
