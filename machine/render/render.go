// Package render rasterizes the text display of a machine into an image
// using a 7x13 bitmap font.
package render

import (
	"image"
	"io"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/nickorlow/rosco/machine"
)

// Cell geometry in pixels.
const (
	CellWidth  = 7
	CellHeight = 13

	// Width and Height are the dimensions of a rendered screen.
	Width  = machine.Columns * CellWidth
	Height = machine.Rows * CellHeight

	cursorHeight = 2
)

// Renderer draws screens into a reusable canvas. It is not safe for
// concurrent use.
type Renderer struct {
	dc *gg.Context

	// Cursor enables drawing the hardware cursor as an underline.
	Cursor bool
}

// New returns a renderer with a Width x Height canvas.
func New() *Renderer {
	dc := gg.NewContext(Width, Height)
	dc.SetFontFace(basicfont.Face7x13)
	return &Renderer{dc: dc, Cursor: true}
}

// Draw renders s and returns the canvas. The returned image is overwritten
// by the next call to Draw.
func (r *Renderer) Draw(s *machine.Screen) *image.RGBA {
	dc := r.dc

	for y := 0; y < machine.Rows; y++ {
		for x := 0; x < machine.Columns; x++ {
			ch, _ := s.Cell(x, y)
			fg, bg := s.Colors(x, y)
			px, py := float64(x*CellWidth), float64(y*CellHeight)

			dc.SetColor(bg)
			dc.DrawRectangle(px, py, CellWidth, CellHeight)
			dc.Fill()

			if ch <= ' ' || ch > '~' {
				continue
			}

			dc.SetColor(fg)
			dc.DrawString(string(rune(ch)), px, py+float64(basicfont.Face7x13.Ascent))
		}
	}

	if r.Cursor && s.CursorX < machine.Columns && s.CursorY < machine.Rows {
		fg, _ := s.Colors(s.CursorX, s.CursorY)
		dc.SetColor(fg)
		dc.DrawRectangle(
			float64(s.CursorX*CellWidth),
			float64((s.CursorY+1)*CellHeight-cursorHeight),
			CellWidth,
			cursorHeight,
		)
		dc.Fill()
	}

	return dc.Image().(*image.RGBA)
}

// EncodePNG renders s and writes it to w in PNG format.
func (r *Renderer) EncodePNG(w io.Writer, s *machine.Screen) error {
	r.Draw(s)
	return r.dc.EncodePNG(w)
}

// SavePNG renders s into a PNG file at path.
func (r *Renderer) SavePNG(path string, s *machine.Screen) error {
	r.Draw(s)
	return r.dc.SavePNG(path)
}
