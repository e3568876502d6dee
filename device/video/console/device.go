// Package console implements character-cell display devices.
package console

import "image/color"

// ScrollDir defines a scroll direction.
type ScrollDir uint8

// The supported list of scroll directions for the console Scroll() calls.
const (
	ScrollDirUp ScrollDir = iota
	ScrollDirDown
)

// MakeAttr packs a foreground and background palette index into a cell
// attribute byte.
func MakeAttr(fg, bg uint8) uint8 {
	return (bg&0xf)<<4 | fg&0xf
}

// SplitAttr returns the foreground and background palette indices encoded
// in attr.
func SplitAttr(attr uint8) (fg, bg uint8) {
	return attr & 0xf, attr >> 4
}

// The Device interface is implemented by objects that can function as system
// consoles. All coordinates are 0-based with the origin at the top-left
// corner.
type Device interface {
	// Dimensions returns the width and height of the console in
	// characters.
	Dimensions() (uint32, uint32)

	// DefaultAttr returns the attribute used by this console when it is
	// first initialized.
	DefaultAttr() uint8

	// Fill sets the contents of the specified rectangular region to blank
	// cells with the requested attribute. The region is clipped to the
	// console dimensions.
	Fill(x, y, width, height uint32, attr uint8)

	// Scroll moves the contents of the first rows rows of the console by
	// lines in the specified direction. The caller is responsible for
	// updating (e.g. clear or replace) the contents of the region that was
	// scrolled.
	Scroll(dir ScrollDir, lines, rows uint32)

	// Write a char to the specified location. Writes outside the console
	// are ignored.
	Write(ch byte, attr uint8, x, y uint32)

	// SetCursor moves the hardware cursor to the specified location.
	SetCursor(x, y uint32)

	// Palette returns the active color palette for this console.
	Palette() color.Palette

	// SetPaletteColor updates the color definition for the specified
	// palette index. Passing a color index greater than the number of
	// supported colors should be a no-op.
	SetPaletteColor(uint8, color.RGBA)
}
