package main

import (
	"github.com/gdamore/tcell/v2"

	"github.com/nickorlow/rosco/machine"
)

// drawScreen copies the display of snap into the region of s starting at
// (x0, y0) that is w x h cells large.
func drawScreen(s tcell.Screen, snap *machine.Snapshot, x0, y0, w, h int) {
	for y := 0; y < machine.Rows && y < h; y++ {
		for x := 0; x < machine.Columns && x < w; x++ {
			ch, _ := snap.Cell(x, y)
			if ch < ' ' || ch > '~' {
				ch = ' '
			}

			fg, bg := snap.Colors(x, y)
			style := tcell.StyleDefault.
				Foreground(tcell.NewRGBColor(int32(fg.R), int32(fg.G), int32(fg.B))).
				Background(tcell.NewRGBColor(int32(bg.R), int32(bg.G), int32(bg.B)))
			s.SetContent(x0+x, y0+y, rune(ch), nil, style)
		}
	}

	if snap.CursorX < w && snap.CursorY < h && snap.State == machine.StateRunning {
		s.ShowCursor(x0+snap.CursorX, y0+snap.CursorY)
	} else {
		s.HideCursor()
	}
}

// keyScancodes returns the scancodes for a terminal key press. Terminals
// only report key presses, so every key is sent as a make/break pair and
// upper-case letters are wrapped in a shift press.
func keyScancodes(ev *tcell.EventKey) []uint8 {
	switch ev.Key() {
	case tcell.KeyEnter:
		codes, _ := machine.Scancodes("\n")
		return codes
	case tcell.KeyRune:
		r := ev.Rune()
		if r > '~' {
			return nil
		}
		codes, _ := machine.Scancodes(string(r))
		return codes
	}
	return nil
}
