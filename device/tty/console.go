// Package tty implements the kernel text console on top of a character-cell
// display device.
package tty

import (
	"io"

	"github.com/nickorlow/rosco/device/video/console"
	"github.com/nickorlow/rosco/kernel/sync"
)

// DefaultTabWidth defines the number of spaces that tabs expand to.
const DefaultTabWidth = 4

// Console tracks a cursor and a current color on top of a console.Device
// and serializes all access to the device through a shared IRQLock. The
// lock is expected to be shared with every interrupt handler that touches
// the screen so that handler output can never interleave with a
// half-finished foreground write.
//
// The console interprets the following special characters:
//   - \r (carriage-return)
//   - \n (line-feed)
//   - \b (backspace)
//   - \t (tab; expanded to DefaultTabWidth spaces)
//
// Text wraps at the right edge. When a line feed moves the cursor past the
// last row of the text area, the text area scrolls up by one line, the freed
// row is cleared with the current color and the cursor stays on the last
// row. Rows reserved via ReserveRows are never
// scrolled and can only be written with WriteAt.
type Console struct {
	lock *sync.IRQLock
	cons console.Device

	width  uint32
	height uint32

	// textRows is the number of rows, starting from the top, that take
	// part in wrapping and scrolling.
	textRows uint32

	cursorX uint32
	cursorY uint32
	color   uint8
}

// NewConsole creates a console that draws on cons using color as the
// initial attribute. All operations are serialized through lock.
func NewConsole(cons console.Device, lock *sync.IRQLock, color uint8) *Console {
	width, height := cons.Dimensions()
	return &Console{
		lock:     lock,
		cons:     cons,
		width:    width,
		height:   height,
		textRows: height,
		color:    color,
	}
}

// Lock returns the lock that guards this console.
func (c *Console) Lock() *sync.IRQLock {
	return c.lock
}

// Dimensions returns the console width and height in characters.
func (c *Console) Dimensions() (uint32, uint32) {
	return c.width, c.height
}

// ReserveRows excludes the bottom n rows from wrapping and scrolling. At
// least one row always remains available for text.
func (c *Console) ReserveRows(n uint32) {
	state := c.lock.Acquire()
	defer c.lock.Release(state)

	if n >= c.height {
		n = c.height - 1
	}
	c.textRows = c.height - n

	if c.cursorY >= c.textRows {
		c.cursorX, c.cursorY = 0, c.textRows-1
	}
}

// TextRows returns the number of rows used for regular output.
func (c *Console) TextRows() uint32 {
	state := c.lock.Acquire()
	defer c.lock.Release(state)
	return c.textRows
}

// Write implements io.Writer.
func (c *Console) Write(p []byte) (int, error) {
	state := c.lock.Acquire()
	defer c.lock.Release(state)

	c.WriteLocked(p)
	return len(p), nil
}

// WriteByte implements io.ByteWriter.
func (c *Console) WriteByte(b byte) error {
	state := c.lock.Acquire()
	defer c.lock.Release(state)

	c.writeByte(b)
	c.syncCursor()
	return nil
}

// Print writes s at the cursor position.
func (c *Console) Print(s string) {
	io.WriteString(c, s)
}

// WriteString implements io.StringWriter.
func (c *Console) WriteString(s string) (int, error) {
	state := c.lock.Acquire()
	defer c.lock.Release(state)

	for i := 0; i < len(s); i++ {
		c.writeByte(s[i])
	}
	c.syncCursor()
	return len(s), nil
}

// WriteLocked behaves like Write but requires the caller to already hold
// the console lock.
func (c *Console) WriteLocked(p []byte) {
	for _, b := range p {
		c.writeByte(b)
	}
	c.syncCursor()
}

// WriteAt writes s starting at (x, y) with the current color. The cursor
// position is saved before and restored after the write. Characters that
// fall outside the screen are dropped and the screen never scrolls.
func (c *Console) WriteAt(s string, x, y uint32) {
	state := c.lock.Acquire()
	defer c.lock.Release(state)

	c.WriteAtAttrLocked(s, x, y, c.color)
}

// WriteAtAttr behaves like WriteAt but draws s with attr. The current color
// is not modified.
func (c *Console) WriteAtAttr(s string, x, y uint32, attr uint8) {
	state := c.lock.Acquire()
	defer c.lock.Release(state)

	c.WriteAtAttrLocked(s, x, y, attr)
}

// WriteAtAttrLocked behaves like WriteAtAttr but requires the caller to
// already hold the console lock.
func (c *Console) WriteAtAttrLocked(s string, x, y uint32, attr uint8) {
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; ch {
		case '\n':
			x, y = 0, y+1
		default:
			if x >= c.width {
				x, y = 0, y+1
			}
			c.cons.Write(ch, attr, x, y)
			x++
		}
	}
}

// Clear blanks the whole screen with the current color and moves the cursor
// to the top-left corner.
func (c *Console) Clear() {
	state := c.lock.Acquire()
	defer c.lock.Release(state)

	c.cons.Fill(0, 0, c.width, c.height, c.color)
	c.cursorX, c.cursorY = 0, 0
	c.syncCursor()
}

// SetColor sets the attribute used by subsequent writes. Text already on
// the screen keeps its attribute.
func (c *Console) SetColor(attr uint8) {
	c.lock.Do(func() { c.color = attr })
}

// Color returns the attribute used for writes.
func (c *Console) Color() uint8 {
	state := c.lock.Acquire()
	defer c.lock.Release(state)
	return c.color
}

// CursorPosition returns the current cursor coordinates. The x coordinate
// equals the console width after a write fills the last column of a row;
// the wrap is applied by the next write.
func (c *Console) CursorPosition() (uint32, uint32) {
	state := c.lock.Acquire()
	defer c.lock.Release(state)
	return c.cursorX, c.cursorY
}

// writeByte interprets b and advances the cursor. The caller must hold the
// lock.
func (c *Console) writeByte(b byte) {
	switch b {
	case '\r':
		c.cursorX = 0
	case '\n':
		c.lineFeed()
	case '\b':
		if c.cursorX > 0 {
			c.cursorX--
			c.cons.Write(' ', c.color, c.cursorX, c.cursorY)
		}
	case '\t':
		for i := 0; i < DefaultTabWidth; i++ {
			c.putChar(' ')
		}
	default:
		c.putChar(b)
	}
}

// putChar draws b at the cursor with the current color. A cursor that sits
// past the right edge wraps to the next line first.
func (c *Console) putChar(b byte) {
	if c.cursorX >= c.width {
		c.lineFeed()
	}

	c.cons.Write(b, c.color, c.cursorX, c.cursorY)
	c.cursorX++
}

// lineFeed moves the cursor to the start of the next line, scrolling the
// text area up by one line if the cursor is on its last row.
func (c *Console) lineFeed() {
	c.cursorX = 0
	if c.cursorY+1 < c.textRows {
		c.cursorY++
		return
	}

	c.cons.Scroll(console.ScrollDirUp, 1, c.textRows)
	c.cons.Fill(0, c.textRows-1, c.width, 1, c.color)
	c.cursorY = c.textRows - 1
}

// syncCursor moves the hardware cursor to the position of the next write.
func (c *Console) syncCursor() {
	x, y := c.cursorX, c.cursorY
	if x >= c.width {
		x = c.width - 1
	}
	c.cons.SetCursor(x, y)
}
