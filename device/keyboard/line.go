package keyboard

// LineCapacity is the maximum number of characters a line can hold.
const LineCapacity = 100

// Line holds a line of input followed by a NUL terminator. The extra byte
// guarantees that a full line is still terminated.
type Line [LineCapacity + 1]byte

// Len returns the number of characters before the terminator.
func (l *Line) Len() int {
	for i, b := range l {
		if b == 0 {
			return i
		}
	}
	return LineCapacity
}

// Bytes returns the characters of the line without the terminator.
func (l *Line) Bytes() []byte {
	return l[:l.Len()]
}

// String returns the characters of the line as a string.
func (l *Line) String() string {
	return string(l.Bytes())
}

// lineBuffer accumulates the characters of a line. The line stays
// terminated after every append.
type lineBuffer struct {
	line Line
	n    int
}

// reset empties the buffer.
func (b *lineBuffer) reset() {
	b.line = Line{}
	b.n = 0
}

// full returns true if no more characters can be appended.
func (b *lineBuffer) full() bool {
	return b.n >= LineCapacity
}

// append adds ch to the buffer. It returns false and leaves the buffer
// untouched if the buffer is full.
func (b *lineBuffer) append(ch byte) bool {
	if b.full() {
		return false
	}

	b.line[b.n] = ch
	b.n++
	b.line[b.n] = 0
	return true
}

// terminate writes the terminator after the last character.
func (b *lineBuffer) terminate() {
	b.line[b.n] = 0
}
