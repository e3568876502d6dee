package keyboard

// State is the keyboard decoder state. It is a value type that is only
// updated through step.
type State struct {
	// shift is true while either shift key is held down. It is tracked
	// only while a line is being read.
	shift bool

	// reading is true between the start of a line read and the release
	// of the enter key.
	reading bool

	buf lineBuffer
}

// Shift returns true if a shift key is held down.
func (s State) Shift() bool {
	return s.shift
}

// Reading returns true if a line read is in progress.
func (s State) Reading() bool {
	return s.reading
}

// Line returns a copy of the characters collected so far.
func (s State) Line() Line {
	return s.buf.line
}

// begin returns a state that collects a new line.
func (s State) begin() State {
	s.reading = true
	s.buf.reset()
	return s
}

// effects describes the side effects of a state transition.
type effects struct {
	// echo is the character to print or 0 if nothing should be printed.
	echo byte

	// complete is set when the line read finished.
	complete bool
}

// step applies code to s and returns the next state together with the side
// effects that the caller has to carry out. While no line is being read
// every code is ignored.
func step(s State, code Scancode) (State, effects) {
	var fx effects
	if !s.reading {
		return s, fx
	}

	switch code {
	case LeftShiftMake, RightShiftMake:
		s.shift = true
		return s, fx
	case LeftShiftBreak, RightShiftBreak:
		s.shift = false
		return s, fx
	case EnterBreak:
		s.buf.terminate()
		s.reading = false
		fx.complete = true
		return s, fx
	}

	ch := Decode(code)
	if ch == 0 || s.buf.full() {
		return s, fx
	}

	if s.shift {
		ch = toUpper(ch)
	}

	s.buf.append(ch)
	fx.echo = ch
	return s, fx
}
