package keyboard

// Scancode is a byte produced by the keyboard controller using scancode set
// 1. Bit 7 distinguishes a key release (break code) from a key press (make
// code).
type Scancode uint8

// Scancodes with a special meaning for the line reader.
const (
	LeftShiftMake   Scancode = 0x2a
	LeftShiftBreak  Scancode = 0xaa
	RightShiftMake  Scancode = 0x36
	RightShiftBreak Scancode = 0xb6
	EnterMake       Scancode = 0x1c
	EnterBreak      Scancode = 0x9c
	SpaceMake       Scancode = 0x39

	breakBit Scancode = 0x80
)

// IsBreak returns true if code reports a key release.
func (code Scancode) IsBreak() bool {
	return code&breakBit != 0
}

// Make returns the make code for the key that code refers to.
func (code Scancode) Make() Scancode {
	return code &^ breakBit
}

// Break returns the break code for the key that code refers to.
func (code Scancode) Break() Scancode {
	return code | breakBit
}

// decodeTable maps make codes to lower-case ASCII characters. Codes without
// an entry decode to 0.
var decodeTable = [0x80]byte{
	0x02: '1', 0x03: '2', 0x04: '3', 0x05: '4', 0x06: '5',
	0x07: '6', 0x08: '7', 0x09: '8', 0x0a: '9', 0x0b: '0',

	0x10: 'q', 0x11: 'w', 0x12: 'e', 0x13: 'r', 0x14: 't',
	0x15: 'y', 0x16: 'u', 0x17: 'i', 0x18: 'o', 0x19: 'p',

	0x1c: '\n',

	0x1e: 'a', 0x1f: 's', 0x20: 'd', 0x21: 'f', 0x22: 'g',
	0x23: 'h', 0x24: 'j', 0x25: 'k', 0x26: 'l',

	0x2c: 'z', 0x2d: 'x', 0x2e: 'c', 0x2f: 'v', 0x30: 'b',
	0x31: 'n', 0x32: 'm',

	0x39: ' ',
}

// Decode returns the lower-case character produced by code or 0 if code
// does not produce a character. Break codes never produce a character.
func Decode(code Scancode) byte {
	if code.IsBreak() {
		return 0
	}
	return decodeTable[code]
}

// Encode returns the make code that produces ch when decoded. Upper-case
// letters map to the code of their lower-case counterpart and need to be
// wrapped in a shift press/release by the caller.
func Encode(ch byte) (code Scancode, shifted bool, ok bool) {
	if ch >= 'A' && ch <= 'Z' {
		ch, shifted = ch+('a'-'A'), true
	}

	for i, c := range decodeTable {
		if c != 0 && c == ch {
			return Scancode(i), shifted, true
		}
	}

	return 0, false, false
}

// toUpper maps lower-case ASCII letters to upper-case; other characters are
// returned unchanged.
func toUpper(ch byte) byte {
	if ch >= 'a' && ch <= 'z' {
		return ch - ('a' - 'A')
	}
	return ch
}
