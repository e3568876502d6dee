// Package kfmt implements allocation-free formatted output for the kernel.
// It is safe to call from interrupt handlers as long as the configured sink
// is.
package kfmt

import "io"

// maxBufSize defines the buffer size for formatting numbers.
const maxBufSize = 32

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	// earlyPrintBuffer is a ring buffer that stores Printf output before the
	// console is initialized.
	earlyPrintBuffer ringBuffer

	// outputSink is a io.Writer where Printf will send its output. If set
	// to nil, then the output will be redirected to the earlyPrintBuffer.
	outputSink io.Writer
)

// SetOutputSink sets the default target for calls to Printf to w and copies
// any data accumulated in the earlyPrintBuffer to it.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		io.Copy(w, &earlyPrintBuffer)
	}
}

// GetOutputSink returns the current target for calls to Printf.
func GetOutputSink() io.Writer {
	return outputSink
}

// Output is an io.Writer that forwards its data to the sink that is active
// at the time of the write. While no sink is set, data is buffered like the
// output of Printf.
var Output io.Writer = outputWriter{}

type outputWriter struct{}

func (outputWriter) Write(p []byte) (int, error) {
	doWrite(outputSink, p)
	return len(p), nil
}

// Printf provides a minimal Printf implementation that does not allocate and
// keeps all of its scratch state on the stack so that it can be used
// concurrently from the foreground flow and from interrupt handlers.
//
// The following subset of formatting verbs is supported:
//
// Strings:
//
//	%s the uninterpreted bytes of the string or byte slice
//	%c the character represented by a byte or rune value
//
// Integers:
//
//	%o base 8
//	%d base 10
//	%x base 16, with lower-case letters for a-f
//
// Booleans:
//
//	%t "true" or "false"
//
// Width is specified by an optional decimal number immediately preceding the
// verb. String values shorter than the width are left-padded with spaces.
// Base-10 integers are left-padded with spaces unless the width starts with a
// 0 (e.g. %02d) in which case they are padded with zeroes. Base-8 and base-16
// integers are always padded with zeroes.
//
// The output of Printf is written to the sink configured via SetOutputSink.
// If no sink is available, the output is buffered into a ring-buffer and
// replayed once a sink is attached.
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// Fprintf behaves exactly like Printf but it writes the formatted output to
// the specified io.Writer.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		nextCh               byte
		nextArgIndex         int
		blockStart, blockEnd int
		padLen               int
		zeroPad              bool
		fmtLen               = len(format)
	)

	for blockEnd < fmtLen {
		nextCh = format[blockEnd]
		if nextCh != '%' {
			blockEnd++
			continue
		}

		writeString(w, format[blockStart:blockEnd])

		// Scan til we hit the format character
		padLen, zeroPad = 0, false
		blockEnd++
	parseFmt:
		for ; blockEnd < fmtLen; blockEnd++ {
			nextCh = format[blockEnd]
			switch {
			case nextCh == '%':
				writeString(w, "%")
				break parseFmt
			case nextCh == '0' && padLen == 0:
				zeroPad = true
				continue
			case nextCh >= '0' && nextCh <= '9':
				padLen = (padLen * 10) + int(nextCh-'0')
				continue
			case nextCh == 'd' || nextCh == 'x' || nextCh == 'o' || nextCh == 's' || nextCh == 't' || nextCh == 'c':
				// Run out of args to print
				if nextArgIndex >= len(args) {
					doWrite(w, errMissingArg)
					break parseFmt
				}

				switch nextCh {
				case 'o':
					fmtInt(w, args[nextArgIndex], 8, padLen, '0')
				case 'd':
					padCh := byte(' ')
					if zeroPad {
						padCh = '0'
					}
					fmtInt(w, args[nextArgIndex], 10, padLen, padCh)
				case 'x':
					fmtInt(w, args[nextArgIndex], 16, padLen, '0')
				case 's':
					fmtString(w, args[nextArgIndex], padLen)
				case 't':
					fmtBool(w, args[nextArgIndex])
				case 'c':
					fmtChar(w, args[nextArgIndex])
				}

				nextArgIndex++
				break parseFmt
			}

			// reached an unsupported verb
			doWrite(w, errNoVerb)
			break parseFmt
		}

		if blockEnd == fmtLen {
			// reached end of formatting string without finding a verb
			doWrite(w, errNoVerb)
		}
		blockStart, blockEnd = blockEnd+1, blockEnd+1
	}

	if blockStart < fmtLen {
		writeString(w, format[blockStart:])
	}

	// Check for unused args
	for ; nextArgIndex < len(args); nextArgIndex++ {
		doWrite(w, errExtraArg)
	}
}

// fmtBool prints a formatted version of boolean value v.
func fmtBool(w io.Writer, v interface{}) {
	bVal, ok := v.(bool)
	switch {
	case !ok:
		doWrite(w, errWrongArgType)
	case bVal:
		doWrite(w, trueValue)
	default:
		doWrite(w, falseValue)
	}
}

// fmtChar prints the character represented by a byte or an ASCII rune.
func fmtChar(w io.Writer, v interface{}) {
	var buf [1]byte

	switch ch := v.(type) {
	case byte:
		buf[0] = ch
	case rune:
		if ch < 0 || ch > 0x7f {
			buf[0] = '?'
		} else {
			buf[0] = byte(ch)
		}
	default:
		doWrite(w, errWrongArgType)
		return
	}

	doWrite(w, buf[:])
}

// fmtString prints a formatted version of string or []byte value v, applying
// the padding specified by padLen.
func fmtString(w io.Writer, v interface{}, padLen int) {
	switch castedVal := v.(type) {
	case string:
		fmtRepeat(w, ' ', padLen-len(castedVal))
		writeString(w, castedVal)
	case []byte:
		fmtRepeat(w, ' ', padLen-len(castedVal))
		doWrite(w, castedVal)
	default:
		doWrite(w, errWrongArgType)
	}
}

// fmtRepeat writes count bytes with value ch.
func fmtRepeat(w io.Writer, ch byte, count int) {
	var buf [maxBufSize]byte
	for count > 0 {
		n := count
		if n > len(buf) {
			n = len(buf)
		}
		for i := 0; i < n; i++ {
			buf[i] = ch
		}
		doWrite(w, buf[:n])
		count -= n
	}
}

// fmtInt prints out a formatted version of v in the requested base, applying
// the padding specified by padLen using padCh. This function supports all
// built-in signed and unsigned integer types.
func fmtInt(w io.Writer, v interface{}, base, padLen int, padCh byte) {
	var (
		buf              [maxBufSize]byte
		sval             int64
		uval             uint64
		divider          = uint64(base)
		remainder        uint64
		left, right, end int
	)

	if padLen >= maxBufSize {
		padLen = maxBufSize - 1
	}

	switch t := v.(type) {
	case uint8:
		uval = uint64(t)
	case uint16:
		uval = uint64(t)
	case uint32:
		uval = uint64(t)
	case uint64:
		uval = t
	case uint:
		uval = uint64(t)
	case uintptr:
		uval = uint64(t)
	case int8:
		sval = int64(t)
	case int16:
		sval = int64(t)
	case int32:
		sval = int64(t)
	case int64:
		sval = t
	case int:
		sval = int64(t)
	default:
		doWrite(w, errWrongArgType)
		return
	}

	// Handle signs
	if sval < 0 {
		uval = uint64(-sval)
	} else if sval > 0 {
		uval = uint64(sval)
	}

	for right < maxBufSize {
		remainder = uval % divider
		if remainder < 10 {
			buf[right] = byte(remainder) + '0'
		} else {
			// map values from 10 to 15 -> a-f
			buf[right] = byte(remainder-10) + 'a'
		}

		right++

		uval /= divider
		if uval == 0 {
			break
		}
	}

	// Zero padding goes between the sign and the digits so reserve a
	// slot for the sign before padding.
	if sval < 0 && padCh == '0' {
		padLen--
	}

	// Apply padding if required
	for ; right-left < padLen && right < maxBufSize-1; right++ {
		buf[right] = padCh
	}

	// Apply negative sign to the rightmost blank character (if using enough padding);
	// otherwise append the sign as a new char
	if sval < 0 {
		for end = right - 1; end >= 0 && buf[end] == ' '; end-- {
		}

		if end == right-1 {
			right++
		}

		buf[end+1] = '-'
	}

	// Reverse in place
	end = right
	for right = right - 1; left < right; left, right = left+1, right-1 {
		buf[left], buf[right] = buf[right], buf[left]
	}

	doWrite(w, buf[0:end])
}

// writeString emits s in fixed-size chunks so that the conversion to a byte
// slice does not escape to the heap.
func writeString(w io.Writer, s string) {
	var buf [maxBufSize]byte
	for len(s) != 0 {
		n := copy(buf[:], s)
		doWrite(w, buf[:n])
		s = s[n:]
	}
}

// doWrite sends p to w or to the early print buffer if w is nil.
func doWrite(w io.Writer, p []byte) {
	if w != nil {
		w.Write(p)
		return
	}

	earlyPrintBuffer.Write(p)
}
