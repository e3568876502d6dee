package machine

import "github.com/nickorlow/rosco/device/keyboard"

const (
	kbcStatusOutputFull uint8 = 0x01

	// kbcStatusSystem is set once the controller passed its self test.
	kbcStatusSystem uint8 = 0x04

	kbcQueueSize = 256
)

// kbc emulates the output side of an 8042 keyboard controller with a
// keyboard that emits scancode set 1. One byte is latched in the output
// buffer at a time; the next one is only loaded after the CPU reads the
// data port, and every load raises IRQ1.
type kbc struct {
	out     uint8
	outFull bool

	queue []uint8

	// dropped counts bytes discarded because the queue was full.
	dropped uint64

	// delivered counts bytes read by the CPU.
	delivered uint64
}

func (k *kbc) reset() {
	*k = kbc{}
}

// push queues codes behind any pending input. It returns true if the
// output buffer was loaded and an interrupt has to be raised.
func (k *kbc) push(codes ...uint8) bool {
	for _, code := range codes {
		if len(k.queue) >= kbcQueueSize {
			k.dropped++
			continue
		}
		k.queue = append(k.queue, code)
	}
	return k.load()
}

func (k *kbc) load() bool {
	if k.outFull || len(k.queue) == 0 {
		return false
	}

	k.out, k.queue = k.queue[0], k.queue[1:]
	k.outFull = true
	return true
}

// readData returns the output buffer and loads the next byte. The second
// return value reports whether an interrupt has to be raised.
func (k *kbc) readData() (uint8, bool) {
	val := k.out
	if k.outFull {
		k.outFull = false
		k.delivered++
	}
	return val, k.load()
}

func (k *kbc) readStatus() uint8 {
	status := kbcStatusSystem
	if k.outFull {
		status |= kbcStatusOutputFull
	}
	return status
}

func (k *kbc) idle() bool {
	return !k.outFull && len(k.queue) == 0
}

func (k *kbc) pending() int {
	n := len(k.queue)
	if k.outFull {
		n++
	}
	return n
}

// Scancodes returns the set 1 make/break sequence that types s on a US
// keyboard. Upper-case letters are wrapped in a left shift press. Characters
// without a key are skipped and reported through the second return value.
func Scancodes(s string) ([]uint8, []byte) {
	var (
		codes   []uint8
		skipped []byte
	)

	for i := 0; i < len(s); i++ {
		code, shifted, ok := keyboard.Encode(s[i])
		if !ok {
			skipped = append(skipped, s[i])
			continue
		}

		if shifted {
			codes = append(codes, uint8(keyboard.LeftShiftMake))
		}
		codes = append(codes, uint8(code), uint8(code.Break()))
		if shifted {
			codes = append(codes, uint8(keyboard.LeftShiftBreak))
		}
	}

	return codes, skipped
}
