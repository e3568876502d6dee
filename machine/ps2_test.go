package machine

import (
	"bytes"
	"testing"

	"github.com/nickorlow/rosco/device/keyboard"
)

func TestKBCOutputBuffer(t *testing.T) {
	var k kbc
	k.reset()

	if !k.idle() || k.readStatus()&kbcStatusOutputFull != 0 {
		t.Fatal("expected empty controller after reset")
	}

	if !k.push(0x1e, 0x9e) {
		t.Fatal("expected first push to load the output buffer")
	}
	if k.push(0x30) {
		t.Fatal("expected push behind a full output buffer to not raise an interrupt")
	}
	if exp, got := 3, k.pending(); got != exp {
		t.Fatalf("expected %d pending bytes; got %d", exp, got)
	}

	for specIndex, exp := range []struct {
		val   uint8
		raise bool
	}{
		{0x1e, true},
		{0x9e, true},
		{0x30, false},
	} {
		if k.readStatus()&kbcStatusOutputFull == 0 {
			t.Fatalf("[spec %d] expected output buffer full", specIndex)
		}
		val, raise := k.readData()
		if val != exp.val || raise != exp.raise {
			t.Errorf("[spec %d] expected (0x%x, %t); got (0x%x, %t)", specIndex, exp.val, exp.raise, val, raise)
		}
	}

	if !k.idle() {
		t.Fatal("expected controller to be idle")
	}
	if exp := uint64(3); k.delivered != exp {
		t.Fatalf("expected %d delivered bytes; got %d", exp, k.delivered)
	}

	// reading an empty buffer returns the last byte again
	if val, raise := k.readData(); val != 0x30 || raise {
		t.Fatalf("expected stale 0x30 without interrupt; got 0x%x, %t", val, raise)
	}
	if exp := uint64(3); k.delivered != exp {
		t.Fatalf("expected stale read to not count; got %d", k.delivered)
	}
}

func TestKBCQueueOverflow(t *testing.T) {
	var k kbc
	k.reset()

	codes := make([]uint8, kbcQueueSize+10)
	k.push(codes...)

	if exp := uint64(10); k.dropped != exp {
		t.Fatalf("expected %d dropped bytes; got %d", exp, k.dropped)
	}
	if exp, got := kbcQueueSize, k.pending(); got != exp {
		t.Fatalf("expected %d pending bytes; got %d", exp, got)
	}
}

func TestScancodes(t *testing.T) {
	specs := []struct {
		input      string
		expCodes   []uint8
		expSkipped []byte
	}{
		{"", nil, nil},
		{"a", []uint8{0x1e, 0x9e}, nil},
		{"A", []uint8{uint8(keyboard.LeftShiftMake), 0x1e, 0x9e, uint8(keyboard.LeftShiftBreak)}, nil},
		{"a b\n", []uint8{0x1e, 0x9e, 0x39, 0xb9, 0x30, 0xb0, 0x1c, 0x9c}, nil},
		{"a?1", []uint8{0x1e, 0x9e, 0x02, 0x82}, []byte("?")},
	}

	for specIndex, spec := range specs {
		codes, skipped := Scancodes(spec.input)
		if !bytes.Equal(codes, spec.expCodes) {
			t.Errorf("[spec %d] expected codes %x; got %x", specIndex, spec.expCodes, codes)
		}
		if !bytes.Equal(skipped, spec.expSkipped) {
			t.Errorf("[spec %d] expected skipped %q; got %q", specIndex, spec.expSkipped, skipped)
		}
	}
}
