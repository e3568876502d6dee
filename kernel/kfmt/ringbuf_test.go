package kfmt

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestRingBuffer(t *testing.T) {
	var (
		buf    bytes.Buffer
		expStr = "[hal] ps2_keyboard(0.1.0): initialized\n"
		rb     ringBuffer
	)

	t.Run("read/write", func(t *testing.T) {
		rb.Reset()
		n, err := rb.Write([]byte(expStr))
		if err != nil {
			t.Fatal(err)
		}

		if n != len(expStr) {
			t.Fatalf("expected to write %d bytes; wrote %d", len(expStr), n)
		}

		if rb.Len() != len(expStr) {
			t.Fatalf("expected Len() to return %d; got %d", len(expStr), rb.Len())
		}

		if got := readByteByByte(&buf, &rb); got != expStr {
			t.Fatalf("expected to read %q; got %q", expStr, got)
		}
	})

	t.Run("overflow discards oldest data", func(t *testing.T) {
		rb.Reset()
		rb.Write([]byte(strings.Repeat("x", ringBufferSize)))
		rb.Write([]byte(expStr))

		if rb.Len() != ringBufferSize {
			t.Fatalf("expected Len() to return %d; got %d", ringBufferSize, rb.Len())
		}

		got := readByteByByte(&buf, &rb)
		if exp := strings.Repeat("x", ringBufferSize-len(expStr)) + expStr; got != exp {
			t.Fatalf("expected to read the newest %d bytes; got %q", ringBufferSize, got)
		}
	})

	t.Run("wrapped contents", func(t *testing.T) {
		rb.Reset()
		rb.head = ringBufferSize - 2
		n, err := rb.Write([]byte(expStr))
		if err != nil {
			t.Fatal(err)
		}

		if n != len(expStr) {
			t.Fatalf("expected to write %d bytes; wrote %d", len(expStr), n)
		}

		if got := readByteByByte(&buf, &rb); got != expStr {
			t.Fatalf("expected to read %q; got %q", expStr, got)
		}
	})

	t.Run("with io.Copy", func(t *testing.T) {
		rb.Reset()
		rb.head = ringBufferSize - 2
		rb.Write([]byte(expStr))

		var buf bytes.Buffer
		io.Copy(&buf, &rb)

		if got := buf.String(); got != expStr {
			t.Fatalf("expected to read %q; got %q", expStr, got)
		}

		if rb.Len() != 0 {
			t.Fatalf("expected buffer to be drained; %d bytes left", rb.Len())
		}
	})
}

func readByteByByte(buf *bytes.Buffer, r io.Reader) string {
	buf.Reset()
	var b = make([]byte, 1)
	for {
		_, err := r.Read(b)
		if err == io.EOF {
			break
		}

		buf.Write(b)
	}
	return buf.String()
}
