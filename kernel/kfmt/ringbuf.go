package kfmt

import "io"

// ringBufferSize defines the capacity of the buffer that holds Printf output
// produced before a console is attached. It can hold the contents of a full
// 80x25 text screen and must be a power of 2.
const ringBufferSize = 2048

// ringBuffer is a fixed-size FIFO of bytes. When full, new writes overwrite
// the oldest unread data.
type ringBuffer struct {
	buffer [ringBufferSize]byte

	// head is the index of the oldest unread byte and count the number of
	// unread bytes.
	head, count int
}

// Write appends p to the buffer, discarding the oldest bytes if there is not
// enough room. It never fails.
func (rb *ringBuffer) Write(p []byte) (int, error) {
	for _, b := range p {
		tail := (rb.head + rb.count) & (ringBufferSize - 1)
		rb.buffer[tail] = b

		if rb.count == ringBufferSize {
			rb.head = (rb.head + 1) & (ringBufferSize - 1)
			continue
		}
		rb.count++
	}

	return len(p), nil
}

// Read copies up to len(p) unread bytes into p. It returns io.EOF once the
// buffer is drained.
func (rb *ringBuffer) Read(p []byte) (int, error) {
	if rb.count == 0 {
		return 0, io.EOF
	}

	n := 0
	for n < len(p) && rb.count > 0 {
		// copy the contiguous run that starts at head
		run := ringBufferSize - rb.head
		if run > rb.count {
			run = rb.count
		}
		copied := copy(p[n:], rb.buffer[rb.head:rb.head+run])

		n += copied
		rb.count -= copied
		rb.head = (rb.head + copied) & (ringBufferSize - 1)
	}

	return n, nil
}

// Len returns the number of unread bytes.
func (rb *ringBuffer) Len() int {
	return rb.count
}

// Reset discards all unread data.
func (rb *ringBuffer) Reset() {
	rb.head, rb.count = 0, 0
}
