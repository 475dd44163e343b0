package serial

import "sync"

// ringBuffer is a bounded FIFO of received bytes. It is not synchronized;
// linkState guards it.
type ringBuffer struct {
	data []byte
	head int
	size int
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{data: make([]byte, capacity)}
}

func (b *ringBuffer) Len() int { return b.size }
func (b *ringBuffer) Cap() int { return len(b.data) }

// push appends as much of p as fits and returns the number of bytes kept.
// The tail of p that does not fit is dropped.
func (b *ringBuffer) push(p []byte) int {
	free := len(b.data) - b.size
	if len(p) > free {
		p = p[:free]
	}
	tail := (b.head + b.size) % max(len(b.data), 1)
	n := copy(b.data[tail:], p)
	n += copy(b.data, p[n:])
	b.size += n
	return n
}

// pop moves up to len(dst) bytes from the front into dst.
func (b *ringBuffer) pop(dst []byte) int {
	if len(dst) > b.size {
		dst = dst[:b.size]
	}
	n := copy(dst, b.data[b.head:])
	if n < len(dst) {
		n += copy(dst[n:], b.data)
	}
	b.size -= n
	if b.size == 0 {
		b.head = 0
	} else {
		b.head = (b.head + n) % len(b.data)
	}
	return n
}

// linkState is everything the reader goroutine shares with callers. A single
// mutex covers the buffer and the last transport error.
type linkState struct {
	mu      sync.Mutex
	buf     *ringBuffer
	err     error
	dropped uint64
}

func newLinkState(capacity int) *linkState {
	return &linkState{buf: newRingBuffer(capacity)}
}

// deliver records one completed transport read: the bytes it produced and
// the error it reported (nil clears the previous one). It returns how many
// bytes were kept.
func (s *linkState) deliver(p []byte, err error) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.buf.push(p)
	s.dropped += uint64(len(p) - n)
	s.err = err
	return n
}

// take removes whole items from the front of the buffer. At most maxItems
// items of itemSize bytes are removed; a trailing partial item stays.
func (s *linkState) take(maxItems, itemSize int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := min(s.buf.Len()/itemSize, maxItems)
	if items <= 0 {
		return nil
	}
	raw := make([]byte, items*itemSize)
	s.buf.pop(raw)
	return raw
}

func (s *linkState) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *linkState) lastErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *linkState) buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len()
}

func (s *linkState) droppedBytes() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
