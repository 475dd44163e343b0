package serial

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	bugst "go.bug.st/serial"
)

type readResult struct {
	data []byte
	err  error
}

// scriptedPort returns scripted read results in order, then blocks until
// closed. It satisfies bugst.Port through the embedded interface; only Read,
// Write and Close are ever called.
type scriptedPort struct {
	bugst.Port

	mu      sync.Mutex
	script  []readResult
	reads   int
	written []byte

	closes    atomic.Int32
	closed    chan struct{}
	closeOnce sync.Once
	closedErr error
}

func newScriptedPort(closedErr error, script ...readResult) *scriptedPort {
	return &scriptedPort{script: script, closed: make(chan struct{}), closedErr: closedErr}
}

func (s *scriptedPort) Read(p []byte) (int, error) {
	s.mu.Lock()
	s.reads++
	if len(s.script) > 0 {
		r := s.script[0]
		s.script = s.script[1:]
		s.mu.Unlock()
		return copy(p, r.data), r.err
	}
	s.mu.Unlock()

	<-s.closed
	return 0, s.closedErr
}

func (s *scriptedPort) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = append(s.written, p...)
	return len(p), nil
}

func (s *scriptedPort) Close() error {
	s.closes.Add(1)
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *scriptedPort) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// readAsync runs tr.Read in a goroutine and returns its result channel.
func readAsync(tr Transport, p []byte) <-chan readResult {
	ch := make(chan readResult, 1)
	go func() {
		n, err := tr.Read(p)
		ch <- readResult{data: p[:n], err: err}
	}()
	return ch
}

func TestPortable_RetriesEmptyReads(t *testing.T) {
	port := newScriptedPort(errors.New("port closed"),
		readResult{},
		readResult{},
		readResult{},
		readResult{data: []byte{0xaa, 0xbb}},
	)
	tr := &portableTransport{port: port}

	buf := make([]byte, 8)
	n, err := tr.Read(buf)
	require.NoError(t, err)
	require.Equal(t, []byte{0xaa, 0xbb}, buf[:n])
	require.Equal(t, 4, port.readCount())
}

func TestPortable_PassesThroughReadErrors(t *testing.T) {
	boom := errors.New("device unplugged")
	tr := &portableTransport{port: newScriptedPort(nil, readResult{}, readResult{err: boom})}

	_, err := tr.Read(make([]byte, 8))
	require.ErrorIs(t, err, boom)
}

func TestPortable_CloseUnblocksRead(t *testing.T) {
	port := newScriptedPort(errors.New("port closed"))
	tr := &portableTransport{port: port}

	res := readAsync(tr, make([]byte, 8))
	require.Eventually(t, func() bool { return port.readCount() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, tr.Close())
	select {
	case r := <-res:
		require.ErrorIs(t, r.err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Read still blocked after Close")
	}

	// reads after close keep reporting the same error
	_, err := tr.Read(make([]byte, 8))
	require.ErrorIs(t, err, ErrClosed)
}

func TestPortable_CloseIsIdempotent(t *testing.T) {
	port := newScriptedPort(nil)
	tr := &portableTransport{port: port}

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	require.EqualValues(t, 1, port.closes.Load())
}

func TestPortable_Write(t *testing.T) {
	port := newScriptedPort(nil)
	tr := &portableTransport{port: port}

	n, err := tr.Write([]byte("ping"))
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, []byte("ping"), port.written)
}

func TestTarm_HidesTimeoutWakeups(t *testing.T) {
	// tarm reports an expired read timeout as (0, nil) or (0, io.EOF)
	port := newScriptedPort(io.EOF,
		readResult{},
		readResult{err: io.EOF},
		readResult{err: io.EOF},
		readResult{data: []byte{0x01, 0x02, 0x03}, err: nil},
	)
	tr := &tarmTransport{port: port}

	buf := make([]byte, 8)
	n, err := tr.Read(buf)
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02, 0x03}, buf[:n])
	require.Equal(t, 4, port.readCount())
}

func TestTarm_PassesThroughReadErrors(t *testing.T) {
	boom := errors.New("device unplugged")
	tr := &tarmTransport{port: newScriptedPort(nil, readResult{err: io.EOF}, readResult{err: boom})}

	_, err := tr.Read(make([]byte, 8))
	require.ErrorIs(t, err, boom)
}

func TestTarm_CloseEndsRead(t *testing.T) {
	// after close the file handle fails with a non-EOF error
	port := newScriptedPort(errors.New("file already closed"), readResult{err: io.EOF})
	tr := &tarmTransport{port: port}

	res := readAsync(tr, make([]byte, 8))
	require.Eventually(t, func() bool { return port.readCount() == 2 }, time.Second, time.Millisecond)

	require.NoError(t, tr.Close())
	select {
	case r := <-res:
		require.ErrorIs(t, r.err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Read still blocked after Close")
	}

	_, err := tr.Read(make([]byte, 8))
	require.ErrorIs(t, err, ErrClosed)
}

func TestTarm_CloseIsIdempotent(t *testing.T) {
	port := newScriptedPort(nil)
	tr := &tarmTransport{port: port}

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	require.EqualValues(t, 1, port.closes.Load())
}

func TestLink_OverPortableDriver(t *testing.T) {
	port := newScriptedPort(errors.New("port closed"),
		readResult{},
		readResult{data: []byte{0x01, 0x00, 0x02, 0x00}},
	)
	link, err := New[uint16](&portableTransport{port: port}, Config{Device: "fake"})
	require.NoError(t, err)

	got := make([]uint16, 4)
	require.Eventually(t, func() bool { return link.Buffered() == 4 }, time.Second, time.Millisecond)
	require.Equal(t, 2, link.Read(got))
	require.Equal(t, []uint16{1, 2}, got[:2])

	require.NoError(t, link.Close())
	<-link.Done()
	require.NoError(t, link.LastError())
	require.EqualValues(t, 1, port.closes.Load())
}
