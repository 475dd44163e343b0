package serial

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Link reads and writes fixed-size items of type T over a serial transport.
//
// A background goroutine keeps pulling bytes off the transport into a bounded
// buffer. Read hands out whole items from that buffer without blocking; Write
// sends items straight to the transport and blocks until they are accepted.
// Read, Write, LastError and the other accessors may be called concurrently.
type Link[T any] struct {
	transport Transport
	codec     itemCodec[T]
	state     *linkState
	chunkSize int
	port      string
	log       *zap.Logger

	closing   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Open opens cfg.Device at cfg.BaudRate (8N1) and starts receiving in the
// background. Failures are returned as *Error with Op OpOpen, and no
// goroutine is left running.
func Open[T any](cfg Config) (*Link[T], error) {
	cfg = cfg.withDefaults()
	if err := cfg.validatePort(); err != nil {
		return nil, &Error{Op: OpOpen, Port: cfg.Device, Err: err}
	}
	if err := cfg.validateBuffering(); err != nil {
		return nil, &Error{Op: OpOpen, Port: cfg.Device, Err: err}
	}
	codec, err := newItemCodec[T](cfg.ByteOrder)
	if err != nil {
		return nil, &Error{Op: OpOpen, Port: cfg.Device, Err: err}
	}

	t, err := openTransport(cfg)
	if err != nil {
		cfg.Logger.Warn("serial port open failed",
			zap.String("port", cfg.Device),
			zap.String("driver", string(cfg.Driver)),
			zap.Error(err))
		return nil, &Error{Op: OpOpen, Port: cfg.Device, Err: err}
	}
	return start(t, cfg, codec), nil
}

// New starts a link on an already open transport. cfg.Device and
// cfg.BaudRate are informational only. On error the caller still owns t.
func New[T any](t Transport, cfg Config) (*Link[T], error) {
	cfg = cfg.withDefaults()
	if err := cfg.validateBuffering(); err != nil {
		return nil, err
	}
	codec, err := newItemCodec[T](cfg.ByteOrder)
	if err != nil {
		return nil, err
	}
	return start(t, cfg, codec), nil
}

func start[T any](t Transport, cfg Config, codec itemCodec[T]) *Link[T] {
	l := &Link[T]{
		transport: t,
		codec:     codec,
		state:     newLinkState(cfg.BufferSize),
		chunkSize: cfg.ChunkSize,
		port:      cfg.Device,
		log:       cfg.Logger.Named("serial").With(zap.String("port", cfg.Device)),
		done:      make(chan struct{}),
	}
	l.log.Info("serial link opened",
		zap.Int("baud_rate", cfg.BaudRate),
		zap.Int("item_size", codec.size),
		zap.Int("buffer_size", cfg.BufferSize))
	go l.readLoop()
	return l
}

// readLoop is the receive side. Each pass issues one read of up to
// chunkSize bytes; the loop ends at the first transport error or on Close.
func (l *Link[T]) readLoop() {
	defer close(l.done)
	scratch := make([]byte, l.chunkSize)
	for {
		n, err := l.transport.Read(scratch)
		if l.closing.Load() {
			return
		}

		var readErr error
		if err != nil {
			readErr = &Error{Op: OpRead, Port: l.port, Err: err}
		}
		kept := l.state.deliver(scratch[:n], readErr)
		if kept < n {
			l.log.Debug("receive buffer full, dropping bytes",
				zap.Int("dropped", n-kept))
		}

		if readErr != nil {
			l.log.Warn("serial reader stopped", zap.Error(err))
			return
		}
	}
}

// Read moves up to len(dst) whole items out of the receive buffer into dst
// and returns how many it moved. It never blocks: with fewer than one whole
// item buffered it returns 0. Bytes of an incomplete trailing item stay
// buffered for a later call.
func (l *Link[T]) Read(dst []T) int {
	raw := l.state.take(len(dst), l.codec.size)
	if raw == nil {
		return 0
	}
	n, err := l.codec.decode(dst, raw)
	if err != nil {
		// raw always holds whole items of a type checked by newItemCodec
		panic(fmt.Sprintf("serial: decode %d bytes: %v", len(raw), err))
	}
	return n
}

// Write sends items to the transport and blocks until all their bytes have
// been accepted. A failure is returned as *Error with Op OpWrite; it does not
// affect the receive side.
func (l *Link[T]) Write(items []T) error {
	if l.closing.Load() {
		return &Error{Op: OpWrite, Port: l.port, Err: ErrClosed}
	}
	if len(items) == 0 {
		return nil
	}
	raw, err := l.codec.encode(items)
	if err != nil {
		return &Error{Op: OpWrite, Port: l.port, Err: err}
	}
	n, err := l.transport.Write(raw)
	if err == nil && n < len(raw) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return &Error{Op: OpWrite, Port: l.port, Err: err}
	}
	return nil
}

// LastError reports the error of the most recent transport read, or nil if
// it succeeded. A non-nil value means the link will receive nothing more;
// whatever is still buffered can be drained with Read.
func (l *Link[T]) LastError() error {
	return l.state.lastErr()
}

// Buffered returns the number of received bytes waiting to be read.
func (l *Link[T]) Buffered() int { return l.state.buffered() }

// Available returns the number of whole items Read could return right now.
func (l *Link[T]) Available() int { return l.state.buffered() / l.codec.size }

// ItemSize returns the encoded width of one item in bytes.
func (l *Link[T]) ItemSize() int { return l.codec.size }

// Dropped returns how many received bytes were discarded because the
// receive buffer was full.
func (l *Link[T]) Dropped() uint64 { return l.state.droppedBytes() }

// Done is closed once the background reader has exited, after a read error
// or Close.
func (l *Link[T]) Done() <-chan struct{} { return l.done }

// Close stops the background reader, closes the transport and waits for the
// reader to exit. Calls after the first return the first result. Read and
// Write must not be in progress when Close is called.
func (l *Link[T]) Close() error {
	l.closeOnce.Do(func() {
		l.closing.Store(true)
		l.closeErr = l.transport.Close()
		<-l.done
		l.log.Info("serial link closed", zap.Uint64("dropped_bytes", l.state.droppedBytes()))
	})
	return l.closeErr
}
