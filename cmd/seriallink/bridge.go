package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	serial "github.com/luhtfiimanal/go-serial-link"
)

type item interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// bridge copies stdin to a link and the link's received items to stdout.
type bridge[T item] struct {
	link  *serial.Link[T]
	order binary.ByteOrder
	hex   bool
	out   io.Writer
	log   *zap.Logger
}

func newBridge[T item](link *serial.Link[T], order binary.ByteOrder, hexMode bool, out io.Writer, log *zap.Logger) *bridge[T] {
	return &bridge[T]{link: link, order: order, hex: hexMode, out: out, log: log}
}

// run pumps data both ways until ctx is cancelled or the link has stopped
// receiving and everything it received has been written out.
func (b *bridge[T]) run(ctx context.Context, in io.Reader, poll time.Duration) error {
	inputDone := make(chan error, 1)
	go func() { inputDone <- b.pump(in) }()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	buf := make([]T, serial.DefaultBufferSize)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-inputDone:
			if err != nil {
				return err
			}
			b.log.Debug("input closed, receiving only")
			inputDone = nil
		case <-ticker.C:
			if err := b.drain(buf); err != nil {
				return err
			}
			if err := b.link.LastError(); err != nil && b.link.Available() == 0 {
				return err
			}
		}
	}
}

// pump sends everything read from in until EOF.
func (b *bridge[T]) pump(in io.Reader) error {
	if b.hex {
		var pending []byte
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			raw, err := hex.DecodeString(strings.Join(strings.Fields(sc.Text()), ""))
			if err != nil {
				b.log.Warn("skipping malformed hex line", zap.Error(err))
				continue
			}
			if pending, err = b.send(append(pending, raw...)); err != nil {
				return err
			}
		}
		return sc.Err()
	}

	var pending []byte
	chunk := make([]byte, 4096)
	for {
		n, err := in.Read(chunk)
		if n > 0 {
			var serr error
			if pending, serr = b.send(append(pending, chunk[:n]...)); serr != nil {
				return serr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
	}
}

// send writes the whole items in p and returns the bytes of a trailing
// partial item.
func (b *bridge[T]) send(p []byte) ([]byte, error) {
	size := b.link.ItemSize()
	n := len(p) / size
	if n == 0 {
		return p, nil
	}
	items := make([]T, n)
	if _, err := binary.Decode(p[:n*size], b.order, items); err != nil {
		return nil, err
	}
	if err := b.link.Write(items); err != nil {
		return nil, err
	}
	return append([]byte(nil), p[n*size:]...), nil
}

// drain writes whatever whole items are buffered to the output.
func (b *bridge[T]) drain(buf []T) error {
	n := b.link.Read(buf)
	if n == 0 {
		return nil
	}
	if b.hex {
		width := b.link.ItemSize() * 2
		var sb strings.Builder
		for i, v := range buf[:n] {
			if i > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%0*x", width, uint64(v))
		}
		sb.WriteByte('\n')
		_, err := io.WriteString(b.out, sb.String())
		return err
	}
	raw, err := binary.Append(nil, b.order, buf[:n])
	if err != nil {
		return err
	}
	_, err = b.out.Write(raw)
	return err
}
