package serial

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	tarm "github.com/tarm/serial"
	bugst "go.bug.st/serial"
)

// portableTransport runs on go.bug.st/serial. Closing the port unblocks a
// pending Read on every platform that library supports.
type portableTransport struct {
	port   bugst.Port
	closed atomic.Bool
}

func openPortable(device string, baudRate int) (Transport, error) {
	mode := &bugst.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	}
	port, err := bugst.Open(device, mode)
	if err != nil {
		var perr *bugst.PortError
		if errors.As(err, &perr) && perr.Code() == bugst.InvalidSpeed {
			return nil, fmt.Errorf("%w: %d: %v", ErrUnsupportedBaudRate, baudRate, err)
		}
		return nil, fmt.Errorf("open failed: %w", err)
	}
	return &portableTransport{port: port}, nil
}

func (t *portableTransport) Read(p []byte) (int, error) {
	for {
		n, err := t.port.Read(p)
		if t.closed.Load() {
			return n, ErrClosed
		}
		if n > 0 || err != nil {
			return n, err
		}
	}
}

func (t *portableTransport) Write(p []byte) (int, error) {
	return t.port.Write(p)
}

func (t *portableTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	return t.port.Close()
}

// tarmPollInterval bounds how long a tarm read waits before the driver checks
// whether it has been closed.
const tarmPollInterval = 100 * time.Millisecond

// tarmTransport runs on github.com/tarm/serial. That library cannot interrupt
// a blocked read, so reads use a short timeout and empty wake-ups are hidden
// from the caller.
type tarmTransport struct {
	port   io.ReadWriteCloser
	closed atomic.Bool
}

func openTarm(device string, baudRate int) (Transport, error) {
	port, err := tarm.OpenPort(&tarm.Config{
		Name:        device,
		Baud:        baudRate,
		Size:        8,
		Parity:      tarm.ParityNone,
		StopBits:    tarm.Stop1,
		ReadTimeout: tarmPollInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("open failed: %w", err)
	}
	return &tarmTransport{port: port}, nil
}

func (t *tarmTransport) Read(p []byte) (int, error) {
	for {
		if t.closed.Load() {
			return 0, ErrClosed
		}
		n, err := t.port.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			if t.closed.Load() {
				return 0, ErrClosed
			}
			return 0, err
		}
	}
}

func (t *tarmTransport) Write(p []byte) (int, error) {
	return t.port.Write(p)
}

func (t *tarmTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	return t.port.Close()
}
