package serial

import (
	"fmt"
	"io"

	bugst "go.bug.st/serial"
)

// Transport is the byte channel a Link runs on. Read blocks until at least
// one byte is available or the transport fails; Close must unblock a
// pending Read.
type Transport interface {
	io.ReadWriteCloser
}

// openTransport opens and configures cfg.Device for 8N1 at cfg.BaudRate.
func openTransport(cfg Config) (Transport, error) {
	switch cfg.Driver {
	case DriverTTY:
		return openTTY(cfg.Device, cfg.BaudRate)
	case DriverPortable:
		return openPortable(cfg.Device, cfg.BaudRate)
	case DriverTarm:
		return openTarm(cfg.Device, cfg.BaudRate)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// Ports lists the serial ports present on the system.
func Ports() ([]string, error) {
	ports, err := bugst.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list ports: %w", err)
	}
	return ports, nil
}
