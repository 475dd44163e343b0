package serial

import (
	"errors"
	"fmt"
)

// Op identifies the link operation that produced an *Error.
type Op string

const (
	OpOpen  Op = "open"
	OpRead  Op = "read"
	OpWrite Op = "write"
)

var (
	// ErrClosed is returned by transports and links that have been closed.
	ErrClosed = errors.New("serial: link closed")

	ErrInvalidPort         = errors.New("serial: invalid port identifier")
	ErrUnsupportedBaudRate = errors.New("serial: unsupported baud rate")
	ErrUnknownDriver       = errors.New("serial: unknown driver")
	ErrInvalidConfig       = errors.New("serial: invalid config")

	// ErrItemType is returned when the item type has no fixed binary size.
	ErrItemType = errors.New("serial: item type has no fixed size")
)

// Error describes a transport failure on a link. Open failures are returned
// from Open, write failures from Write and read failures from LastError.
type Error struct {
	Op   Op
	Port string
	Err  error
}

func (e *Error) Error() string {
	if e.Port == "" {
		return fmt.Sprintf("serial: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("serial: %s %s: %v", e.Op, e.Port, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
