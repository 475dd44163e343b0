package serial

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/zap"
)

const (
	// DefaultBufferSize is the number of received bytes a link holds before
	// newly arriving bytes are dropped.
	DefaultBufferSize = 512

	// DefaultChunkSize is the most bytes requested from the transport per read.
	DefaultChunkSize = 128
)

// Driver selects the transport implementation used by Open.
type Driver string

const (
	DriverTTY      Driver = "tty"      // raw termios, Linux only
	DriverPortable Driver = "portable" // go.bug.st/serial
	DriverTarm     Driver = "tarm"     // github.com/tarm/serial
)

// Config holds configuration parameters for opening a link.
// The line is always configured for 8 data bits, no parity and one stop bit.
type Config struct {
	Device   string
	BaudRate int
	Driver   Driver // default: tty on Linux, portable elsewhere

	BufferSize int              // default DefaultBufferSize
	ChunkSize  int              // default DefaultChunkSize
	ByteOrder  binary.ByteOrder // item encoding, default little-endian
	Logger     *zap.Logger      // default no-op
}

func (c Config) withDefaults() Config {
	if c.Driver == "" {
		c.Driver = defaultDriver
	}
	if c.BufferSize == 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ByteOrder == nil {
		c.ByteOrder = binary.LittleEndian
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

func (c Config) validateBuffering() error {
	if c.BufferSize < 0 {
		return fmt.Errorf("%w: buffer size %d", ErrInvalidConfig, c.BufferSize)
	}
	if c.ChunkSize < 0 {
		return fmt.Errorf("%w: chunk size %d", ErrInvalidConfig, c.ChunkSize)
	}
	return nil
}

func (c Config) validatePort() error {
	if c.Device == "" {
		return ErrInvalidPort
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("%w: %d", ErrUnsupportedBaudRate, c.BaudRate)
	}
	return nil
}
