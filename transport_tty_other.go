//go:build !linux

package serial

import (
	"fmt"
	"runtime"
)

const defaultDriver = DriverPortable

func openTTY(device string, baudRate int) (Transport, error) {
	return nil, fmt.Errorf("%w: tty driver is not available on %s", ErrUnknownDriver, runtime.GOOS)
}
