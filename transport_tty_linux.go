//go:build linux

package serial

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

const defaultDriver = DriverTTY

// ttyTransport is a raw, unbuffered Linux serial port. Reads wait in poll on
// the device and a self-pipe so that Close can wake them.
type ttyTransport struct {
	file      *os.File
	fd        int
	pipeR     int // self-pipe read fd
	pipeW     int // self-pipe write fd
	done      chan struct{}
	closeOnce sync.Once
	readMu    sync.Mutex // held by Read while it uses the descriptors
}

func openTTY(device string, baudRate int) (Transport, error) {
	baud, ok := baudToUnix(baudRate)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBaudRate, baudRate)
	}

	fd, err := syscall.Open(device, syscall.O_RDWR|syscall.O_NOCTTY|syscall.O_NONBLOCK, 0666)
	if err != nil {
		return nil, fmt.Errorf("open failed: %w", err)
	}

	if err := configureTermios(fd, baud); err != nil {
		syscall.Close(fd)
		return nil, err
	}

	// Turn back into blocking mode now that config is done
	if err := syscall.SetNonblock(fd, false); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("set blocking: %w", err)
	}

	pipeFds := make([]int, 2)
	if err := unix.Pipe2(pipeFds, unix.O_CLOEXEC); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("pipe: %w", err)
	}

	return &ttyTransport{
		file:  os.NewFile(uintptr(fd), device),
		fd:    fd,
		pipeR: pipeFds[0],
		pipeW: pipeFds[1],
		done:  make(chan struct{}),
	}, nil
}

func configureTermios(fd int, baud uint32) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}

	// Raw mode
	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN

	// 8N1
	termios.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB
	termios.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL

	termios.Cflag &^= unix.CBAUD
	termios.Cflag |= baud
	termios.Ispeed = baud
	termios.Ospeed = baud

	// VMIN=1, VTIME=0: a read returns as soon as one byte is there
	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return fmt.Errorf("set termios: %w", err)
	}
	return nil
}

// Read waits for data or Close and reads whatever the device has, up to len(p).
func (t *ttyTransport) Read(p []byte) (int, error) {
	t.readMu.Lock()
	defer t.readMu.Unlock()
	for {
		select {
		case <-t.done:
			return 0, ErrClosed
		default:
		}

		pfd := []unix.PollFd{
			{Fd: int32(t.fd), Events: unix.POLLIN},
			{Fd: int32(t.pipeR), Events: unix.POLLIN},
		}
		if _, err := unix.Poll(pfd, -1); err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return 0, err
		}
		if pfd[1].Revents&unix.POLLIN != 0 {
			return 0, ErrClosed
		}
		if pfd[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			n, err := t.file.Read(p)
			if n == 0 && err == nil {
				err = io.EOF
			}
			return n, err
		}
	}
}

// Write blocks until all of p has been handed to the device.
func (t *ttyTransport) Write(p []byte) (int, error) {
	return t.file.Write(p)
}

// Close wakes any pending Read, then releases the device and the self-pipe.
// Safe to call multiple times; subsequent calls are no-ops.
func (t *ttyTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		unix.Write(t.pipeW, []byte{1})

		// wait for a Read that is inside poll to notice the pipe
		t.readMu.Lock()
		defer t.readMu.Unlock()

		err = t.file.Close()
		unix.Close(t.pipeR)
		unix.Close(t.pipeW)
	})
	return err
}

func baudToUnix(baud int) (uint32, bool) {
	switch baud {
	case 1200:
		return unix.B1200, true
	case 2400:
		return unix.B2400, true
	case 4800:
		return unix.B4800, true
	case 9600:
		return unix.B9600, true
	case 19200:
		return unix.B19200, true
	case 38400:
		return unix.B38400, true
	case 57600:
		return unix.B57600, true
	case 115200:
		return unix.B115200, true
	case 230400:
		return unix.B230400, true
	case 460800:
		return unix.B460800, true
	case 921600:
		return unix.B921600, true
	default:
		return 0, false
	}
}
