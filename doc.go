// Package serial turns a serial port byte stream into a stream of fixed-size
// typed items, for talking to devices such as radio transceivers without
// blocking the caller on reads.
//
// A Link owns the port and a background goroutine that keeps reading from it
// into a bounded receive buffer (512 bytes by default). Read is non-blocking
// and only ever returns whole items; Write is blocking and unbuffered.
//
// Features:
//   - Generic over the item type: any fixed-size type encoding/binary accepts
//   - Raw termios driver on Linux with a self-pipe so Close unblocks reads
//   - Portable drivers built on go.bug.st/serial and github.com/tarm/serial
//   - Transport errors observable through LastError without blocking
//   - PTY-based tests for reliability
//
// When the receive buffer is full, newly arriving bytes are dropped and
// counted (see Link.Dropped). There is no backpressure to the device; callers
// that cannot tolerate loss must call Read often enough or raise BufferSize.
//
// Example usage:
//
//	link, err := serial.Open[uint16](serial.Config{
//	    Device:   "/dev/ttyUSB0",
//	    BaudRate: 115200,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer link.Close()
//
//	if err := link.Write([]uint16{0x0102, 0x0304}); err != nil {
//	    log.Println("Write failed:", err)
//	}
//
//	samples := make([]uint16, 64)
//	for {
//	    n := link.Read(samples)
//	    if n == 0 && link.LastError() != nil {
//	        log.Println("Connection lost:", link.LastError())
//	        return
//	    }
//	    process(samples[:n])
//	    time.Sleep(10 * time.Millisecond)
//	}
package serial
