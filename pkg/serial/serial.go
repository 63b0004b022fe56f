// Package serial owns the raw serial line to the border router module.
package serial

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// The standard POSIX rates. Anything else is rejected before the
// device is opened.
var supportedBauds = map[int]struct{}{
	50: {}, 75: {}, 110: {}, 134: {}, 150: {}, 200: {}, 300: {}, 600: {},
	1200: {}, 1800: {}, 2400: {}, 4800: {}, 9600: {}, 19200: {}, 38400: {},
	57600: {}, 115200: {}, 230400: {}, 460800: {}, 500000: {}, 576000: {},
	921600: {}, 1000000: {}, 1152000: {}, 1500000: {}, 2000000: {},
	2500000: {}, 3000000: {}, 3500000: {}, 4000000: {},
}

const (
	writeAttempts = 5
	writeBackoff  = time.Millisecond
)

// BaudSupported reports whether rate is one of the standard POSIX
// baud rates this daemon will configure.
func BaudSupported(rate int) bool {
	_, ok := supportedBauds[rate]
	return ok
}

// Port is a serial device in raw 8N1 mode with no flow control.
type Port struct {
	device string
	port   serial.Port
}

// Open opens the named serial device at the given baud rate.
func Open(device string, baud int) (*Port, error) {
	if !BaudSupported(baud) {
		return nil, fmt.Errorf("unsupported baud rate specified (%d)", baud)
	}

	log.Infof("[SERIAL] opening device '%s' at %dbps", device, baud)

	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial device %s: %w", device, err)
	}
	return &Port{device: device, port: port}, nil
}

// Read fills buf with whatever octets are pending and blocks when none
// are. It never returns more than len(buf).
func (p *Port) Read(buf []byte) (int, error) {
	return p.port.Read(buf)
}

// WriteByte transmits a single octet.
func (p *Port) WriteByte(b byte) error {
	return p.WriteAll([]byte{b})
}

// WriteAll transmits buf completely. Transient short writes are
// retried with a brief back-off; five consecutive stalled attempts is
// a write error and the frame in flight is lost.
func (p *Port) WriteAll(buf []byte) error {
	attempts := 0
	for sent := 0; sent < len(buf); {
		n, err := p.port.Write(buf[sent:])
		if err != nil {
			return fmt.Errorf("write to module: %w", err)
		}
		if n == 0 {
			attempts++
			if attempts >= writeAttempts {
				return fmt.Errorf("write to module stalled after %d attempts", attempts)
			}
			time.Sleep(writeBackoff)
			continue
		}
		attempts = 0
		sent += n
	}
	return nil
}

func (p *Port) Close() error {
	return p.port.Close()
}
