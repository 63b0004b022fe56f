// Package service runs the daemon's event loop, multiplexing the
// serial link and the tun device into the module session.
package service

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/openlowpan/lowpan-service/pkg/frame"
	"github.com/openlowpan/lowpan-service/pkg/module"
)

// SerialReader is the receive side of the serial line.
type SerialReader interface {
	Read(buf []byte) (int, error)
}

// PacketReader drains IPv6 datagrams queued by the kernel.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// Service owns the main event loop. The session and codec are only
// ever touched from Run's goroutine, which also does every write to
// both devices; the reader goroutines do nothing but read from the
// devices and move the raw bytes into channels.
type Service struct {
	port    SerialReader
	tun     PacketReader
	session *module.Session
	decoder *frame.Decoder

	resetOnExit bool
	stopCh      chan struct{}
}

// New creates a service around an initialized session.
func New(session *module.Session, port SerialReader, tun PacketReader, resetOnExit bool) *Service {
	return &Service{
		port:        port,
		tun:         tun,
		session:     session,
		decoder:     frame.NewDecoder(frame.MaxPayloadLength),
		resetOnExit: resetOnExit,
		stopCh:      make(chan struct{}),
	}
}

// Stop requests a clean shutdown; safe to call from a signal handler
// goroutine.
func (s *Service) Stop() {
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
}

func (s *Service) readSerial(out chan<- []byte) {
	buf := make([]byte, 256)
	for {
		n, err := s.port.Read(buf)
		if err != nil {
			log.Errorf("[SERVICE] error reading from serial port: %v", err)
			close(out)
			return
		}
		if n == 0 {
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case out <- data:
		case <-s.stopCh:
			return
		}
	}
}

func (s *Service) readTun(out chan<- []byte) {
	for {
		pkt, err := s.tun.ReadPacket()
		if err != nil {
			log.Errorf("[SERVICE] error handling tun packet: %v", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if pkt == nil {
			continue
		}
		select {
		case out <- pkt:
		case <-s.stopCh:
			return
		}
	}
}

// handleSerial feeds every pending octet through the decoder,
// dispatching completed frames, then gives the state machine a turn.
func (s *Service) handleSerial(data []byte) error {
	for len(data) > 0 {
		f, consumed := s.decoder.Decode(data)
		data = data[consumed:]
		if f != nil {
			s.session.OnMessage(module.MsgType(f.Type), f.Payload)
		}
	}
	return s.session.Tick(false)
}

// Run drives the event loop until shutdown or link failure. A comms
// failure returns an error wrapping module.ErrCommsFailed after the
// optional final reset; a requested stop returns nil.
func (s *Service) Run() error {
	serialCh := make(chan []byte, 16)
	tunCh := make(chan []byte, 16)
	go s.readSerial(serialCh)
	go s.readTun(tunCh)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	if err := s.session.Start(); err != nil {
		return s.finish(err)
	}

	for {
		select {
		case <-s.stopCh:
			return s.finish(nil)
		default:
		}

		// Bring-up replies must not be starved by tun traffic: drain
		// the serial side before considering anything else.
		select {
		case data, ok := <-serialCh:
			if !ok {
				return s.finish(errors.New("serial port closed"))
			}
			if err := s.handleSerial(data); err != nil {
				return s.finish(err)
			}
			continue
		default:
		}

		select {
		case <-s.stopCh:
			return s.finish(nil)

		case data, ok := <-serialCh:
			if !ok {
				return s.finish(errors.New("serial port closed"))
			}
			if err := s.handleSerial(data); err != nil {
				return s.finish(err)
			}

		case pkt := <-tunCh:
			s.session.SendIPv6(pkt)

		case <-ticker.C:
			if err := s.session.Tick(true); err != nil {
				return s.finish(err)
			}
		}
	}
}

func (s *Service) finish(err error) error {
	if err != nil {
		log.Errorf("[SERVICE] error communicating with border router module: %v", err)
	}
	if s.resetOnExit {
		log.Infof("[SERVICE] resetting coordinator module")
		s.session.SendReset()
	}
	s.Stop()
	if err != nil {
		return fmt.Errorf("main loop: %w", err)
	}
	return nil
}
