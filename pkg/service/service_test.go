package service

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlowpan/lowpan-service/pkg/frame"
	"github.com/openlowpan/lowpan-service/pkg/module"
)

// scriptedPort feeds canned byte deliveries to the serial reader.
type scriptedPort struct {
	ch chan []byte
}

func (p *scriptedPort) Read(buf []byte) (int, error) {
	data, ok := <-p.ch
	if !ok {
		return 0, io.EOF
	}
	return copy(buf, data), nil
}

// scriptedTun hands queued datagrams to the tun reader and blocks
// otherwise.
type scriptedTun struct {
	ch chan []byte
}

func (t *scriptedTun) ReadPacket() ([]byte, error) {
	return <-t.ch, nil
}

// nullTun swallows forwarded packets.
type nullTun struct{}

func (nullTun) WritePacket([]byte) error { return nil }

// captureLink reports every transmitted message type on a channel.
type captureLink struct {
	types chan uint8
}

func newCaptureLink() *captureLink {
	return &captureLink{types: make(chan uint8, 64)}
}

func (l *captureLink) WriteMessage(msgType uint8, payload []byte) error {
	select {
	case l.types <- msgType:
	default:
	}
	return nil
}

func (l *captureLink) waitFor(t *testing.T, want module.MsgType) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-l.types:
			if got == uint8(want) {
				return
			}
		case <-deadline:
			t.Fatalf("message %d never transmitted", want)
		}
	}
}

func newTestService(t *testing.T, link module.FrameWriter, port SerialReader, tunR PacketReader) (*Service, *module.Session) {
	t.Helper()
	session := module.New(module.Config{
		Interface:  "tun0",
		AddressDir: t.TempDir(),
	}, link, nullTun{})
	return New(session, port, tunR, false), session
}

func TestHandleSerialResumesAcrossDeliveries(t *testing.T) {
	link := newCaptureLink()
	svc, session := newTestService(t, link, &scriptedPort{}, &scriptedTun{})

	data := frame.Encode(uint8(module.MsgVersion), []byte{1, 1, 0})
	require.NoError(t, svc.handleSerial(data[:3]))
	assert.Zero(t, session.Version())
	require.NoError(t, svc.handleSerial(data[3:]))
	assert.Equal(t, module.NewVersion(1, 1, 0), session.Version())
}

func TestHandleSerialDispatchesMultipleFrames(t *testing.T) {
	link := newCaptureLink()
	svc, session := newTestService(t, link, &scriptedPort{}, &scriptedTun{})

	stream := frame.Encode(uint8(module.MsgVersion), []byte{1, 1, 0})
	stream = append(stream, frame.Encode(uint8(module.MsgPing), nil)...)
	require.NoError(t, svc.handleSerial(stream))
	assert.Equal(t, module.NewVersion(1, 1, 0), session.Version())
}

func TestRunBringsUpAndForwards(t *testing.T) {
	port := &scriptedPort{ch: make(chan []byte, 4)}
	tunR := &scriptedTun{ch: make(chan []byte, 4)}
	link := newCaptureLink()
	svc, _ := newTestService(t, link, port, tunR)

	done := make(chan error, 1)
	go func() { done <- svc.Run() }()

	// Start requests the peer version.
	link.waitFor(t, module.MsgVersionRequest)

	// The version reply moves bring-up on to network configuration.
	port.ch <- frame.Encode(uint8(module.MsgVersion), []byte{1, 1, 0})
	link.waitFor(t, module.MsgConfig)

	// A kernel datagram is forwarded as an IPv6 frame.
	tunR.ch <- []byte{0x60, 0x01, 0x02, 0x03}
	link.waitFor(t, module.MsgIPv6)

	svc.Stop()
	require.NoError(t, <-done)
}

func TestRunStopsOnSerialFailure(t *testing.T) {
	port := &scriptedPort{ch: make(chan []byte)}
	link := newCaptureLink()
	svc, _ := newTestService(t, link, port, &scriptedTun{ch: make(chan []byte)})

	done := make(chan error, 1)
	go func() { done <- svc.Run() }()

	close(port.ch)
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not terminate on serial failure")
	}
}
