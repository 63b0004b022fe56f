// Package tun wraps the kernel virtual interface that carries IPv6
// traffic to and from the 6LoWPAN network.
package tun

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/songgao/water"
)

// Datagrams larger than this cannot cross the serial link anyway.
const packetBufferSize = 2048

// Device is a point-to-point TUN interface in no-packet-info mode;
// reads and writes exchange raw IPv6 datagrams with the kernel.
type Device struct {
	name string
	ifce *water.Interface
	buf  []byte
}

// Open creates (or attaches to) the named TUN interface.
func Open(name string) (*Device, error) {
	cfg := water.Config{DeviceType: water.TUN}
	cfg.Name = name
	ifce, err := water.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("create tun device %s: %w", name, err)
	}
	log.Debugf("[TUN] opened device: %s", ifce.Name())
	return &Device{
		name: ifce.Name(),
		ifce: ifce,
		buf:  make([]byte, packetBufferSize),
	}, nil
}

// Name returns the interface name the kernel actually assigned.
func (d *Device) Name() string {
	return d.name
}

// ReadPacket drains one datagram from the kernel. A zero-length read
// means no data and returns (nil, nil).
func (d *Device) ReadPacket() ([]byte, error) {
	n, err := d.ifce.Read(d.buf)
	if err != nil {
		return nil, fmt.Errorf("read from tun device: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	pkt := make([]byte, n)
	copy(pkt, d.buf[:n])
	return pkt, nil
}

// WritePacket hands one received IPv6 datagram to the kernel. A short
// write is an error.
func (d *Device) WritePacket(p []byte) error {
	n, err := d.ifce.Write(p)
	if err != nil {
		return fmt.Errorf("write to tun device: %w", err)
	}
	if n != len(p) {
		return fmt.Errorf("short write to tun device (%d of %d bytes)", n, len(p))
	}
	return nil
}

func (d *Device) Close() error {
	return d.ifce.Close()
}
