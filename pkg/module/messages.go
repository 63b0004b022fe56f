package module

import (
	"encoding/binary"
	"fmt"
	"net"
)

// MsgType is the single-octet message type on the serial link.
type MsgType uint8

const (
	MsgVersionRequest   MsgType = 0
	MsgVersion          MsgType = 1
	MsgIPv4             MsgType = 100 // reserved, unused
	MsgIPv6             MsgType = 101
	MsgConfig           MsgType = 102
	MsgRunCoordinator   MsgType = 103
	MsgReset            MsgType = 104
	MsgAddr             MsgType = 105
	MsgConfigRequest    MsgType = 106
	MsgSecurity         MsgType = 107
	MsgLog              MsgType = 108
	MsgPing             MsgType = 109
	MsgProfile          MsgType = 110
	MsgRunRouter        MsgType = 111
	MsgRunCommissioning MsgType = 112
	MsgActivityLED      MsgType = 113
	MsgSetRadioFrontEnd MsgType = 114
	MsgEnableDiversity  MsgType = 115
)

// Version is the module firmware version packed as 0x00MMmmrr.
type Version uint32

func NewVersion(major, minor, rev uint8) Version {
	return Version(uint32(major)<<16 | uint32(minor)<<8 | uint32(rev))
}

func (v Version) Major() uint8 { return uint8(v >> 16) }
func (v Version) Minor() uint8 { return uint8(v >> 8) }
func (v Version) Rev() uint8   { return uint8(v) }

func (v Version) String() string {
	return fmt.Sprintf("V%d.%d.%d", v.Major(), v.Minor(), v.Rev())
}

// Capability thresholds by firmware version.
var (
	versionPing     = NewVersion(1, 1, 0) // ping, profiles, config readback
	versionLED      = NewVersion(1, 3, 0) // activity LED
	versionFrontEnd = NewVersion(1, 4, 0) // radio front end, antenna diversity
)

// Mode selects how the attached module joins the network.
type Mode uint8

const (
	ModeCoordinator Mode = iota
	ModeRouter
	ModeCommissioning
)

func (m Mode) String() string {
	switch m {
	case ModeCoordinator:
		return "coordinator"
	case ModeRouter:
		return "router"
	case ModeCommissioning:
		return "commissioning"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// Region is the 802.15.4 certification region.
type Region uint8

const (
	RegionEurope Region = iota
	RegionUSA
	RegionJapan

	regionMax
)

// Channel limits. Zero selects the channel automatically.
const (
	ChannelAutomatic = 0
	ChannelMinimum   = 11
	ChannelMaximum   = 26
)

// AuthScheme selects how joining nodes are authorised.
type AuthScheme uint32

const (
	AuthSchemeNone AuthScheme = iota
	AuthSchemeRadiusPAP
)

// FrontEnd selects the radio front end fitted to the module.
type FrontEnd uint8

const (
	FrontEndStandardPower FrontEnd = iota
	FrontEndHighPower
	FrontEndETSI
)

// ActivityLEDNone disables the activity LED.
const ActivityLEDNone = 0xFFFFFFFF

// NetworkConfig is the operating configuration of the 6LoWPAN network.
// On the wire it is 16 bytes, big-endian, in field order.
type NetworkConfig struct {
	Region    Region
	Channel   uint8
	PanID     uint16
	NetworkID uint32
	Prefix    uint64
}

const networkConfigLen = 16

func (c NetworkConfig) encode() []byte {
	buf := make([]byte, networkConfigLen)
	buf[0] = uint8(c.Region)
	buf[1] = c.Channel
	binary.BigEndian.PutUint16(buf[2:4], c.PanID)
	binary.BigEndian.PutUint32(buf[4:8], c.NetworkID)
	binary.BigEndian.PutUint32(buf[8:12], uint32(c.Prefix>>32))
	binary.BigEndian.PutUint32(buf[12:16], uint32(c.Prefix))
	return buf
}

func decodeNetworkConfig(p []byte) (NetworkConfig, error) {
	if len(p) < networkConfigLen {
		return NetworkConfig{}, fmt.Errorf("network config too short (%d bytes)", len(p))
	}
	return NetworkConfig{
		Region:    Region(p[0]),
		Channel:   p[1],
		PanID:     binary.BigEndian.Uint16(p[2:4]),
		NetworkID: binary.BigEndian.Uint32(p[4:8]),
		Prefix: uint64(binary.BigEndian.Uint32(p[8:12]))<<32 |
			uint64(binary.BigEndian.Uint32(p[12:16])),
	}, nil
}

// PrefixIP expands the 64-bit network prefix into an IPv6 address with
// a zero interface identifier.
func PrefixIP(prefix uint64) net.IP {
	ip := make(net.IP, net.IPv6len)
	binary.BigEndian.PutUint64(ip[:8], prefix)
	return ip
}

// SecurityConfig is the network security configuration. On the wire it
// is the 128-bit key, the auth scheme as a big-endian u32, then 16
// bytes of scheme data (the RADIUS server address for RADIUS/PAP).
type SecurityConfig struct {
	Key          [16]byte
	AuthScheme   AuthScheme
	RadiusServer [16]byte
}

const securityConfigLen = 36

func (c SecurityConfig) encode() []byte {
	buf := make([]byte, securityConfigLen)
	copy(buf[0:16], c.Key[:])
	binary.BigEndian.PutUint32(buf[16:20], uint32(c.AuthScheme))
	copy(buf[20:36], c.RadiusServer[:])
	return buf
}

func decodeSecurityConfig(p []byte) (SecurityConfig, error) {
	if len(p) < securityConfigLen {
		return SecurityConfig{}, fmt.Errorf("security config too short (%d bytes)", len(p))
	}
	var c SecurityConfig
	copy(c.Key[:], p[0:16])
	c.AuthScheme = AuthScheme(binary.BigEndian.Uint32(p[16:20]))
	copy(c.RadiusServer[:], p[20:36])
	return c, nil
}

// KeyString renders the network key the way it is specified on the
// command line, as an IPv6-style address.
func (c SecurityConfig) KeyString() string {
	return net6String(c.Key)
}

func net6String(b [16]byte) string {
	return net.IP(b[:]).String()
}
