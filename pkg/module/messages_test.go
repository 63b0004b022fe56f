package module

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetworkConfigWireFormat(t *testing.T) {
	cfg := NetworkConfig{
		Region:    RegionUSA,
		Channel:   15,
		PanID:     0xBEEF,
		NetworkID: 0x11121112,
		Prefix:    0xfd040bd380e80002,
	}

	want := []byte{
		0x01,       // region
		0x0F,       // channel
		0xBE, 0xEF, // PAN ID
		0x11, 0x12, 0x11, 0x12, // network ID
		0xFD, 0x04, 0x0B, 0xD3, // prefix MSB
		0x80, 0xE8, 0x00, 0x02, // prefix LSB
	}
	assert.Equal(t, want, cfg.encode())

	decoded, err := decodeNetworkConfig(want)
	require.NoError(t, err)
	assert.Equal(t, cfg, decoded)
}

func TestNetworkConfigTooShort(t *testing.T) {
	_, err := decodeNetworkConfig(make([]byte, 15))
	assert.Error(t, err)
}

func TestSecurityConfigWireFormat(t *testing.T) {
	var cfg SecurityConfig
	copy(cfg.Key[:], net.ParseIP("1:2:3:4:5:6:7:8").To16())
	cfg.AuthScheme = AuthSchemeRadiusPAP
	copy(cfg.RadiusServer[:], net.ParseIP("fd00::53").To16())

	encoded := cfg.encode()
	require.Len(t, encoded, 36)
	assert.Equal(t, cfg.Key[:], encoded[0:16])
	assert.Equal(t, []byte{0, 0, 0, 1}, encoded[16:20], "auth scheme is big-endian")
	assert.Equal(t, cfg.RadiusServer[:], encoded[20:36])

	decoded, err := decodeSecurityConfig(encoded)
	require.NoError(t, err)
	assert.Equal(t, cfg, decoded)
}

func TestVersionOrdering(t *testing.T) {
	assert.True(t, NewVersion(1, 1, 0) >= versionPing)
	assert.True(t, NewVersion(1, 0, 255) < versionPing)
	assert.True(t, NewVersion(1, 3, 0) >= versionLED)
	assert.True(t, NewVersion(1, 2, 9) < versionLED)
	assert.True(t, NewVersion(2, 0, 0) >= versionFrontEnd)
	assert.True(t, NewVersion(1, 3, 250) < versionFrontEnd)

	assert.Equal(t, "V1.4.2", NewVersion(1, 4, 2).String())
}

func TestPrefixIP(t *testing.T) {
	ip := PrefixIP(0xfd040bd380e80002)
	assert.Equal(t, "fd04:bd3:80e8:2::", ip.String())
}
