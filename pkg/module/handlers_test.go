package module

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionHandshake(t *testing.T) {
	s, _ := newTestSession(t, Config{}, &fakeLink{}, &fakeTun{})

	s.OnMessage(MsgVersion, []byte{1, 1, 0})
	assert.True(t, s.versionKnown)
	assert.True(t, s.supportsPing)
	assert.Equal(t, NewVersion(1, 1, 0), s.Version())

	s.OnMessage(MsgVersion, []byte{1, 0, 5})
	assert.True(t, s.versionKnown)
	assert.False(t, s.supportsPing)
}

func TestConfigThreeByteQuirk(t *testing.T) {
	s, _ := newTestSession(t, Config{}, &fakeLink{}, &fakeTun{})

	// Older firmware answers a config request with a version record.
	s.OnMessage(MsgConfig, []byte{1, 4, 0})
	assert.True(t, s.versionKnown)
	assert.Equal(t, NewVersion(1, 4, 0), s.Version())
	assert.False(t, s.configKnown)
}

func TestConfigAdoption(t *testing.T) {
	changed := make(chan ConfigSnapshot, 1)
	s, _ := newTestSession(t, Config{
		Network: NetworkConfig{Channel: 11, PanID: 0x1111},
		OnConfigChanged: func(snap ConfigSnapshot) {
			changed <- snap
		},
	}, &fakeLink{}, &fakeTun{})
	s.OnMessage(MsgVersion, []byte{1, 1, 0})

	reported := NetworkConfig{
		Region:    RegionEurope,
		Channel:   15,
		PanID:     0xBEEF,
		NetworkID: 0x11121112,
		Prefix:    0xfd040bd380e80002,
	}
	s.OnMessage(MsgConfig, reported.encode())

	assert.True(t, s.configKnown)
	assert.Equal(t, reported, s.Network())

	select {
	case snap := <-changed:
		assert.Equal(t, uint8(15), snap.Channel)
		assert.Equal(t, uint16(0xBEEF), snap.PanID)
		assert.Equal(t, uint32(0x11121112), snap.NetworkID)
		assert.Equal(t, "fd04:bd3:80e8:2::", snap.Prefix.String())
		assert.False(t, snap.Secure)
	case <-time.After(time.Second):
		t.Fatal("config changed hook not invoked")
	}

	// The same configuration again is not a change.
	s.OnMessage(MsgConfig, reported.encode())
	select {
	case <-changed:
		t.Fatal("hook invoked for unchanged config")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConfigIgnoredBeforeVersionKnown(t *testing.T) {
	s, _ := newTestSession(t, Config{}, &fakeLink{}, &fakeTun{})

	s.OnMessage(MsgConfig, NetworkConfig{Channel: 15}.encode())
	assert.False(t, s.configKnown)
}

func TestSecurityAdoption(t *testing.T) {
	s, _ := newTestSession(t, Config{}, &fakeLink{}, &fakeTun{})

	key := net.ParseIP("a5a5:1:2:3:4:5:6:7").To16()
	cfg := SecurityConfig{AuthScheme: AuthSchemeNone}
	copy(cfg.Key[:], key)

	s.OnMessage(MsgSecurity, cfg.encode())
	assert.True(t, s.secure)
	assert.Equal(t, "a5a5:1:2:3:4:5:6:7", s.security.KeyString())

	// Truncated security payloads are dropped.
	s2, _ := newTestSession(t, Config{}, &fakeLink{}, &fakeTun{})
	s2.OnMessage(MsgSecurity, cfg.encode()[:20])
	assert.False(t, s2.secure)
}

func TestAddressPersistence(t *testing.T) {
	dir := t.TempDir()
	var announced net.IP
	s, _ := newTestSession(t, Config{
		Interface:  "tun7",
		AddressDir: dir,
		OnAddress:  func(addr net.IP) { announced = addr },
	}, &fakeLink{}, &fakeTun{})

	payload := net.ParseIP("fd04:0bd3:80e8:0002:0000:0000:0000:0001").To16()
	require.NotNil(t, payload)
	s.OnMessage(MsgAddr, payload)

	assert.True(t, s.addressKnown)
	assert.Equal(t, "fd04:bd3:80e8:2::1", announced.String())

	data, err := os.ReadFile(filepath.Join(dir, "6LoWPANd.tun7"))
	require.NoError(t, err)
	assert.Equal(t, "fd04:bd3:80e8:2::1\n", string(data))

	info, err := os.Stat(filepath.Join(dir, "6LoWPANd.tun7"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestBadAddressIgnored(t *testing.T) {
	s, _ := newTestSession(t, Config{}, &fakeLink{}, &fakeTun{})

	s.OnMessage(MsgAddr, []byte{1, 2, 3})
	assert.False(t, s.addressKnown)
}

func TestIPv6Forwarding(t *testing.T) {
	tunDev := &fakeTun{}
	s, _ := newTestSession(t, Config{}, &fakeLink{}, tunDev)

	pkt := []byte{0x60, 0x00, 0x00, 0x00, 0x00, 0x00, 0x3A, 0x40}
	s.OnMessage(MsgIPv6, pkt)
	require.Len(t, tunDev.packets, 1)
	assert.Equal(t, pkt, tunDev.packets[0])
}

func TestIPv6WriteFailureIsNotFatal(t *testing.T) {
	tunDev := &fakeTun{err: errors.New("device gone")}
	s, clock := newTestSession(t, Config{}, &fakeLink{}, tunDev)

	before := s.lastRx
	clock.advance(time.Second)
	s.OnMessage(MsgIPv6, []byte{0x60})
	assert.True(t, s.lastRx.After(before), "frame arrival still counts as comms")
}

func TestAnyMessageRefreshesLastRx(t *testing.T) {
	s, clock := newTestSession(t, Config{}, &fakeLink{}, &fakeTun{})

	clock.advance(time.Minute)
	s.OnMessage(MsgType(250), nil) // unknown type, still comms
	assert.Equal(t, clock.now(), s.lastRx)
}

func TestModuleLogMessages(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	level := log.GetLevel()
	log.SetLevel(log.DebugLevel)
	defer log.SetLevel(level)

	s, _ := newTestSession(t, Config{}, &fakeLink{}, &fakeTun{})

	s.OnMessage(MsgLog, append([]byte{6}, []byte("network up\x00trailing")...))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, log.InfoLevel, entry.Level)
	assert.Contains(t, entry.Message, "network up")
	assert.NotContains(t, entry.Message, "trailing")

	// Priorities above debug are capped at debug.
	s.OnMessage(MsgLog, append([]byte{42}, []byte("noisy")...))
	entry = hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, log.DebugLevel, entry.Level)

	s.OnMessage(MsgLog, append([]byte{3}, []byte("radio fault")...))
	entry = hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, log.ErrorLevel, entry.Level)

	// An empty log payload is ignored.
	s.OnMessage(MsgLog, nil)
}
