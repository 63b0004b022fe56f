// Package module drives the attached border router through bring-up,
// steady-state packet forwarding and communication loss recovery.
package module

import (
	"errors"
	"net"
	"time"
)

// ErrCommsFailed is surfaced when the module has been silent for
// longer than the watchdog window.
var ErrCommsFailed = errors.New("module not responding")

const (
	// Declare comms dead after 60 seconds of silence.
	commsTimeout = 60 * time.Second

	// Seconds between pings in the running state.
	pingInterval = 10 * time.Second

	maxVersionRetries = 3
	maxAddressRetries = 6
)

// Stage is the bring-up state of the module session.
type Stage int

const (
	StageDetermineVersion Stage = iota
	StageConfigureNetwork
	StageConfigureSecurity
	StageConfigureProfile
	StageStartModule
	StageConfigureFrontEnd
	StageDetermineConfiguration
	StageDetermineAddress
	StageActivityLED
	StageRunning
)

func (s Stage) String() string {
	switch s {
	case StageDetermineVersion:
		return "determine-version"
	case StageConfigureNetwork:
		return "configure-network"
	case StageConfigureSecurity:
		return "configure-security"
	case StageConfigureProfile:
		return "configure-profile"
	case StageStartModule:
		return "start-module"
	case StageConfigureFrontEnd:
		return "configure-frontend"
	case StageDetermineConfiguration:
		return "determine-configuration"
	case StageDetermineAddress:
		return "determine-address"
	case StageActivityLED:
		return "activity-led"
	case StageRunning:
		return "running"
	}
	return "unknown"
}

// FrameWriter transmits one framed message on the serial link.
type FrameWriter interface {
	WriteMessage(msgType uint8, payload []byte) error
}

// PacketWriter hands received IPv6 datagrams to the kernel.
type PacketWriter interface {
	WritePacket(p []byte) error
}

// StatusPublisher mirrors session state to an external store. All
// methods are best effort.
type StatusPublisher interface {
	PublishStage(stage string)
	PublishAddress(addr string)
	PublishConfig(cfg NetworkConfig)
}

// ConfigSnapshot is the immutable copy of the adopted network
// parameters handed to the configuration-changed hook.
type ConfigSnapshot struct {
	Channel   uint8
	PanID     uint16
	NetworkID uint32
	Prefix    net.IP
	Secure    bool
	Key       string
}

// Config seeds a session at daemon start.
type Config struct {
	Mode    Mode
	Network NetworkConfig
	Profile uint8

	Secure   bool
	Security SecurityConfig

	FrontEnd         FrontEnd
	AntennaDiversity bool
	ActivityLED      uint32

	// Interface names the tun device; the learned module address is
	// persisted to AddressDir/6LoWPANd.<Interface>.
	Interface  string
	AddressDir string

	// OnConfigChanged is invoked on a separate goroutine whenever the
	// module reports network parameters differing from the current
	// ones. Optional.
	OnConfigChanged func(ConfigSnapshot)

	// OnAddress is invoked when the module reports its IPv6 address.
	// Optional.
	OnAddress func(addr net.IP)

	// Status mirrors stage transitions and learned state. Optional.
	Status StatusPublisher

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Session holds the negotiated peer state and sequences the bring-up
// state machine. It is owned by the event loop and is not safe for
// concurrent use.
type Session struct {
	link FrameWriter
	tun  PacketWriter
	now  func() time.Time

	mode        Mode
	network     NetworkConfig
	profile     uint8
	secure      bool
	security    SecurityConfig
	frontEnd    FrontEnd
	diversity   bool
	activityLED uint32

	iface      string
	addressDir string

	onConfigChanged func(ConfigSnapshot)
	onAddress       func(net.IP)
	status          StatusPublisher

	version      Version
	versionKnown bool
	addressKnown bool
	configKnown  bool
	supportsPing bool

	stage    Stage
	retries  int
	lastRx   time.Time
	lastPing time.Time
}

// New creates a session bound to the given serial link and tun device.
func New(cfg Config, link FrameWriter, tun PacketWriter) *Session {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	dir := cfg.AddressDir
	if dir == "" {
		dir = "/tmp"
	}
	return &Session{
		link:            link,
		tun:             tun,
		now:             now,
		mode:            cfg.Mode,
		network:         cfg.Network,
		profile:         cfg.Profile,
		secure:          cfg.Secure,
		security:        cfg.Security,
		frontEnd:        cfg.FrontEnd,
		diversity:       cfg.AntennaDiversity,
		activityLED:     cfg.ActivityLED,
		iface:           cfg.Interface,
		addressDir:      dir,
		onConfigChanged: cfg.OnConfigChanged,
		onAddress:       cfg.OnAddress,
		status:          cfg.Status,
		stage:           StageDetermineVersion,
	}
}

// Stage returns the current bring-up stage.
func (s *Session) Stage() Stage {
	return s.stage
}

// Version returns the peer firmware version, zero until known.
func (s *Session) Version() Version {
	return s.version
}

// Network returns the currently adopted network configuration.
func (s *Session) Network() NetworkConfig {
	return s.network
}

// Start begins the bring-up sequence from scratch.
func (s *Session) Start() error {
	s.reset()
	s.lastRx = s.now()
	return s.Tick(false)
}

// reset returns the session to the initial stage with every capability
// flag cleared.
func (s *Session) reset() {
	s.stage = StageDetermineVersion
	s.retries = 0
	s.version = 0
	s.versionKnown = false
	s.addressKnown = false
	s.configKnown = false
	s.supportsPing = false
	if s.status != nil {
		s.status.PublishStage(s.stage.String())
	}
}

func (s *Session) snapshot() ConfigSnapshot {
	snap := ConfigSnapshot{
		Channel:   s.network.Channel,
		PanID:     s.network.PanID,
		NetworkID: s.network.NetworkID,
		Prefix:    PrefixIP(s.network.Prefix),
		Secure:    s.secure,
	}
	if s.secure {
		snap.Key = s.security.KeyString()
	}
	return snap
}
