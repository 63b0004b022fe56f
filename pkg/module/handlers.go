package module

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// OnMessage is the entry point for every validated frame from the
// module. Whatever the type, its arrival counts as successful comms.
func (s *Session) OnMessage(msgType MsgType, payload []byte) {
	switch msgType {
	case MsgIPv6:
		s.handleIPv6(payload)
	case MsgConfig:
		s.handleConfig(payload)
	case MsgSecurity:
		s.handleSecurity(payload)
	case MsgAddr:
		s.handleAddr(payload)
	case MsgConfigRequest:
		s.handleConfigRequest()
	case MsgLog:
		s.handleLog(payload)
	case MsgVersion:
		s.handleVersion(payload)
	case MsgPing:
		log.Debugf("[MODULE] pong")
	default:
		// Unknown or unused types are ignored.
	}
	s.lastRx = s.now()
}

func (s *Session) handleIPv6(payload []byte) {
	if err := s.tun.WritePacket(payload); err != nil {
		// Non-fatal for the session; the datagram is dropped.
		log.Errorf("[MODULE] error writing to tun device: %v", err)
	}
}

func (s *Session) handleVersion(payload []byte) {
	if len(payload) < 3 {
		log.Debugf("[MODULE] short version message (%d bytes)", len(payload))
		return
	}
	s.version = NewVersion(payload[0], payload[1], payload[2])
	s.versionKnown = true
	// Firmware 1.1.0 and greater supports ping.
	s.supportsPing = s.version >= versionPing

	log.Infof("[MODULE] connected to border router %s", s.version)
}

func (s *Session) handleConfig(payload []byte) {
	if len(payload) == 3 {
		// Older firmware answers a config request with a bare version
		// record.
		s.handleVersion(payload)
		return
	}

	if s.version < versionPing {
		return
	}

	cfg, err := decodeNetworkConfig(payload)
	if err != nil {
		log.Debugf("[MODULE] bad config message: %v", err)
		return
	}

	// The reported parameters must be adopted: a restart with
	// different parameters would strand every node already joined.
	changed := cfg != s.network
	s.network = cfg
	s.configKnown = true

	log.Infof("[MODULE] received configuration from module")
	log.Infof("[MODULE] config 15.4 region    : %d", cfg.Region)
	log.Infof("[MODULE] config 15.4 channel   : %d", cfg.Channel)
	log.Infof("[MODULE] config 15.4 PAN ID    : 0x%x", cfg.PanID)
	log.Infof("[MODULE] config network ID     : 0x%x", cfg.NetworkID)
	log.Infof("[MODULE] config 6LoWPAN prefix : 0x%016x", cfg.Prefix)

	if s.status != nil {
		s.status.PublishConfig(cfg)
	}

	if changed && s.onConfigChanged != nil {
		// A slow hook must not stall the event loop.
		go s.onConfigChanged(s.snapshot())
	}
}

func (s *Session) handleSecurity(payload []byte) {
	cfg, err := decodeSecurityConfig(payload)
	if err != nil {
		log.Debugf("[MODULE] bad security message: %v", err)
		return
	}
	s.secure = true
	s.security = cfg

	log.Infof("[MODULE] received security configuration from module")
	log.Infof("[MODULE] security key: %s", cfg.KeyString())
}

func (s *Session) handleConfigRequest() {
	log.Infof("[MODULE] configuration request from module")

	// Resend the configuration on the next tick.
	s.stage = StageConfigureNetwork
	s.retries = 0
}

func (s *Session) handleAddr(payload []byte) {
	if len(payload) != net.IPv6len {
		log.Debugf("[MODULE] bad address message (%d bytes)", len(payload))
		return
	}
	addr := make(net.IP, net.IPv6len)
	copy(addr, payload)

	log.Infof("[MODULE] module address: %s", addr)

	if err := s.persistAddress(addr); err != nil {
		log.Errorf("[MODULE] error storing module address: %v", err)
		return
	}

	s.addressKnown = true
	if s.status != nil {
		s.status.PublishAddress(addr.String())
	}
	if s.onAddress != nil {
		s.onAddress(addr)
	}
}

// persistAddress records the learned module address in a well-known
// file so other tooling can find the border router.
func (s *Session) persistAddress(addr net.IP) error {
	path := filepath.Join(s.addressDir, fmt.Sprintf("6LoWPANd.%s", s.iface))
	return os.WriteFile(path, []byte(addr.String()+"\n"), 0o600)
}

func (s *Session) handleLog(payload []byte) {
	if len(payload) == 0 {
		return
	}

	// First byte is the syslog priority, capped at debug; the rest is
	// a NUL-terminated log line.
	priority := payload[0]
	if priority > 7 {
		priority = 7
	}
	msg := payload[1:]
	if i := bytes.IndexByte(msg, 0); i >= 0 {
		msg = msg[:i]
	}

	logModuleLine(priority, string(msg))
}

func logModuleLine(priority uint8, msg string) {
	switch {
	case priority <= 3: // emerg, alert, crit, err
		log.Errorf("[MODULE] %s", msg)
	case priority == 4: // warning
		log.Warnf("[MODULE] %s", msg)
	case priority <= 6: // notice, info
		log.Infof("[MODULE] %s", msg)
	default:
		log.Debugf("[MODULE] %s", msg)
	}
}
