package module

import (
	log "github.com/sirupsen/logrus"
)

// Outbound messages to the module. Writes are best effort: a failed
// write is logged and the frame is lost. The state machine repeats only
// its version, configuration and address requests (and the periodic
// ping); the other messages are not sent again.

func (s *Session) write(msgType MsgType, payload []byte) {
	if err := s.link.WriteMessage(uint8(msgType), payload); err != nil {
		log.Errorf("[MODULE] write failed: %v", err)
	}
}

// SendVersionRequest asks the module for its firmware version.
func (s *Session) SendVersionRequest() {
	log.Debugf("[MODULE] writing: get version")
	s.write(MsgVersionRequest, nil)
}

// SendConfig writes the network operating parameters to the module.
func (s *Session) SendConfig() {
	log.Infof("[MODULE] writing configuration to module")
	log.Infof("[MODULE] config 15.4 region    : %d", s.network.Region)
	log.Infof("[MODULE] config 15.4 channel   : %d", s.network.Channel)
	log.Infof("[MODULE] config 15.4 PAN ID    : 0x%x", s.network.PanID)
	log.Infof("[MODULE] config network ID     : 0x%x", s.network.NetworkID)
	log.Infof("[MODULE] config 6LoWPAN prefix : 0x%016x", s.network.Prefix)
	s.write(MsgConfig, s.network.encode())
}

// SendSecurityConfig writes the security parameters to the module.
func (s *Session) SendSecurityConfig() {
	log.Infof("[MODULE] enabling network security")
	log.Infof("[MODULE] network key           : %s", s.security.KeyString())
	switch s.security.AuthScheme {
	case AuthSchemeNone:
		log.Infof("[MODULE] authorisation scheme  : none")
	case AuthSchemeRadiusPAP:
		log.Infof("[MODULE] authorisation scheme  : RADIUS server at %s using PAP",
			net6String(s.security.RadiusServer))
	}
	s.write(MsgSecurity, s.security.encode())
}

// SendProfile selects the network profile; firmware 1.1.0 and up only.
func (s *Session) SendProfile() {
	if s.version < versionPing {
		return
	}
	log.Debugf("[MODULE] writing: set network profile (%d)", s.profile)
	s.write(MsgProfile, []byte{s.profile})
}

// SendFrontEndConfig configures the radio front end and, if requested,
// antenna diversity; firmware 1.4.0 and up only.
func (s *Session) SendFrontEndConfig() {
	if s.version < versionFrontEnd {
		return
	}
	log.Debugf("[MODULE] writing: set front end (%d)", s.frontEnd)
	s.write(MsgSetRadioFrontEnd, []byte{uint8(s.frontEnd)})
	if s.diversity {
		log.Debugf("[MODULE] writing: enabling antenna diversity")
		s.write(MsgEnableDiversity, nil)
	}
}

// SendRun starts the wireless network in the configured mode.
func (s *Session) SendRun() {
	switch s.mode {
	case ModeCoordinator:
		log.Debugf("[MODULE] writing: run coordinator")
		s.write(MsgRunCoordinator, nil)
	case ModeRouter:
		log.Debugf("[MODULE] writing: run router")
		s.write(MsgRunRouter, nil)
	case ModeCommissioning:
		log.Debugf("[MODULE] writing: run commissioning")
		s.write(MsgRunCommissioning, nil)
	default:
		log.Errorf("[MODULE] unknown module mode: %d", s.mode)
	}
}

// SendReset resets the module.
func (s *Session) SendReset() {
	log.Debugf("[MODULE] writing: reset")
	s.write(MsgReset, nil)
}

// SendAddrRequest queries the module's IPv6 address.
func (s *Session) SendAddrRequest() {
	log.Debugf("[MODULE] writing: get address")
	s.addressKnown = false
	s.write(MsgAddr, nil)
}

// SendConfigRequest asks the module for its current network
// configuration; it ignores the request until its network is up.
func (s *Session) SendConfigRequest() {
	log.Debugf("[MODULE] writing: get config")
	s.write(MsgConfigRequest, nil)
}

// SendActivityLED assigns the DIO toggled as an activity LED;
// firmware 1.3.0 and up only.
func (s *Session) SendActivityLED() {
	if s.activityLED == ActivityLEDNone {
		return
	}
	log.Debugf("[MODULE] writing: activity LED: %d", uint8(s.activityLED))
	s.write(MsgActivityLED, []byte{uint8(s.activityLED)})
}

// SendIPv6 forwards one IPv6 datagram from the kernel to the module.
func (s *Session) SendIPv6(pkt []byte) {
	s.write(MsgIPv6, pkt)
}

// SendPing emits a liveness probe.
func (s *Session) SendPing() {
	log.Debugf("[MODULE] ping")
	s.write(MsgPing, nil)
}
