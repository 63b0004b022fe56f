package module

import (
	log "github.com/sirupsen/logrus"
)

// Tick runs one iteration of the bring-up state machine. It is called
// after every batch of received frames (timeout=false) and once per
// second when the link is idle (timeout=true). It returns
// ErrCommsFailed once the silence watchdog fires.
func (s *Session) Tick(timeout bool) error {
	s.runStage(timeout)

	// Once the module has told us it can ping, silence means the link
	// is dead.
	if s.versionKnown && s.supportsPing {
		if silence := s.now().Sub(s.lastRx); silence > commsTimeout {
			log.Errorf("[MODULE] node not responding (last comms %d seconds ago)",
				int(silence.Seconds()))
			return ErrCommsFailed
		}
	}
	return nil
}

func (s *Session) setStage(stage Stage) {
	log.Infof("[MODULE] stage %s -> %s", s.stage, stage)
	s.stage = stage
	s.retries = 0
	if s.status != nil {
		s.status.PublishStage(stage.String())
	}
}

func (s *Session) runStage(timeout bool) {
	switch s.stage {
	case StageDetermineVersion:
		if !s.versionKnown {
			if s.retries > 0 {
				log.Debugf("[MODULE] timeout waiting for version")
			}
			s.retries++
			if s.retries < maxVersionRetries {
				log.Debugf("[MODULE] requesting version")
				s.SendVersionRequest()
			} else {
				// The peer may be an older firmware that never
				// answers; configure it blind.
				s.setStage(StageConfigureNetwork)
			}
			return
		}
		s.setStage(StageConfigureNetwork)
		s.runStage(timeout)

	case StageConfigureNetwork:
		s.SendConfig()
		s.setStage(StageConfigureSecurity)

	case StageConfigureSecurity:
		if s.secure {
			s.SendSecurityConfig()
		}
		if s.version >= versionPing {
			s.setStage(StageConfigureProfile)
		} else {
			s.setStage(StageStartModule)
		}

	case StageConfigureProfile:
		s.SendProfile()
		s.setStage(StageStartModule)

	case StageStartModule:
		s.SendRun()
		switch {
		case s.version >= versionFrontEnd:
			s.setStage(StageConfigureFrontEnd)
		case s.version >= versionPing:
			// From 1.1.0 the module can report its configuration;
			// it ignores the requests until its network is up.
			s.setStage(StageDetermineConfiguration)
		default:
			s.addressKnown = false
			s.setStage(StageDetermineAddress)
		}

	case StageConfigureFrontEnd:
		s.SendFrontEndConfig()
		s.setStage(StageDetermineConfiguration)

	case StageDetermineConfiguration:
		if !s.configKnown {
			// Keep requesting until the module responds.
			log.Debugf("[MODULE] requesting configuration")
			s.SendConfigRequest()
			return
		}
		s.addressKnown = false
		s.setStage(StageDetermineAddress)
		s.runStage(timeout)

	case StageDetermineAddress:
		if !s.addressKnown {
			if timeout {
				if s.retries > 0 {
					log.Debugf("[MODULE] timeout waiting for address")
				}
				s.retries++
				if s.retries < maxAddressRetries {
					log.Debugf("[MODULE] requesting module address")
					s.SendAddrRequest()
				} else {
					log.Errorf("[MODULE] cannot determine module address")
					s.SendReset()
					s.reset()
				}
			}
			return
		}
		s.setStage(StageActivityLED)
		s.runStage(timeout)

	case StageActivityLED:
		if s.version >= versionLED {
			s.SendActivityLED()
		}
		s.setStage(StageRunning)

	case StageRunning:
		s.maintainPing()
	}
}

// maintainPing emits a liveness probe every pingInterval while the
// module supports it; incoming pings only refresh lastRx.
func (s *Session) maintainPing() {
	if !s.supportsPing {
		return
	}
	if s.now().Sub(s.lastPing) > pingInterval {
		s.SendPing()
		s.lastPing = s.now()
	}
}
