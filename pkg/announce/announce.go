// Package announce advertises the border router on the local network
// over mDNS once its address is known.
package announce

import (
	"fmt"
	"net"

	"github.com/grandcat/zeroconf"
	log "github.com/sirupsen/logrus"
)

const (
	serviceType = "_jip._udp"
	domain      = "local."
	servicePort = 1873
)

// Announcer publishes one service record per learned address; a new
// announcement replaces the previous one.
type Announcer struct {
	iface  string
	server *zeroconf.Server
}

// New creates an announcer for the named tun interface.
func New(iface string) *Announcer {
	return &Announcer{iface: iface}
}

// Announce registers the border router service carrying addr. Name
// collisions are renamed by the mDNS library; failures are logged and
// otherwise ignored, announcement is not load bearing.
func (a *Announcer) Announce(addr net.IP) {
	a.Shutdown()

	instance := fmt.Sprintf("BR_%s", a.iface)
	txt := []string{fmt.Sprintf("address=%s", addr)}

	server, err := zeroconf.Register(instance, serviceType, domain, servicePort, txt, nil)
	if err != nil {
		log.Warnf("[ANNOUNCE] failed to register service '%s': %v", instance, err)
		return
	}
	log.Infof("[ANNOUNCE] service '%s' registered with address %s", instance, addr)
	a.server = server
}

// Shutdown withdraws the current announcement, if any.
func (a *Announcer) Shutdown() {
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}
