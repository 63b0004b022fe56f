package main

import (
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/openlowpan/lowpan-service/pkg/announce"
	"github.com/openlowpan/lowpan-service/pkg/frame"
	"github.com/openlowpan/lowpan-service/pkg/module"
	"github.com/openlowpan/lowpan-service/pkg/serial"
	"github.com/openlowpan/lowpan-service/pkg/service"
	"github.com/openlowpan/lowpan-service/pkg/status"
	"github.com/openlowpan/lowpan-service/pkg/tun"
)

// Configuration flags
var (
	serialDevice = flag.String("serial", "", "Serial device for the 15.4 module, e.g. /dev/ttyUSB0")
	baudRate     = flag.Int("baud", 1000000, "Baud rate to communicate with the border router node at")
	ifaceName    = flag.String("interface", "tun0", "Interface name to create")
	configFile   = flag.String("config", "", "INI file supplying defaults for these options")
	verbosity    = flag.String("verbosity", "info", "Log verbosity (error, warning, info, debug or a syslog level number)")
	useSyslog    = flag.Bool("syslog", false, "Log to syslog instead of stderr")
	resetOnExit  = flag.Bool("reset", false, "Reset the coordinator node on exit")
	configNotify = flag.String("confignotify", "", "Program to run when the configuration of the 6LoWPAN network is known")

	// Module options
	frontEnd    = flag.String("frontend", "SP", "Radio front end fitted (SP=standard power, HP=high power, ETSI=ETSI compliant mode)")
	diversity   = flag.Bool("diversity", false, "Turn on antenna diversity")
	activityLED = flag.Int("activityled", -1, "DIO to toggle as an activity LED on the border router")

	// 6LoWPAN network options
	stackMode = flag.String("mode", "coordinator", "802.15.4 stack mode (coordinator, router, commissioning)")
	region    = flag.Int("region", 0, "802.15.4 region (0-Europe, 1-USA, 2-Japan)")
	channel   = flag.Int("channel", module.ChannelAutomatic, "802.15.4 channel to run on, 0 to autoselect")
	panID     = flag.Int("pan", 0xFFFF, "802.15.4 PAN ID to use, 0xFFFF to autoselect")
	networkID = flag.Uint64("network", 0x11121112, "Network ID used to keep networks separate")
	profile   = flag.Int("profile", 0, "Network profile to use")
	prefix    = flag.String("prefix", "fd04:bd3:80e8:2::", "IPv6 prefix to use")

	// Network security options
	networkKey = flag.String("key", "", "Enable network security, using the given network key (specified like an IPv6 address)")
	authScheme = flag.Int("authscheme", 0, "Authorisation scheme (0 = disabled, 1 = RADIUS with PAP)")
	radiusIP   = flag.String("radiusip", "", "IPv6 address of the RADIUS server")

	// Integrations
	redisAddr   = flag.String("redis-addr", "", "Publish runtime status to this Redis server")
	redisPass   = flag.String("redis-pass", "", "Redis password")
	redisDB     = flag.Int("redis-db", 0, "Redis database number")
	useZeroconf = flag.Bool("zeroconf", false, "Announce the learned module address over mDNS")
)

func main() {
	flag.Parse()

	if *configFile != "" {
		if err := applyConfigFile(*configFile); err != nil {
			log.Fatalf("Failed to load config file: %v", err)
		}
	}

	setupLogging(*verbosity, *useSyslog)

	if *serialDevice == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := buildModuleConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Infof("Starting 6LoWPAN border router daemon")
	log.Infof("Serial device: %s", *serialDevice)
	log.Infof("Baud rate: %d", *baudRate)
	log.Infof("Interface: %s", *ifaceName)

	port, err := serial.Open(*serialDevice, *baudRate)
	if err != nil {
		log.Fatalf("Failed to open serial device: %v", err)
	}
	defer port.Close()

	tunDev, err := tun.Open(*ifaceName)
	if err != nil {
		log.Fatalf("Failed to create tun device: %v", err)
	}
	defer tunDev.Close()
	cfg.Interface = tunDev.Name()

	if *redisAddr != "" {
		publisher, err := status.New(*redisAddr, *redisPass, *redisDB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer publisher.Close()
		cfg.Status = publisher
		log.Infof("Publishing status to Redis at %s", *redisAddr)
	}

	if *useZeroconf {
		announcer := announce.New(tunDev.Name())
		defer announcer.Shutdown()
		cfg.OnAddress = func(addr net.IP) {
			announcer.Announce(addr)
		}
	}

	session := module.New(cfg, frame.NewWriter(port), tunDev)
	svc := service.New(session, port, tunDev, *resetOnExit)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Infof("Received %v, shutting down", sig)
		svc.Stop()
	}()

	// Run returns nil on a requested stop; a dead link has already
	// been logged and, like the requested stop, ends the daemon.
	_ = svc.Run()

	log.Infof("Daemon process exiting")
}
