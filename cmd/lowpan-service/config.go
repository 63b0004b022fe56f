package main

import (
	"flag"
	"fmt"
	"log/syslog"
	"net"
	"os"
	"os/exec"
	"strings"

	log "github.com/sirupsen/logrus"
	lSyslog "github.com/sirupsen/logrus/hooks/syslog"
	"gopkg.in/ini.v1"

	"github.com/openlowpan/lowpan-service/pkg/module"
)

// Config file sections for each flag; flags given on the command line
// always win over the file.
var configSections = map[string]string{
	"serial":       "daemon",
	"baud":         "daemon",
	"interface":    "daemon",
	"verbosity":    "daemon",
	"syslog":       "daemon",
	"reset":        "daemon",
	"confignotify": "daemon",
	"redis-addr":   "daemon",
	"redis-pass":   "daemon",
	"redis-db":     "daemon",
	"zeroconf":     "daemon",

	"mode":    "network",
	"region":  "network",
	"channel": "network",
	"pan":     "network",
	"network": "network",
	"profile": "network",
	"prefix":  "network",

	"key":        "security",
	"authscheme": "security",
	"radiusip":   "security",

	"frontend":    "radio",
	"diversity":   "radio",
	"activityled": "radio",
}

// applyConfigFile fills in every flag the user did not set from the
// INI file.
func applyConfigFile(path string) error {
	file, err := ini.Load(path)
	if err != nil {
		return err
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var applyErr error
	flag.VisitAll(func(f *flag.Flag) {
		if applyErr != nil || set[f.Name] {
			return
		}
		section, ok := configSections[f.Name]
		if !ok || !file.Section(section).HasKey(f.Name) {
			return
		}
		value := file.Section(section).Key(f.Name).String()
		if err := f.Value.Set(value); err != nil {
			applyErr = fmt.Errorf("%s: [%s] %s: %w", path, section, f.Name, err)
		}
	})
	return applyErr
}

func setupLogging(verbosity string, toSyslog bool) {
	switch strings.ToLower(verbosity) {
	case "0", "1", "2", "3", "err", "error":
		log.SetLevel(log.ErrorLevel)
	case "4", "warn", "warning":
		log.SetLevel(log.WarnLevel)
	case "5", "6", "notice", "info":
		log.SetLevel(log.InfoLevel)
	case "7", "debug":
		log.SetLevel(log.DebugLevel)
	default:
		log.Fatalf("Unknown verbosity %q", verbosity)
	}

	if toSyslog {
		hook, err := lSyslog.NewSyslogHook("", "", syslog.LOG_INFO|syslog.LOG_DAEMON, "lowpan-service")
		if err != nil {
			log.Fatalf("Failed to connect to syslog: %v", err)
		}
		log.AddHook(hook)
	}
}

func parseMode(s string) (module.Mode, error) {
	switch s {
	case "coordinator":
		return module.ModeCoordinator, nil
	case "router":
		return module.ModeRouter, nil
	case "commissioning":
		return module.ModeCommissioning, nil
	}
	return 0, fmt.Errorf("unknown mode %q (supported: coordinator, router, commissioning)", s)
}

func parseFrontEnd(s string) (module.FrontEnd, error) {
	switch s {
	case "SP":
		return module.FrontEndStandardPower, nil
	case "HP":
		return module.FrontEndHighPower, nil
	case "ETSI":
		return module.FrontEndETSI, nil
	}
	return 0, fmt.Errorf("unknown front end %q (supported: SP, HP, ETSI)", s)
}

// parseIPv6 parses s as an IPv6 address; the network key and the
// prefix are both written this way.
func parseIPv6(s, what string) (net.IP, error) {
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() != nil {
		return nil, fmt.Errorf("could not parse %s %q as an IPv6 address", what, s)
	}
	return ip.To16(), nil
}

func buildModuleConfig() (module.Config, error) {
	cfg := module.Config{ActivityLED: module.ActivityLEDNone}

	mode, err := parseMode(*stackMode)
	if err != nil {
		return cfg, err
	}
	cfg.Mode = mode

	if *region < 0 || *region > int(module.RegionJapan) {
		return cfg, fmt.Errorf("invalid region %d", *region)
	}
	if *channel != module.ChannelAutomatic &&
		(*channel < module.ChannelMinimum || *channel > module.ChannelMaximum) {
		return cfg, fmt.Errorf("invalid channel %d", *channel)
	}
	if *panID < 0 || *panID > 0xFFFF {
		return cfg, fmt.Errorf("invalid PAN ID %d", *panID)
	}
	if *networkID > 0xFFFFFFFF {
		return cfg, fmt.Errorf("invalid network ID %d", *networkID)
	}
	if *profile < 0 || *profile > 0xFF {
		return cfg, fmt.Errorf("invalid network profile %d", *profile)
	}

	prefixIP, err := parseIPv6(*prefix, "prefix")
	if err != nil {
		return cfg, err
	}

	cfg.Network = module.NetworkConfig{
		Region:    module.Region(*region),
		Channel:   uint8(*channel),
		PanID:     uint16(*panID),
		NetworkID: uint32(*networkID),
		Prefix:    prefixUint64(prefixIP),
	}
	cfg.Profile = uint8(*profile)

	if *networkKey != "" {
		keyIP, err := parseIPv6(*networkKey, "network key")
		if err != nil {
			return cfg, err
		}
		cfg.Secure = true
		copy(cfg.Security.Key[:], keyIP)

		switch *authScheme {
		case int(module.AuthSchemeNone):
			cfg.Security.AuthScheme = module.AuthSchemeNone
		case int(module.AuthSchemeRadiusPAP):
			cfg.Security.AuthScheme = module.AuthSchemeRadiusPAP
			if *radiusIP == "" {
				return cfg, fmt.Errorf("authorisation scheme %d requires -radiusip", *authScheme)
			}
			serverIP, err := parseIPv6(*radiusIP, "RADIUS server")
			if err != nil {
				return cfg, err
			}
			copy(cfg.Security.RadiusServer[:], serverIP)
		default:
			return cfg, fmt.Errorf("unknown authorisation scheme %d", *authScheme)
		}
	}

	fe, err := parseFrontEnd(*frontEnd)
	if err != nil {
		return cfg, err
	}
	cfg.FrontEnd = fe
	cfg.AntennaDiversity = *diversity

	if *activityLED >= 0 {
		if *activityLED > 0xFF {
			return cfg, fmt.Errorf("invalid activity LED DIO %d", *activityLED)
		}
		cfg.ActivityLED = uint32(*activityLED)
	}

	if *configNotify != "" {
		info, err := os.Stat(*configNotify)
		if err != nil {
			return cfg, fmt.Errorf("config notification program: %w", err)
		}
		if info.IsDir() || info.Mode()&0o111 == 0 {
			return cfg, fmt.Errorf("config notification program %q is not executable", *configNotify)
		}
		cfg.OnConfigChanged = configNotifyHook(*configNotify)
	}

	return cfg, nil
}

func prefixUint64(ip net.IP) uint64 {
	var v uint64
	for _, b := range ip[:8] {
		v = v<<8 | uint64(b)
	}
	return v
}

// configNotifyHook runs the notification program with the new network
// parameters as explicit arguments; no shell is involved.
func configNotifyHook(prog string) func(module.ConfigSnapshot) {
	return func(snap module.ConfigSnapshot) {
		args := []string{
			fmt.Sprintf("--channel=%d", snap.Channel),
			fmt.Sprintf("--pan=0x%04x", snap.PanID),
			fmt.Sprintf("--network=0x%08x", snap.NetworkID),
			fmt.Sprintf("--prefix=%s", snap.Prefix),
		}
		if snap.Secure {
			args = append(args, fmt.Sprintf("--key=%s", snap.Key))
		}

		log.Debugf("Running configuration notification: %s %s", prog, strings.Join(args, " "))
		out, err := exec.Command(prog, args...).CombinedOutput()
		if err != nil {
			log.Errorf("Configuration notification program failed: %v (%s)", err, strings.TrimSpace(string(out)))
			return
		}
		log.Infof("Configuration notification program run successfully")
	}
}
