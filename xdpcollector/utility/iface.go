// xdpcollector/utility/iface.go
package utility

import (
	"slices"
	"strings"

	"xdpstats/config"

	psnet "github.com/shirou/gopsutil/v3/net"
	log "github.com/sirupsen/logrus"
)

// FallbackInterface is attached to when no interface was given.
const FallbackInterface = "eth0"

// ParseInterfaces splits a comma separated interface list, trimming
// whitespace and dropping empty entries.
func ParseInterfaces(s string) []string {
	return config.SplitInterfaces(s)
}

// ResolveInterfaces returns the interfaces named in value when explicit is
// set. Otherwise it warns and falls back to FallbackInterface, listing
// candidates when the host has no interface by that name.
func ResolveInterfaces(value string, explicit bool) []string {
	if explicit {
		if ifaces := ParseInterfaces(value); len(ifaces) > 0 {
			return ifaces
		}
	}
	log.Warnf("no interface given, defaulting to %s", FallbackInterface)
	if ifaces, err := psnet.Interfaces(); err == nil {
		if present, names := fallbackCandidates(ifaces); !present {
			log.Warnf("%s not found on this host, candidates: %s", FallbackInterface, strings.Join(names, ", "))
		}
	}
	return []string{FallbackInterface}
}

// fallbackCandidates reports whether FallbackInterface is among ifaces and
// lists the interfaces that are up and not a loopback.
func fallbackCandidates(ifaces psnet.InterfaceStatList) (present bool, names []string) {
	for _, iface := range ifaces {
		if iface.Name == FallbackInterface {
			present = true
		}
		if slices.Contains(iface.Flags, "up") && !slices.Contains(iface.Flags, "loopback") {
			names = append(names, iface.Name)
		}
	}
	return present, names
}
