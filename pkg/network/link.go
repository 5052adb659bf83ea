// Package network reports the state of the uplink the agent is served on.
package network

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
)

// LinkStatus is a point-in-time view of the uplink.
type LinkStatus struct {
	Connected bool
	Address   string
	// SignalDBm is the received signal strength; 0 when unknown or wired.
	SignalDBm int
}

// Link is a network status source.
type Link interface {
	Status() LinkStatus
}

// StaticLink always reports the same status.
type StaticLink LinkStatus

func (l StaticLink) Status() LinkStatus {
	return LinkStatus(l)
}

// AddressFallback fills in the address from another source when the
// wrapped link has none, for example when the agent runs in a container
// that cannot see the uplink interface.
type AddressFallback struct {
	Link    Link
	Address func() string
}

func (f AddressFallback) Status() LinkStatus {
	st := f.Link.Status()
	if st.Address != "" || f.Address == nil {
		return st
	}
	if addr := f.Address(); addr != "" {
		st.Address = addr
		st.Connected = true
	}
	return st
}

// InterfaceLink reads link state from the kernel for one interface.
type InterfaceLink struct {
	Name string
	// WirelessPath defaults to /proc/net/wireless.
	WirelessPath string
}

func NewInterfaceLink(name string) *InterfaceLink {
	return &InterfaceLink{Name: name, WirelessPath: "/proc/net/wireless"}
}

func (l *InterfaceLink) Status() LinkStatus {
	iface, err := net.InterfaceByName(l.Name)
	if err != nil {
		return LinkStatus{}
	}

	st := LinkStatus{Connected: iface.Flags&net.FlagUp != 0 && iface.Flags&net.FlagRunning != 0}
	if addrs, err := iface.Addrs(); err == nil {
		st.Address = firstIPv4(addrs)
	}
	if st.Address == "" {
		st.Connected = false
	}

	if f, err := os.Open(l.WirelessPath); err == nil {
		if dbm, ok := parseWireless(f, l.Name); ok {
			st.SignalDBm = dbm
		}
		f.Close()
	}
	return st
}

func firstIPv4(addrs []net.Addr) string {
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok {
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				return ip4.String()
			}
		}
	}
	return ""
}

// parseWireless extracts the signal level for iface from /proc/net/wireless:
//
//	Inter-| sta-|   Quality        |   Discarded packets
//	 face | tus | link level noise |  nwid  crypt ...
//	 wlan0: 0000   52.  -58.  -256        0      0 ...
func parseWireless(r io.Reader, iface string) (int, bool) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		name, rest, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(name) != iface {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) < 3 {
			return 0, false
		}
		level, err := strconv.ParseFloat(strings.TrimSuffix(fields[2], "."), 64)
		if err != nil {
			return 0, false
		}
		return int(level), true
	}
	return 0, false
}

// DetectInterface picks the first non-loopback interface that is up and
// has an IPv4 address, preferring wireless ones.
func DetectInterface() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("failed to list interfaces: %w", err)
	}
	var fallback string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil || firstIPv4(addrs) == "" {
			continue
		}
		if strings.HasPrefix(iface.Name, "wl") {
			return iface.Name, nil
		}
		if fallback == "" {
			fallback = iface.Name
		}
	}
	if fallback == "" {
		return "", fmt.Errorf("no connected interface found")
	}
	return fallback, nil
}
