package network

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
)

// wirelessPath is the Linux wireless statistics file.
const wirelessPath = "/proc/net/wireless"

// DeviceInfo is the network part of the node state document.
type DeviceInfo struct {
	IP        string
	MAC       string
	Signal    int // dBm, valid only when HasSignal
	HasSignal bool
}

// Info collects the device facts for the probe's interface. Missing facts
// are left empty.
func (p *InterfaceProbe) Info() DeviceInfo {
	var info DeviceInfo

	ifc, ok := p.Lookup()
	if !ok {
		return info
	}
	if ip := ifc.PrimaryIP(); ip != nil {
		info.IP = ip.String()
	}
	info.MAC = ifc.HardwareAddr

	f, err := os.Open(wirelessPath)
	if err != nil {
		return info
	}
	defer f.Close()

	info.Signal, info.HasSignal = parseWirelessSignal(f, ifc.Name)
	return info
}

// Quality maps the signal level to a 0-100 link quality: -100 dBm or
// weaker is 0, -50 dBm or stronger is 100. It returns -1 without a signal.
func (d DeviceInfo) Quality() int {
	switch {
	case !d.HasSignal:
		return -1
	case d.Signal <= -100:
		return 0
	case d.Signal >= -50:
		return 100
	default:
		return 2 * (d.Signal + 100)
	}
}

// parseWirelessSignal reads the signal level of iface from
// /proc/net/wireless content:
//
//	Inter-| sta-|   Quality        |   Discarded packets
//	 face | tus | link level noise |  nwid  crypt   frag
//	wlan0: 0000   54.  -56.  -256        0      0      0
func parseWirelessSignal(r io.Reader, iface string) (int, bool) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		name, rest, found := strings.Cut(scanner.Text(), ":")
		if !found || strings.TrimSpace(name) != iface {
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
