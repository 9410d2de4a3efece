package network

import (
	"fmt"
	"net"
)

// Interface is a snapshot of one network interface.
type Interface struct {
	Name         string
	Up           bool
	Loopback     bool
	HardwareAddr string
	Addrs        []net.IP
}

// usable reports whether the interface is up with a routable address.
func (i Interface) usable() bool {
	if !i.Up || i.Loopback {
		return false
	}
	return i.PrimaryIP() != nil
}

// PrimaryIP returns the first global unicast address, preferring IPv4.
func (i Interface) PrimaryIP() net.IP {
	var v6 net.IP
	for _, ip := range i.Addrs {
		if !ip.IsGlobalUnicast() {
			continue
		}
		if ip.To4() != nil {
			return ip
		}
		if v6 == nil {
			v6 = ip
		}
	}
	return v6
}

// lister returns the host's interfaces.
type lister func() ([]Interface, error)

// SystemInterfaces reads the interfaces from the operating system.
func SystemInterfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("listing interfaces: %w", err)
	}

	out := make([]Interface, 0, len(ifaces))
	for _, ifc := range ifaces {
		info := Interface{
			Name:         ifc.Name,
			Up:           ifc.Flags&net.FlagUp != 0,
			Loopback:     ifc.Flags&net.FlagLoopback != 0,
			HardwareAddr: ifc.HardwareAddr.String(),
		}
		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok {
				info.Addrs = append(info.Addrs, ipnet.IP)
			}
		}
		out = append(out, info)
	}
	return out, nil
}

// InterfaceProbe reports the network layer up when the watched interface
// is up and holds a routable address. With no name set, any non-loopback
// interface counts.
type InterfaceProbe struct {
	name string
	list lister
}

// NewInterfaceProbe creates a probe watching the named interface.
func NewInterfaceProbe(name string) *InterfaceProbe {
	return &InterfaceProbe{name: name, list: SystemInterfaces}
}

// IsUp implements connectivity.Probe. Listing errors count as down.
func (p *InterfaceProbe) IsUp() bool {
	ifc, ok := p.Lookup()
	return ok && ifc.usable()
}

// Lookup returns the watched interface, or the first usable one when no
// name is configured.
func (p *InterfaceProbe) Lookup() (Interface, bool) {
	ifaces, err := p.list()
	if err != nil {
		return Interface{}, false
	}
	for _, ifc := range ifaces {
		if p.name != "" {
			if ifc.Name == p.name {
				return ifc, true
			}
			continue
		}
		if ifc.usable() {
			return ifc, true
		}
	}
	return Interface{}, false
}
