// Package network is the node's view of its network layer.
//
// It provides the connectivity.Probe and connectivity.Reassociator
// implementations used by the supervisor, plus the device facts (address,
// hardware address, signal level) reported in the node state document.
//
// The node does not manage the link itself. Association, DHCP and static
// addressing belong to the operating system; reassociation and recovery are
// delegated to configured commands run with a timeout.
package network
