// Package ams implements AMS (Automation Message Specification) addressing and framing.
package ams

import (
	"fmt"
)

// NetID represents a 6-byte AMS NetID (e.g. 192.168.1.100.1.1).
// The bytes have no direct relation to IP addresses.
type NetID [6]byte

// String returns the dot-separated representation of the NetID.
func (n NetID) String() string {
	return fmt.Sprintf("%d.%d.%d.%d.%d.%d", n[0], n[1], n[2], n[3], n[4], n[5])
}

// IsZero reports whether the NetID is entirely unset.
func (n NetID) IsZero() bool {
	return n == NetID{}
}

// ParseNetID parses a dot-separated NetID string such as "10.0.10.20.1.1".
func ParseNetID(s string) (NetID, error) {
	var n NetID
	matched, err := fmt.Sscanf(s, "%d.%d.%d.%d.%d.%d", &n[0], &n[1], &n[2], &n[3], &n[4], &n[5])
	if err != nil || matched != 6 {
		return NetID{}, fmt.Errorf("ams: invalid NetID %q", s)
	}
	return n, nil
}

// Port represents a 2-byte AMS port identifier.
type Port uint16

// AMS ports assigned by the TwinCAT runtime.
const (
	PortRouter        Port = 1
	PortLogger        Port = 100
	PortEventLogger   Port = 110
	PortPLCRuntime1   Port = 851
	PortPLCRuntime2   Port = 852
	PortPLCRuntime3   Port = 853
	PortPLCRuntime4   Port = 854
	PortSystemService Port = 10000
)

// Addr identifies one AMS endpoint: a NetID plus a port on that device.
type Addr struct {
	NetID NetID
	Port  Port
}

// String returns "netid:port".
func (a Addr) String() string {
	return fmt.Sprintf("%s:%d", a.NetID, a.Port)
}
