package model

import "strings"

// DeviceKind tags the capability set of a device: hosts own
// IP-addressable interfaces, switches only forward.
type DeviceKind int

const (
	KindUnknown DeviceKind = iota
	KindHost
	KindSwitch
)

func (k DeviceKind) String() string {
	switch k {
	case KindHost:
		return "host"
	case KindSwitch:
		return "switch"
	default:
		return "unknown"
	}
}

// KindFromString maps a descriptor type label to a DeviceKind.
// Matching is case-insensitive and tolerant: unrecognized labels map
// to KindUnknown rather than failing, so descriptor files can carry
// vendor-specific device types without breaking the loader.
func KindFromString(s string) DeviceKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pc", "host":
		return KindHost
	case "switch":
		return KindSwitch
	default:
		return KindUnknown
	}
}

// NetworkCard describes the physical NIC of a device.
type NetworkCard struct {
	Name  string
	MAC   string
	Speed string
}

// Hardware groups the physical equipment metadata of a device.
type Hardware struct {
	NetworkCard NetworkCard
}

// Interface is a logical port on a device. Host interfaces carry the
// full addressing block (IP, mask, gateway, DNS); switch interfaces
// leave those empty and instead record the far end they patch into
// via ConnectedTo (a relation, not ownership).
type Interface struct {
	ID      string
	Name    string
	Type    string // descriptor category, e.g. "ethernet"
	MAC     string
	IP      string
	Subnet  string
	Gateway string
	DNS     []string
	Status  string

	// ConnectedTo is the fully-qualified reference of the far-end
	// interface for switch ports. Empty on host interfaces.
	ConnectedTo string
}

// Device is a node in the simulated topology. Constructed once at
// topology load and treated as immutable for the run.
type Device struct {
	ID         string
	Kind       DeviceKind
	Name       string
	Hardware   Hardware
	Interfaces []Interface
}

// Addressable reports whether the device owns IP-addressable
// interfaces that can be ping targets.
func (d *Device) Addressable() bool { return d.Kind == KindHost }

// Forwards reports whether the device participates in forwarding.
func (d *Device) Forwards() bool { return d.Kind == KindSwitch }

// Interface returns the named interface, or nil when the device has
// no interface with that name.
func (d *Device) Interface(name string) *Interface {
	for i := range d.Interfaces {
		if d.Interfaces[i].Name == name {
			return &d.Interfaces[i]
		}
	}
	return nil
}

// Connection is an unordered pair of fully-qualified interface
// references ("<device-id>.<interface-name>"). Its two endpoints must
// belong to different devices; topology construction rejects
// self-loops.
type Connection struct {
	From string
	To   string
}

// DeviceID extracts the device portion of a fully-qualified interface
// reference such as "pc1.eth0".
func DeviceID(ref string) string {
	dev, _, _ := strings.Cut(ref, ".")
	return dev
}

// SplitInterfaceRef splits a fully-qualified interface reference into
// its device and interface parts. ok is false when the reference has
// no separator.
func SplitInterfaceRef(ref string) (device, iface string, ok bool) {
	return strings.Cut(ref, ".")
}
