package core

import (
	"errors"
	"fmt"
	"sync"

	"github.com/signalsfoundry/lan-simulator/model"
)

var (
	ErrDeviceBadInput    = errors.New("invalid device")
	ErrDeviceNotFound    = errors.New("device not found")
	ErrInterfaceNotFound = errors.New("interface not found")
)

// TopologyError reports a structurally invalid topology at load time:
// a self-connection, a dangling reference, or a duplicate identity.
// It is fatal to simulation construction and never recoverable
// per-event.
type TopologyError struct {
	Ref    string
	Reason string
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("topology error: %s: %q", e.Reason, e.Ref)
}

// KnowledgeBase stores the simulated LAN: devices (hosts, switches)
// with their interfaces, and the undirected connection list joining
// interface endpoints. It is populated at scenario load and read-only
// for the remainder of the run.
//
// Access is guarded by an RWMutex so monitors and metrics can read
// while a loader is still populating, though the normal lifecycle is
// load-then-simulate.
type KnowledgeBase struct {
	mu sync.RWMutex

	devices     map[string]*model.Device
	deviceOrder []string
	connections []model.Connection
}

// NewKnowledgeBase creates an empty topology store.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		devices: make(map[string]*model.Device),
	}
}

//
// ---------- Devices ----------
//

// AddDevice registers a device. Duplicate device IDs and duplicate
// interface names within the device are topology errors.
func (kb *KnowledgeBase) AddDevice(d *model.Device) error {
	if d == nil || d.ID == "" {
		return fmt.Errorf("%w: nil or empty ID", ErrDeviceBadInput)
	}

	seen := make(map[string]struct{}, len(d.Interfaces))
	for i := range d.Interfaces {
		name := d.Interfaces[i].Name
		if _, dup := seen[name]; dup {
			return &TopologyError{Ref: d.ID + "." + name, Reason: "duplicate interface name"}
		}
		seen[name] = struct{}{}
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()

	if _, exists := kb.devices[d.ID]; exists {
		return &TopologyError{Ref: d.ID, Reason: "duplicate device ID"}
	}
	kb.devices[d.ID] = d
	kb.deviceOrder = append(kb.deviceOrder, d.ID)
	return nil
}

// GetDevice returns a device by ID, or nil if not found.
func (kb *KnowledgeBase) GetDevice(id string) *model.Device {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.devices[id]
}

// GetAllDevices returns all devices in insertion order.
func (kb *KnowledgeBase) GetAllDevices() []*model.Device {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	out := make([]*model.Device, 0, len(kb.deviceOrder))
	for _, id := range kb.deviceOrder {
		out = append(out, kb.devices[id])
	}
	return out
}

//
// ---------- Connections ----------
//

// AddConnection validates and appends a connection. Both endpoints
// must resolve to a known device/interface pair and the endpoints
// must belong to two different devices; violations are topology
// errors surfaced before any simulation starts.
func (kb *KnowledgeBase) AddConnection(c model.Connection) error {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	fromDev, err := kb.resolveEndpointLocked(c.From)
	if err != nil {
		return err
	}
	toDev, err := kb.resolveEndpointLocked(c.To)
	if err != nil {
		return err
	}
	if fromDev == toDev {
		return &TopologyError{
			Ref:    c.From + " <-> " + c.To,
			Reason: "self-connection",
		}
	}

	kb.connections = append(kb.connections, c)
	return nil
}

// GetConnections returns a copy of the validated connection list in
// descriptor order. Order matters: the path resolver's first-match
// walk is defined over it.
func (kb *KnowledgeBase) GetConnections() []model.Connection {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	out := make([]model.Connection, len(kb.connections))
	copy(out, kb.connections)
	return out
}

// resolveEndpointLocked maps a fully-qualified interface reference to
// its owning device ID. Caller must hold kb.mu.
func (kb *KnowledgeBase) resolveEndpointLocked(ref string) (string, error) {
	devID, ifName, ok := model.SplitInterfaceRef(ref)
	if !ok || devID == "" || ifName == "" {
		return "", &TopologyError{Ref: ref, Reason: "malformed interface reference"}
	}
	dev, exists := kb.devices[devID]
	if !exists {
		return "", &TopologyError{Ref: ref, Reason: "connection references unknown device"}
	}
	if dev.Interface(ifName) == nil {
		return "", &TopologyError{Ref: ref, Reason: "connection references unknown interface"}
	}
	return devID, nil
}

//
// ---------- Lookups ----------
//

// GetInterfaceByIP finds the host device and interface owning an IP
// address. The scan is linear over host interfaces in device
// insertion order; switch ports carry no addresses and are never
// resolution targets. Returns (nil, nil) when no interface owns the
// address.
func (kb *KnowledgeBase) GetInterfaceByIP(ip string) (*model.Device, *model.Interface) {
	if ip == "" {
		return nil, nil
	}

	kb.mu.RLock()
	defer kb.mu.RUnlock()

	for _, id := range kb.deviceOrder {
		dev := kb.devices[id]
		if !dev.Addressable() {
			continue
		}
		for i := range dev.Interfaces {
			if dev.Interfaces[i].IP == ip {
				return dev, &dev.Interfaces[i]
			}
		}
	}
	return nil, nil
}

// GetInterfaceByRef resolves a fully-qualified reference like
// "pc1.eth0" to its device and interface.
func (kb *KnowledgeBase) GetInterfaceByRef(ref string) (*model.Device, *model.Interface, error) {
	devID, ifName, ok := model.SplitInterfaceRef(ref)
	if !ok {
		return nil, nil, fmt.Errorf("%w: malformed reference %q", ErrInterfaceNotFound, ref)
	}

	kb.mu.RLock()
	defer kb.mu.RUnlock()

	dev, exists := kb.devices[devID]
	if !exists {
		return nil, nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, devID)
	}
	iface := dev.Interface(ifName)
	if iface == nil {
		return nil, nil, fmt.Errorf("%w: %q", ErrInterfaceNotFound, ref)
	}
	return dev, iface, nil
}

// DeviceCount returns the number of registered devices.
func (kb *KnowledgeBase) DeviceCount() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.devices)
}

// ConnectionCount returns the number of validated connections.
func (kb *KnowledgeBase) ConnectionCount() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.connections)
}
