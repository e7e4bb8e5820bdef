package core

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrAddressUnresolved reports that no interface in the topology owns
// the requested IP, so no hardware address can be synthesized.
// Failed resolutions are not memoized: the topology cannot change
// mid-run, so every attempt for an unreachable IP fails independently.
var ErrAddressUnresolved = errors.New("address resolution failed")

// ARPEntry is one resolved IP-to-hardware mapping scoped to the
// requesting device. Entries are created lazily on first resolution
// and persist for the remainder of the run; there is no expiry.
type ARPEntry struct {
	IP        string
	MAC       string
	Timestamp time.Time
	Complete  bool
}

// ARPOutcome classifies one resolution attempt for observers.
type ARPOutcome string

const (
	ARPHit      ARPOutcome = "hit"
	ARPResolved ARPOutcome = "resolved"
	ARPFailed   ARPOutcome = "failed"
)

// ARPCache owns the per-device resolution tables for one simulation
// run. It is an explicit object injected into the ping engine, never
// ambient state. The RWMutex keeps entries safe should a runner ever
// simulate events in parallel; the synchronous runner never contends.
type ARPCache struct {
	mu        sync.RWMutex
	kb        *KnowledgeBase
	tables    map[string]map[string]*ARPEntry
	observers []func(deviceID, targetIP string, outcome ARPOutcome)
}

// NewARPCache creates an empty cache backed by the given topology.
func NewARPCache(kb *KnowledgeBase) *ARPCache {
	return &ARPCache{
		kb:     kb,
		tables: make(map[string]map[string]*ARPEntry),
	}
}

// Observe registers a callback invoked after every resolution
// attempt. Used for metrics wiring; must not block.
func (c *ARPCache) Observe(fn func(deviceID, targetIP string, outcome ARPOutcome)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Resolve returns the hardware address of targetIP as seen from the
// requesting device.
//
// A complete cached entry answers immediately and is left untouched,
// timestamp included. Otherwise the owner of targetIP is looked up in
// the topology; if none exists the resolution fails with
// ErrAddressUnresolved. On success a complete entry is inserted
// (modelling the request/reply round-trip) before the address is
// returned. Entries are never re-resolved after the first success.
func (c *ARPCache) Resolve(deviceID, targetIP string) (string, error) {
	c.mu.RLock()
	if entry, ok := c.tables[deviceID][targetIP]; ok && entry.Complete {
		mac := entry.MAC
		c.mu.RUnlock()
		c.notify(deviceID, targetIP, ARPHit)
		return mac, nil
	}
	c.mu.RUnlock()

	_, iface := c.kb.GetInterfaceByIP(targetIP)
	if iface == nil {
		c.notify(deviceID, targetIP, ARPFailed)
		return "", fmt.Errorf("%w: no interface owns %q", ErrAddressUnresolved, targetIP)
	}

	c.mu.Lock()
	table, ok := c.tables[deviceID]
	if !ok {
		table = make(map[string]*ARPEntry)
		c.tables[deviceID] = table
	}
	table[targetIP] = &ARPEntry{
		IP:        targetIP,
		MAC:       iface.MAC,
		Timestamp: time.Now().UTC(),
		Complete:  true,
	}
	c.mu.Unlock()

	c.notify(deviceID, targetIP, ARPResolved)
	return iface.MAC, nil
}

// Lookup returns a copy of the cached entry for (deviceID, targetIP),
// if any. It never triggers resolution.
func (c *ARPCache) Lookup(deviceID, targetIP string) (ARPEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.tables[deviceID][targetIP]
	if !ok {
		return ARPEntry{}, false
	}
	return *entry, true
}

// EntryCount returns the number of cached entries for a device.
func (c *ARPCache) EntryCount(deviceID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tables[deviceID])
}

func (c *ARPCache) notify(deviceID, targetIP string, outcome ARPOutcome) {
	c.mu.RLock()
	obs := c.observers
	c.mu.RUnlock()

	for _, fn := range obs {
		fn(deviceID, targetIP, outcome)
	}
}
