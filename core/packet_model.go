package core

import (
	"sync"

	"github.com/iti/rngstream"
)

// PacketModel draws the per-sequence loss decision and round-trip
// time for simulated ICMP exchanges. Every source device gets its own
// random stream, created on first use, so one device's traffic never
// perturbs another device's draws.
//
// For each sequence the model draws loss first and RTT second, and
// the RTT is drawn even for lost packets so a device's stream
// advances identically regardless of outcomes.
type PacketModel struct {
	// LossProbability is the chance a single packet is dropped.
	LossProbability float64

	// RTTMinMs and RTTMaxMs bound the uniform round-trip time draw,
	// in milliseconds.
	RTTMinMs float64
	RTTMaxMs float64

	mu      sync.Mutex
	streams map[string]*rngstream.RngStream
}

// NewPacketModel returns a model with the standard behavior: 1%
// packet loss and round-trip times uniform in [0.1, 2.0] ms.
func NewPacketModel() *PacketModel {
	return &PacketModel{
		LossProbability: 0.01,
		RTTMinMs:        0.1,
		RTTMaxMs:        2.0,
		streams:         make(map[string]*rngstream.RngStream),
	}
}

// Sample draws the outcome of one ICMP sequence sent by deviceID.
// rttMs is meaningful only when lost is false.
func (pm *PacketModel) Sample(deviceID string) (lost bool, rttMs float64) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	rng := pm.streams[deviceID]
	if rng == nil {
		rng = rngstream.New(deviceID)
		pm.streams[deviceID] = rng
	}

	lost = rng.RandU01() < pm.LossProbability
	rttMs = pm.RTTMinMs + (pm.RTTMaxMs-pm.RTTMinMs)*rng.RandU01()
	return lost, rttMs
}
