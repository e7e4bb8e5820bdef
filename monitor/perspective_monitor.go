package monitor

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/signalsfoundry/lan-simulator/core"
	"github.com/signalsfoundry/lan-simulator/model"
)

// PerspectiveMonitor narrates a result batch as seen from one device:
// a capture-style view of only the traffic that device would observe.
// A switch observes every packet whose path traverses it; a host
// observes packets it sources or receives. Ownership is decided by the
// topology, never by parsing identifiers.
type PerspectiveMonitor struct {
	KB *core.KnowledgeBase

	// SwitchLatency models per-switch forwarding delay along the path.
	SwitchLatency time.Duration

	// PropagationDelay models per-cable signal travel time.
	PropagationDelay time.Duration

	// ProcessingDelay models host-side packet handling.
	ProcessingDelay time.Duration

	deviceID  string
	ifaceName string
	out       io.Writer
	pacer     Pacer
	start     time.Time
}

// NewPerspectiveMonitor constructs a monitor capturing from deviceID.
// ifaceName is informational and may be empty. The pacer may be nil,
// in which case no delays are simulated.
func NewPerspectiveMonitor(kb *core.KnowledgeBase, deviceID, ifaceName string, out io.Writer, pacer Pacer) *PerspectiveMonitor {
	return &PerspectiveMonitor{
		KB:               kb,
		SwitchLatency:    200 * time.Microsecond,
		PropagationDelay: 500 * time.Microsecond,
		ProcessingDelay:  time.Millisecond,
		deviceID:         deviceID,
		ifaceName:        ifaceName,
		out:              out,
		pacer:            pacer,
		start:            time.Now(),
	}
}

// DeviceID returns the monitored device's id.
func (m *PerspectiveMonitor) DeviceID() string { return m.deviceID }

// Replay narrates every result in order from the monitored device's
// perspective. It stops early and returns the context's error when the
// context is canceled mid-replay.
func (m *PerspectiveMonitor) Replay(ctx context.Context, logs []model.PingResult) error {
	for _, res := range logs {
		if err := m.ReplayResult(ctx, res); err != nil {
			return err
		}
	}
	return nil
}

// ReplayResult narrates a single result from the monitored device's
// perspective. Packets the device would not observe are omitted, and
// results without packet detail get a one-line failure note.
func (m *PerspectiveMonitor) ReplayResult(ctx context.Context, res model.PingResult) error {
	if res.Details == nil {
		fmt.Fprintf(m.out, "\n=== Traffic captured on %s ===\n", m.deviceID)
		fmt.Fprintf(m.out, "Event %s failed: %s\n", res.EventID, res.Error)
		return ctx.Err()
	}
	d := res.Details

	fmt.Fprintf(m.out, "\n=== Traffic captured on %s ===\n", m.deviceID)
	if m.ifaceName != "" {
		fmt.Fprintf(m.out, "Interface: %s\n", m.ifaceName)
	}
	fmt.Fprintf(m.out, "Capturing packets relevant to ping from %s to %s\n", d.Source, d.DestinationIP)
	if err := m.wait(ctx, setupPause); err != nil {
		return err
	}

	if len(d.ICMPPackets) > 0 {
		if err := m.replayARP(ctx, d); err != nil {
			return err
		}
		if err := m.wait(ctx, setupPause); err != nil {
			return err
		}
	}

	atSource := m.deviceID == model.DeviceID(d.Source)

	for _, pkt := range d.ICMPPackets {
		if err := m.wait(ctx, setupPause); err != nil {
			return err
		}

		if m.observes(pkt.EchoRequest, d.PathTaken) {
			fmt.Fprintf(m.out, "\nICMP Echo Request (seq=%d)\n", pkt.Sequence)
			m.printPacket(pkt.EchoRequest, "ICMP Echo Request")
		}
		if err := m.pathDelay(ctx, d.PathTaken); err != nil {
			return err
		}

		if !pkt.Success || pkt.EchoReply == nil {
			continue
		}
		if m.observes(*pkt.EchoReply, d.PathTaken) {
			fmt.Fprintf(m.out, "\nICMP Echo Reply (seq=%d)\n", pkt.Sequence)
			m.printPacket(*pkt.EchoReply, "ICMP Echo Reply")
			if atSource && pkt.RTTMs != nil {
				fmt.Fprintf(m.out, "  Round Trip Time: %.3fms\n", *pkt.RTTMs)
			}
		}
		if err := m.pathDelay(ctx, d.PathTaken); err != nil {
			return err
		}
	}
	return nil
}

// observes reports whether the monitored device would see the packet.
func (m *PerspectiveMonitor) observes(pkt model.EchoPacket, path []string) bool {
	if m.isSwitch(m.deviceID) {
		for _, hop := range path {
			if hop == m.deviceID {
				return true
			}
		}
		return false
	}
	return m.ownsIP(pkt.SrcIP) || m.ownsIP(pkt.DestIP)
}

func (m *PerspectiveMonitor) printPacket(pkt model.EchoPacket, kind string) {
	direction := "Incoming"
	switch {
	case m.isSwitch(m.deviceID):
		direction = "Forward"
	case m.ownsIP(pkt.SrcIP):
		direction = "Outgoing"
	}
	fmt.Fprintf(m.out, "[%.6fs] %s %s\n", m.elapsed(), direction, kind)
	fmt.Fprintf(m.out, "  Layer 2: %s -> %s\n", pkt.SrcMAC, pkt.DestMAC)
	fmt.Fprintf(m.out, "  Layer 3: %s -> %s\n", pkt.SrcIP, pkt.DestIP)
	fmt.Fprintf(m.out, "  TTL: %d\n", pkt.TTL)
}

// replayARP narrates the resolution exchange. Only the requesting host
// sees its own request and the reply; everyone else just notes the
// broadcast passing by.
func (m *PerspectiveMonitor) replayARP(ctx context.Context, d *model.PingDetails) error {
	req := d.ICMPPackets[0].EchoRequest
	sourceID := model.DeviceID(d.Source)

	fmt.Fprintf(m.out, "\n%s observed ARP traffic:\n", m.deviceID)

	if m.deviceID == sourceID {
		fmt.Fprintf(m.out, "[%.6fs] Sent ARP Request\n", m.elapsed())
		fmt.Fprintf(m.out, "  Who has %s? Tell %s\n", d.DestinationIP, sourceID)
	}
	if err := m.pathDelay(ctx, d.PathTaken); err != nil {
		return err
	}
	if m.deviceID == sourceID {
		fmt.Fprintf(m.out, "[%.6fs] Received ARP Reply\n", m.elapsed())
		fmt.Fprintf(m.out, "  %s is at %s\n", d.DestinationIP, req.DestMAC)
	}
	return nil
}

// pathDelay models one traversal from this device's vantage point:
// per-hop switch latency and propagation, then local processing.
func (m *PerspectiveMonitor) pathDelay(ctx context.Context, path []string) error {
	for i := 0; i < len(path)-1; i++ {
		if m.isSwitch(path[i]) || m.isSwitch(path[i+1]) {
			if err := m.wait(ctx, m.SwitchLatency); err != nil {
				return err
			}
		}
		if err := m.wait(ctx, m.PropagationDelay); err != nil {
			return err
		}
	}
	return m.wait(ctx, m.ProcessingDelay)
}

func (m *PerspectiveMonitor) ownsIP(ip string) bool {
	dev, _ := m.KB.GetInterfaceByIP(ip)
	return dev != nil && dev.ID == m.deviceID
}

func (m *PerspectiveMonitor) isSwitch(deviceID string) bool {
	dev := m.KB.GetDevice(deviceID)
	return dev != nil && dev.Forwards()
}

func (m *PerspectiveMonitor) wait(ctx context.Context, d time.Duration) error {
	if m.pacer == nil {
		return ctx.Err()
	}
	return m.pacer.Wait(ctx, d)
}

func (m *PerspectiveMonitor) elapsed() float64 {
	return time.Since(m.start).Seconds()
}
