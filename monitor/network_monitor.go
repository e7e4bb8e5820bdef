// Package monitor replays completed simulation results as narrated,
// timed console output. Monitors are presentation only: they consume a
// result batch plus the topology and never influence what the engine
// computed.
package monitor

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/signalsfoundry/lan-simulator/core"
	"github.com/signalsfoundry/lan-simulator/model"
)

// Pacer is the delay hook monitors use for every modeled pause. A nil
// pacer (or one in its off mode) makes replay instantaneous.
type Pacer interface {
	Wait(ctx context.Context, d time.Duration) error
}

// Presentation pauses between narration lines. These shape the replay
// rhythm only; they carry no simulation meaning.
const (
	setupPause    = 500 * time.Millisecond
	hopPause      = 100 * time.Millisecond
	packetPause   = 50 * time.Millisecond
	sequencePause = time.Second
	timeoutPause  = 2 * time.Second
	statsPause    = 200 * time.Millisecond
	rttLinePause  = 100 * time.Millisecond
)

// NetworkMonitor narrates a result batch from a global vantage point:
// path, ARP exchange, every echo request and reply, and the closing
// statistics block.
type NetworkMonitor struct {
	KB *core.KnowledgeBase

	// SwitchLatency models per-switch forwarding delay along the path.
	SwitchLatency time.Duration

	// PropagationDelay models per-cable signal travel time.
	PropagationDelay time.Duration

	// ProcessingDelay models host-side packet handling at each end.
	ProcessingDelay time.Duration

	out   io.Writer
	pacer Pacer
	start time.Time
}

// NewNetworkMonitor constructs a monitor writing narration to out. The
// pacer may be nil, in which case no delays are simulated.
func NewNetworkMonitor(kb *core.KnowledgeBase, out io.Writer, pacer Pacer) *NetworkMonitor {
	return &NetworkMonitor{
		KB:               kb,
		SwitchLatency:    200 * time.Microsecond, // per-switch forwarding
		PropagationDelay: 500 * time.Microsecond, // per cable segment
		ProcessingDelay:  time.Millisecond,       // per host
		out:              out,
		pacer:            pacer,
		start:            time.Now(),
	}
}

// Replay narrates every result in order. It stops early and returns
// the context's error when the context is canceled mid-replay.
func (m *NetworkMonitor) Replay(ctx context.Context, logs []model.PingResult) error {
	for _, res := range logs {
		if err := m.ReplayResult(ctx, res); err != nil {
			return err
		}
	}
	return nil
}

// ReplayResult narrates a single result. Results without packet detail
// (the event never produced traffic) get a one-line failure header; a
// failed ping that still sent packets is narrated in full, timeouts
// included.
func (m *NetworkMonitor) ReplayResult(ctx context.Context, res model.PingResult) error {
	if res.Details == nil {
		fmt.Fprintf(m.out, "\n=== Event %s failed: %s ===\n", res.EventID, res.Error)
		return ctx.Err()
	}
	d := res.Details

	fmt.Fprintf(m.out, "\n=== Starting Ping from %s to %s ===\n", d.Source, d.DestinationIP)
	fmt.Fprintf(m.out, "Sending %d packets...\n", d.PacketsSent)
	if err := m.wait(ctx, setupPause); err != nil {
		return err
	}

	if len(d.PathTaken) > 1 {
		fmt.Fprintf(m.out, "\nNetwork path:\n")
		for i := 0; i < len(d.PathTaken)-1; i++ {
			fmt.Fprintf(m.out, "  %s -> %s\n", d.PathTaken[i], d.PathTaken[i+1])
			if err := m.wait(ctx, hopPause); err != nil {
				return err
			}
		}
		fmt.Fprintln(m.out)
	}

	if len(d.ICMPPackets) > 0 {
		fmt.Fprintln(m.out, "Performing ARP resolution...")
		if err := m.replayARP(ctx, d); err != nil {
			return err
		}
		fmt.Fprintln(m.out, "\nARP resolution completed. Starting ping sequence...")
		if err := m.wait(ctx, setupPause); err != nil {
			return err
		}
	}

	for _, pkt := range d.ICMPPackets {
		if pkt.Sequence > 0 {
			if err := m.wait(ctx, sequencePause); err != nil {
				return err
			}
		}
		fmt.Fprintf(m.out, "\nSequence %d:\n", pkt.Sequence+1)
		if err := m.printPacket(ctx, pkt.EchoRequest, "->"); err != nil {
			return err
		}

		if !pkt.Success {
			if err := m.wait(ctx, timeoutPause); err != nil {
				return err
			}
			fmt.Fprintln(m.out, "  * Request timed out *")
			continue
		}

		if err := m.pathDelay(ctx, d.PathTaken); err != nil {
			return err
		}
		if pkt.EchoReply != nil {
			if err := m.printPacket(ctx, *pkt.EchoReply, "<-"); err != nil {
				return err
			}
		}
		if err := m.pathDelay(ctx, d.PathTaken); err != nil {
			return err
		}
		if pkt.RTTMs != nil {
			fmt.Fprintf(m.out, "  RTT: %.3fms\n", *pkt.RTTMs)
		}
	}

	return m.printStatistics(ctx, d)
}

// replayARP narrates the request/reply exchange that resolved the
// destination's hardware address. The addresses come from the first
// recorded echo request; the exchange itself happened before any ICMP
// traffic was generated.
func (m *NetworkMonitor) replayARP(ctx context.Context, d *model.PingDetails) error {
	req := d.ICMPPackets[0].EchoRequest
	sourceID := model.DeviceID(d.Source)

	fmt.Fprintf(m.out, "\n[%.3fs] ARP Resolution Started:\n", m.elapsed())
	fmt.Fprintf(m.out, "  %s (%s) -> Who has %s?\n", sourceID, req.SrcMAC, d.DestinationIP)
	if err := m.pathDelay(ctx, d.PathTaken); err != nil {
		return err
	}

	fmt.Fprintf(m.out, "[%.3fs] ARP Request Broadcast:\n", m.elapsed())
	fmt.Fprintln(m.out, "  Broadcasting on all switch ports...")
	if err := m.wait(ctx, 2*m.ProcessingDelay); err != nil {
		return err
	}

	fmt.Fprintf(m.out, "[%.3fs] ARP Reply:\n", m.elapsed())
	fmt.Fprintf(m.out, "  %s -> %s: I'm at %s\n", d.DestinationIP, sourceID, req.DestMAC)
	return m.pathDelay(ctx, d.PathTaken)
}

func (m *NetworkMonitor) printStatistics(ctx context.Context, d *model.PingDetails) error {
	if err := m.wait(ctx, setupPause); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "\n=== Ping Statistics ===\n")
	if err := m.wait(ctx, statsPause); err != nil {
		return err
	}
	lost := d.PacketsSent - d.PacketsReceived
	fmt.Fprintf(m.out, "Packets: Sent = %d, Received = %d, Lost = %d (%.1f%% loss)\n",
		d.PacketsSent, d.PacketsReceived, lost, d.LossPercentage)

	if d.PacketsReceived == 0 || d.RoundTripTimeMs == nil {
		return nil
	}
	if err := m.wait(ctx, statsPause); err != nil {
		return err
	}
	fmt.Fprintln(m.out, "Round-trip time (ms):")
	if err := m.wait(ctx, rttLinePause); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "    Minimum = %.3fms\n", d.RoundTripTimeMs.MinMs)
	if err := m.wait(ctx, rttLinePause); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "    Maximum = %.3fms\n", d.RoundTripTimeMs.MaxMs)
	if err := m.wait(ctx, rttLinePause); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "    Average = %.3fms\n", d.RoundTripTimeMs.AvgMs)
	return nil
}

func (m *NetworkMonitor) printPacket(ctx context.Context, pkt model.EchoPacket, direction string) error {
	fmt.Fprintf(m.out, "  [%.3fs] %s %s %s\n", m.elapsed(), pkt.SrcMAC, direction, pkt.DestMAC)
	fmt.Fprintf(m.out, "       %s %s %s\n", pkt.SrcIP, direction, pkt.DestIP)
	return m.wait(ctx, packetPause)
}

// pathDelay models one end-to-end traversal: processing at the source,
// switch latency and propagation per hop, processing at the far end.
func (m *NetworkMonitor) pathDelay(ctx context.Context, path []string) error {
	if err := m.wait(ctx, m.ProcessingDelay); err != nil {
		return err
	}
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

func (m *NetworkMonitor) isSwitch(deviceID string) bool {
	dev := m.KB.GetDevice(deviceID)
	return dev != nil && dev.Forwards()
}

func (m *NetworkMonitor) wait(ctx context.Context, d time.Duration) error {
	if m.pacer == nil {
		return ctx.Err()
	}
	return m.pacer.Wait(ctx, d)
}

func (m *NetworkMonitor) elapsed() float64 {
	return time.Since(m.start).Seconds()
}
