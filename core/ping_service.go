package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/signalsfoundry/lan-simulator/model"
)

var (
	ErrSourceInterfaceNotFound = errors.New("source interface not found")
	ErrDestinationUnreachable  = errors.New("destination ip not reachable")
	ErrInvalidPacketCount      = errors.New("invalid packet count")
)

// echoTTL is stamped on every simulated echo request and reply.
const echoTTL = 64

// maxInterPacketPause caps the simulated inter-sequence pause
// regardless of the event timeout.
const maxInterPacketPause = 100 * time.Millisecond

// Pacer is the optional delay hook invoked between ICMP sequences.
// Implementations wait up to d and return early with the context's
// error on cancellation. Pacing can never influence computed results;
// the engine only ever waits.
type Pacer interface {
	Wait(ctx context.Context, d time.Duration) error
}

// PingService simulates one reachability event end to end: endpoint
// lookup, address resolution through the ARP cache, per-sequence
// packet simulation, and result aggregation.
type PingService struct {
	KB      *KnowledgeBase
	ARP     *ARPCache
	Paths   *PathResolver
	Packets *PacketModel

	// Pacer, when non-nil, paces the gap between ICMP sequences by
	// the event timeout capped at maxInterPacketPause. Leave nil for
	// delay-free simulation.
	Pacer Pacer
}

// NewPingService wires a ping engine over the given topology with a
// fresh ARP cache and the default packet model.
func NewPingService(kb *KnowledgeBase) *PingService {
	return &PingService{
		KB:      kb,
		ARP:     NewARPCache(kb),
		Paths:   NewPathResolver(kb),
		Packets: NewPacketModel(),
	}
}

// Simulate runs one ping event and returns its result. Per-event
// failures are reported as failed-status results carrying a
// classification string; they are never returned as errors, so a
// batch always continues past them.
//
// The failure points, in order: unknown source interface, destination
// IP owned by no interface, ARP resolution failure, and a
// non-positive packet count. An exhausted route is not a failure; it
// yields an empty path in an otherwise ordinary result.
func (ps *PingService) Simulate(ctx context.Context, event model.Event) model.PingResult {
	srcDev, srcIface, err := ps.sourceInterface(event.SourceInterface)
	if err != nil {
		return errorResult(event.ID, err)
	}

	destDev, _ := ps.KB.GetInterfaceByIP(event.DestinationIP)
	if destDev == nil {
		return errorResult(event.ID, fmt.Errorf("%w: %q", ErrDestinationUnreachable, event.DestinationIP))
	}

	destMAC, err := ps.ARP.Resolve(srcDev.ID, event.DestinationIP)
	if err != nil {
		return errorResult(event.ID, err)
	}

	if event.Count <= 0 {
		return errorResult(event.ID, fmt.Errorf("%w: %d", ErrInvalidPacketCount, event.Count))
	}

	packets := make([]model.ICMPPacket, 0, event.Count)
	received := 0
	var rtts []float64

	for seq := 0; seq < event.Count; seq++ {
		lost, rtt := ps.Packets.Sample(srcDev.ID)

		pkt := model.ICMPPacket{
			Sequence: seq,
			Success:  !lost,
			EchoRequest: model.EchoPacket{
				SrcMAC:  srcIface.MAC,
				DestMAC: destMAC,
				SrcIP:   srcIface.IP,
				DestIP:  event.DestinationIP,
				TTL:     echoTTL,
			},
		}
		if !lost {
			received++
			rtts = append(rtts, rtt)
			r := rtt
			pkt.RTTMs = &r
			pkt.EchoReply = &model.EchoPacket{
				SrcMAC:  destMAC,
				DestMAC: srcIface.MAC,
				SrcIP:   event.DestinationIP,
				DestIP:  srcIface.IP,
				TTL:     echoTTL,
			}
		}
		packets = append(packets, pkt)

		ps.pace(ctx, event.TimeoutMs)
	}

	details := &model.PingDetails{
		Source:          event.SourceInterface,
		DestinationIP:   event.DestinationIP,
		PacketsSent:     event.Count,
		PacketsReceived: received,
		LossPercentage:  float64(event.Count-received) / float64(event.Count) * 100,
		RoundTripTimeMs: rttStats(rtts),
		ICMPPackets:     packets,
		PathTaken:       pathOrEmpty(ps.Paths.Path(srcDev.ID, destDev.ID)),
	}

	status := model.StatusFailed
	if received > 0 {
		status = model.StatusSuccess
	}

	return model.PingResult{
		EventID:   event.ID,
		Status:    status,
		Action:    model.ActionPing,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

func (ps *PingService) sourceInterface(ref string) (*model.Device, *model.Interface, error) {
	dev, iface, err := ps.KB.GetInterfaceByRef(ref)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %q", ErrSourceInterfaceNotFound, ref)
	}
	return dev, iface, nil
}

// pace applies the optional inter-sequence delay. A canceled context
// only stops the waiting; the remaining sequences still compute, so
// results never depend on pacing.
func (ps *PingService) pace(ctx context.Context, timeoutMs int) {
	if ps.Pacer == nil || timeoutMs <= 0 {
		return
	}
	d := time.Duration(timeoutMs) * time.Millisecond
	if d > maxInterPacketPause {
		d = maxInterPacketPause
	}
	_ = ps.Pacer.Wait(ctx, d)
}

// classify maps internal failures to the stable, human-readable
// classification strings carried in failed results.
func classify(err error) string {
	switch {
	case errors.Is(err, ErrSourceInterfaceNotFound):
		return "Source interface not found"
	case errors.Is(err, ErrDestinationUnreachable):
		return "Destination IP not reachable"
	case errors.Is(err, ErrAddressUnresolved):
		return "ARP resolution failed"
	case errors.Is(err, ErrInvalidPacketCount):
		return "Invalid packet count"
	default:
		return err.Error()
	}
}

func errorResult(eventID string, err error) model.PingResult {
	return model.PingResult{
		EventID:   eventID,
		Status:    model.StatusFailed,
		Action:    model.ActionPing,
		Error:     classify(err),
		Timestamp: time.Now().UTC(),
	}
}

func rttStats(rtts []float64) *model.RTTStats {
	if len(rtts) == 0 {
		return nil
	}
	return &model.RTTStats{
		MinMs: floats.Min(rtts),
		MaxMs: floats.Max(rtts),
		AvgMs: stat.Mean(rtts, nil),
	}
}

func pathOrEmpty(path []string) []string {
	if path == nil {
		return []string{}
	}
	return path
}
