package monitor

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/lan-simulator/core"
	"github.com/signalsfoundry/lan-simulator/model"
	"github.com/signalsfoundry/lan-simulator/timectrl"
)

// helper: pc1 and pc2 joined through switch1, plus an unconnected pc3.
func monitorKB(t *testing.T) *core.KnowledgeBase {
	t.Helper()
	kb := core.NewKnowledgeBase()

	devices := []*model.Device{
		{
			ID:   "pc1",
			Kind: model.KindHost,
			Interfaces: []model.Interface{
				{Name: "eth0", MAC: "00:1A:2B:3C:4D:01", IP: "10.0.0.1"},
			},
		},
		{
			ID:   "switch1",
			Kind: model.KindSwitch,
			Interfaces: []model.Interface{
				{Name: "port1"}, {Name: "port2"},
			},
		},
		{
			ID:   "pc2",
			Kind: model.KindHost,
			Interfaces: []model.Interface{
				{Name: "eth0", MAC: "00:1A:2B:3C:4D:02", IP: "10.0.0.2"},
			},
		},
		{
			ID:   "pc3",
			Kind: model.KindHost,
			Interfaces: []model.Interface{
				{Name: "eth0", MAC: "00:1A:2B:3C:4D:03", IP: "10.0.0.3"},
			},
		},
	}
	for _, dev := range devices {
		if err := kb.AddDevice(dev); err != nil {
			t.Fatalf("AddDevice(%s) failed: %v", dev.ID, err)
		}
	}

	conns := []model.Connection{
		{From: "pc1.eth0", To: "switch1.port1"},
		{From: "switch1.port2", To: "pc2.eth0"},
	}
	for _, c := range conns {
		if err := kb.AddConnection(c); err != nil {
			t.Fatalf("AddConnection(%s, %s) failed: %v", c.From, c.To, err)
		}
	}
	return kb
}

// helper: two-sequence ping pc1 -> pc2, first answered, second lost.
func sampleResult() model.PingResult {
	rtt := 0.42
	reply := model.EchoPacket{
		SrcMAC:  "00:1A:2B:3C:4D:02",
		DestMAC: "00:1A:2B:3C:4D:01",
		SrcIP:   "10.0.0.2",
		DestIP:  "10.0.0.1",
		TTL:     64,
	}
	request := model.EchoPacket{
		SrcMAC:  "00:1A:2B:3C:4D:01",
		DestMAC: "00:1A:2B:3C:4D:02",
		SrcIP:   "10.0.0.1",
		DestIP:  "10.0.0.2",
		TTL:     64,
	}
	return model.PingResult{
		EventID: "evt-1",
		Status:  model.StatusSuccess,
		Action:  model.ActionPing,
		Details: &model.PingDetails{
			Source:          "pc1.eth0",
			DestinationIP:   "10.0.0.2",
			PacketsSent:     2,
			PacketsReceived: 1,
			LossPercentage:  50,
			RoundTripTimeMs: &model.RTTStats{MinMs: 0.42, MaxMs: 0.42, AvgMs: 0.42},
			ICMPPackets: []model.ICMPPacket{
				{Sequence: 0, Success: true, RTTMs: &rtt, EchoRequest: request, EchoReply: &reply},
				{Sequence: 1, Success: false, EchoRequest: request},
			},
			PathTaken: []string{"pc1", "switch1", "pc2"},
		},
		Timestamp: time.Now().UTC(),
	}
}

func wantLine(t *testing.T, out, want string) {
	t.Helper()
	if !strings.Contains(out, want) {
		t.Fatalf("output missing %q\n--- output ---\n%s", want, out)
	}
}

func rejectLine(t *testing.T, out, unwanted string) {
	t.Helper()
	if strings.Contains(out, unwanted) {
		t.Fatalf("output unexpectedly contains %q\n--- output ---\n%s", unwanted, out)
	}
}

func TestNetworkMonitorNarration(t *testing.T) {
	var buf bytes.Buffer
	m := NewNetworkMonitor(monitorKB(t), &buf, nil)

	if err := m.Replay(context.Background(), []model.PingResult{sampleResult()}); err != nil {
		t.Fatalf("Replay failed: %v", err)
	}

	out := buf.String()
	wantLine(t, out, "=== Starting Ping from pc1.eth0 to 10.0.0.2 ===")
	wantLine(t, out, "Sending 2 packets...")
	wantLine(t, out, "Network path:")
	wantLine(t, out, "pc1 -> switch1")
	wantLine(t, out, "switch1 -> pc2")
	wantLine(t, out, "pc1 (00:1A:2B:3C:4D:01) -> Who has 10.0.0.2?")
	wantLine(t, out, "10.0.0.2 -> pc1: I'm at 00:1A:2B:3C:4D:02")
	wantLine(t, out, "Sequence 1:")
	wantLine(t, out, "Sequence 2:")
	wantLine(t, out, "00:1A:2B:3C:4D:01 -> 00:1A:2B:3C:4D:02")
	wantLine(t, out, "00:1A:2B:3C:4D:02 <- 00:1A:2B:3C:4D:01")
	wantLine(t, out, "RTT: 0.420ms")
	wantLine(t, out, "* Request timed out *")
	wantLine(t, out, "Packets: Sent = 2, Received = 1, Lost = 1 (50.0% loss)")
	wantLine(t, out, "Minimum = 0.420ms")
	wantLine(t, out, "Maximum = 0.420ms")
	wantLine(t, out, "Average = 0.420ms")
}

func TestNetworkMonitorFailedResult(t *testing.T) {
	var buf bytes.Buffer
	m := NewNetworkMonitor(monitorKB(t), &buf, nil)

	failed := model.PingResult{
		EventID: "evt-9",
		Status:  model.StatusFailed,
		Action:  model.ActionPing,
		Error:   "Destination IP not reachable",
	}
	if err := m.ReplayResult(context.Background(), failed); err != nil {
		t.Fatalf("ReplayResult failed: %v", err)
	}

	out := buf.String()
	wantLine(t, out, "=== Event evt-9 failed: Destination IP not reachable ===")
	rejectLine(t, out, "Ping Statistics")
}

func TestNetworkMonitorCanceledContext(t *testing.T) {
	var buf bytes.Buffer
	pacer := timectrl.NewController(timectrl.RealTime)
	m := NewNetworkMonitor(monitorKB(t), &buf, pacer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Replay(ctx, []model.PingResult{sampleResult()})
	if err != context.Canceled {
		t.Fatalf("Replay error = %v, want context.Canceled", err)
	}
}

func TestNetworkMonitorNoRTTBlockWhenAllLost(t *testing.T) {
	// An all-lost ping is recorded as failed but still carries the full
	// packet trace, so it narrates like any other run.
	res := sampleResult()
	res.Status = model.StatusFailed
	res.Details.PacketsReceived = 0
	res.Details.LossPercentage = 100
	res.Details.RoundTripTimeMs = nil
	lostOnly := res.Details.ICMPPackets[1]
	res.Details.ICMPPackets = []model.ICMPPacket{lostOnly}
	res.Details.PacketsSent = 1

	var buf bytes.Buffer
	m := NewNetworkMonitor(monitorKB(t), &buf, nil)
	if err := m.ReplayResult(context.Background(), res); err != nil {
		t.Fatalf("ReplayResult failed: %v", err)
	}

	out := buf.String()
	wantLine(t, out, "Packets: Sent = 1, Received = 0, Lost = 1 (100.0% loss)")
	rejectLine(t, out, "Round-trip time")
}
