package monitor

import (
	"bytes"
	"context"
	"testing"

	"github.com/signalsfoundry/lan-simulator/model"
)

func TestPerspectiveMonitorSourceView(t *testing.T) {
	var buf bytes.Buffer
	m := NewPerspectiveMonitor(monitorKB(t), "pc1", "eth0", &buf, nil)

	if err := m.Replay(context.Background(), []model.PingResult{sampleResult()}); err != nil {
		t.Fatalf("Replay failed: %v", err)
	}

	out := buf.String()
	wantLine(t, out, "=== Traffic captured on pc1 ===")
	wantLine(t, out, "Interface: eth0")
	wantLine(t, out, "Sent ARP Request")
	wantLine(t, out, "Who has 10.0.0.2? Tell pc1")
	wantLine(t, out, "10.0.0.2 is at 00:1A:2B:3C:4D:02")
	wantLine(t, out, "Outgoing ICMP Echo Request")
	wantLine(t, out, "Incoming ICMP Echo Reply")
	wantLine(t, out, "Round Trip Time: 0.420ms")
	wantLine(t, out, "Layer 2: 00:1A:2B:3C:4D:01 -> 00:1A:2B:3C:4D:02")
	wantLine(t, out, "Layer 3: 10.0.0.1 -> 10.0.0.2")
	wantLine(t, out, "TTL: 64")
}

func TestPerspectiveMonitorDestinationView(t *testing.T) {
	var buf bytes.Buffer
	m := NewPerspectiveMonitor(monitorKB(t), "pc2", "", &buf, nil)

	if err := m.Replay(context.Background(), []model.PingResult{sampleResult()}); err != nil {
		t.Fatalf("Replay failed: %v", err)
	}

	out := buf.String()
	wantLine(t, out, "=== Traffic captured on pc2 ===")
	wantLine(t, out, "Incoming ICMP Echo Request")
	wantLine(t, out, "Outgoing ICMP Echo Reply")
	rejectLine(t, out, "Interface:")
	rejectLine(t, out, "Round Trip Time")
	rejectLine(t, out, "Sent ARP Request")
}

func TestPerspectiveMonitorSwitchForwardsEverything(t *testing.T) {
	var buf bytes.Buffer
	m := NewPerspectiveMonitor(monitorKB(t), "switch1", "", &buf, nil)

	if err := m.Replay(context.Background(), []model.PingResult{sampleResult()}); err != nil {
		t.Fatalf("Replay failed: %v", err)
	}

	out := buf.String()
	wantLine(t, out, "=== Traffic captured on switch1 ===")
	wantLine(t, out, "Forward ICMP Echo Request")
	wantLine(t, out, "Forward ICMP Echo Reply")
	rejectLine(t, out, "Round Trip Time")
}

func TestPerspectiveMonitorBystanderSeesNoPackets(t *testing.T) {
	var buf bytes.Buffer
	m := NewPerspectiveMonitor(monitorKB(t), "pc3", "", &buf, nil)

	if err := m.Replay(context.Background(), []model.PingResult{sampleResult()}); err != nil {
		t.Fatalf("Replay failed: %v", err)
	}

	out := buf.String()
	wantLine(t, out, "=== Traffic captured on pc3 ===")
	rejectLine(t, out, "ICMP Echo Request")
	rejectLine(t, out, "ICMP Echo Reply")
}

func TestPerspectiveMonitorFailedResult(t *testing.T) {
	var buf bytes.Buffer
	m := NewPerspectiveMonitor(monitorKB(t), "pc1", "", &buf, nil)

	failed := model.PingResult{
		EventID: "evt-9",
		Status:  model.StatusFailed,
		Action:  model.ActionPing,
		Error:   "ARP resolution failed",
	}
	if err := m.ReplayResult(context.Background(), failed); err != nil {
		t.Fatalf("ReplayResult failed: %v", err)
	}

	out := buf.String()
	wantLine(t, out, "Event evt-9 failed: ARP resolution failed")
}
