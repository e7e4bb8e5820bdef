package core

import (
	"context"
	"testing"

	"github.com/signalsfoundry/lan-simulator/model"
)

func TestRun_PreservesEventOrder(t *testing.T) {
	kb := testLAN(t)
	engine := NewSimulationEngine(kb)
	engine.PingService.Packets.LossProbability = 0

	events := []model.Event{
		pingEvent("evt-1", 1),
		pingEvent("evt-2", 1),
		pingEvent("evt-3", 1),
	}
	results := engine.Run(context.Background(), events)

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, want := range []string{"evt-1", "evt-2", "evt-3"} {
		if results[i].EventID != want {
			t.Fatalf("results[%d].EventID = %q, want %q", i, results[i].EventID, want)
		}
	}
}

func TestRun_SkipsUnknownEventTypes(t *testing.T) {
	kb := testLAN(t)
	engine := NewSimulationEngine(kb)
	engine.PingService.Packets.LossProbability = 0

	var skipped []string
	engine.RegisterSkipListener(func(ev model.Event) {
		skipped = append(skipped, ev.ID)
	})

	traceroute := pingEvent("evt-2", 1)
	traceroute.Type = "traceroute"
	events := []model.Event{
		pingEvent("evt-1", 1),
		traceroute,
		pingEvent("evt-3", 1),
	}
	results := engine.Run(context.Background(), events)

	// The skipped event leaves no gap in the output.
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].EventID != "evt-1" || results[1].EventID != "evt-3" {
		t.Fatalf("result IDs = (%q, %q), want (evt-1, evt-3)", results[0].EventID, results[1].EventID)
	}
	if len(skipped) != 1 || skipped[0] != "evt-2" {
		t.Fatalf("skip listener saw %v, want [evt-2]", skipped)
	}
}

func TestRun_FailedEventDoesNotStopBatch(t *testing.T) {
	kb := testLAN(t)
	engine := NewSimulationEngine(kb)
	engine.PingService.Packets.LossProbability = 0

	bad := pingEvent("evt-2", 1)
	bad.DestinationIP = "10.9.9.9"
	events := []model.Event{
		pingEvent("evt-1", 1),
		bad,
		pingEvent("evt-3", 1),
	}
	results := engine.Run(context.Background(), events)

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[1].Status != model.StatusFailed || results[1].Error != "Destination IP not reachable" {
		t.Fatalf("results[1] = (%q, %q), want failed lookup", results[1].Status, results[1].Error)
	}
	if results[0].Status != model.StatusSuccess || results[2].Status != model.StatusSuccess {
		t.Fatalf("neighbors of the failed event did not succeed: %q, %q",
			results[0].Status, results[2].Status)
	}
}

func TestRun_ResultListenersSeeBatchOrder(t *testing.T) {
	kb := testLAN(t)
	engine := NewSimulationEngine(kb)
	engine.PingService.Packets.LossProbability = 0

	var first, second []string
	engine.RegisterResultListener(func(r model.PingResult) {
		first = append(first, r.EventID)
	})
	engine.RegisterResultListener(func(r model.PingResult) {
		second = append(second, r.EventID)
	})

	engine.Run(context.Background(), []model.Event{
		pingEvent("evt-1", 1),
		pingEvent("evt-2", 1),
	})

	for _, got := range [][]string{first, second} {
		if len(got) != 2 || got[0] != "evt-1" || got[1] != "evt-2" {
			t.Fatalf("listener saw %v, want [evt-1 evt-2]", got)
		}
	}
}

func TestRun_CancellationReturnsPartialBatch(t *testing.T) {
	kb := testLAN(t)
	engine := NewSimulationEngine(kb)
	engine.PingService.Packets.LossProbability = 0

	ctx, cancel := context.WithCancel(context.Background())
	engine.RegisterResultListener(func(r model.PingResult) {
		if r.EventID == "evt-2" {
			cancel()
		}
	})

	events := []model.Event{
		pingEvent("evt-1", 1),
		pingEvent("evt-2", 1),
		pingEvent("evt-3", 1),
		pingEvent("evt-4", 1),
	}
	results := engine.Run(ctx, events)

	if len(results) != 2 {
		t.Fatalf("got %d results after cancellation, want 2", len(results))
	}
	if results[1].EventID != "evt-2" {
		t.Fatalf("last result = %q, want evt-2", results[1].EventID)
	}
}

func TestRun_EmptyBatch(t *testing.T) {
	kb := testLAN(t)
	engine := NewSimulationEngine(kb)

	results := engine.Run(context.Background(), nil)
	if len(results) != 0 {
		t.Fatalf("got %d results for an empty batch, want 0", len(results))
	}
}
