package core

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/signalsfoundry/lan-simulator/model"
)

// pathKB builds a topology from device IDs and a connection list. IDs
// starting with "switch" become switches with ports port1..port8, the
// rest hosts with eth0.
func pathKB(t *testing.T, ids []string, conns []model.Connection) *KnowledgeBase {
	t.Helper()
	kb := NewKnowledgeBase()
	for n, id := range ids {
		var dev *model.Device
		if strings.HasPrefix(id, "switch") {
			dev = testSwitch(id, "port1", "port2", "port3", "port4",
				"port5", "port6", "port7", "port8")
		} else {
			dev = testHost(id, fmt.Sprintf("00:00:00:00:00:%02X", n+1),
				fmt.Sprintf("10.0.0.%d", n+1))
		}
		if err := kb.AddDevice(dev); err != nil {
			t.Fatalf("AddDevice(%s) failed: %v", id, err)
		}
	}
	for _, c := range conns {
		if err := kb.AddConnection(c); err != nil {
			t.Fatalf("AddConnection(%s, %s) failed: %v", c.From, c.To, err)
		}
	}
	return kb
}

func TestPath_SourceEqualsDestination(t *testing.T) {
	kb := pathKB(t, []string{"pc1"}, nil)
	pr := NewPathResolver(kb)

	got := pr.Path("pc1", "pc1")
	if !reflect.DeepEqual(got, []string{"pc1"}) {
		t.Fatalf("Path(pc1, pc1) = %v, want [pc1]", got)
	}
}

func TestPath_LinearThroughSwitch(t *testing.T) {
	kb := pathKB(t,
		[]string{"pc1", "switch1", "pc2"},
		[]model.Connection{
			{From: "pc1.eth0", To: "switch1.port1"},
			{From: "switch1.port2", To: "pc2.eth0"},
		},
	)
	pr := NewPathResolver(kb)

	got := pr.Path("pc1", "pc2")
	want := []string{"pc1", "switch1", "pc2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Path(pc1, pc2) = %v, want %v", got, want)
	}

	// Reverse direction walks the same links from the other side.
	got = pr.Path("pc2", "pc1")
	want = []string{"pc2", "switch1", "pc1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Path(pc2, pc1) = %v, want %v", got, want)
	}
}

func TestPath_RepeatedCallsAreDeterministic(t *testing.T) {
	kb := pathKB(t,
		[]string{"pc1", "switch1", "switch2", "pc2"},
		[]model.Connection{
			{From: "pc1.eth0", To: "switch1.port1"},
			{From: "switch1.port2", To: "switch2.port1"},
			{From: "switch2.port2", To: "pc2.eth0"},
		},
	)
	pr := NewPathResolver(kb)

	first := pr.Path("pc1", "pc2")
	for i := 0; i < 5; i++ {
		if got := pr.Path("pc1", "pc2"); !reflect.DeepEqual(got, first) {
			t.Fatalf("call %d returned %v, first call returned %v", i+2, got, first)
		}
	}
}

func TestPath_ConnectionOrderDoesNotBreakLinearRoute(t *testing.T) {
	// Same two links as TestPath_LinearThroughSwitch, declared in the
	// opposite order and with swapped endpoints. The walk skips the
	// back-edge to pc1 and still reaches pc2.
	kb := pathKB(t,
		[]string{"pc1", "switch1", "pc2"},
		[]model.Connection{
			{From: "pc2.eth0", To: "switch1.port2"},
			{From: "switch1.port1", To: "pc1.eth0"},
		},
	)
	pr := NewPathResolver(kb)

	got := pr.Path("pc1", "pc2")
	want := []string{"pc1", "switch1", "pc2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Path(pc1, pc2) = %v, want %v", got, want)
	}
}

func TestPath_DisconnectedHosts(t *testing.T) {
	kb := pathKB(t, []string{"pc1", "pc2"}, nil)
	pr := NewPathResolver(kb)

	if got := pr.Path("pc1", "pc2"); got != nil {
		t.Fatalf("Path over empty connection list = %v, want nil", got)
	}
}

func TestPath_DeadEndBranch(t *testing.T) {
	// pc1 connects only to pc3; pc2 is reachable from nobody. The walk
	// moves pc1 -> pc3, finds no unvisited neighbor, and gives up.
	kb := pathKB(t,
		[]string{"pc1", "pc2", "pc3"},
		[]model.Connection{
			{From: "pc1.eth0", To: "pc3.eth0"},
		},
	)
	pr := NewPathResolver(kb)

	if got := pr.Path("pc1", "pc2"); got != nil {
		t.Fatalf("Path into dead end = %v, want nil", got)
	}
}

func TestPath_GreedyWalkCommitsToFirstBranch(t *testing.T) {
	// Star topology: switch1 fans out to pc2 and pc3, with the pc3
	// link listed first. The single-candidate walk takes the pc3
	// branch, dead-ends there, and reports no path even though pc2 is
	// attached to the same switch. Listing the pc2 link first routes.
	first := []model.Connection{
		{From: "pc1.eth0", To: "switch1.port1"},
		{From: "switch1.port2", To: "pc3.eth0"},
		{From: "switch1.port3", To: "pc2.eth0"},
	}
	kb := pathKB(t, []string{"pc1", "switch1", "pc2", "pc3"}, first)
	if got := NewPathResolver(kb).Path("pc1", "pc2"); got != nil {
		t.Fatalf("Path with pc3 branch first = %v, want nil", got)
	}

	second := []model.Connection{
		{From: "pc1.eth0", To: "switch1.port1"},
		{From: "switch1.port2", To: "pc2.eth0"},
		{From: "switch1.port3", To: "pc3.eth0"},
	}
	kb = pathKB(t, []string{"pc1", "switch1", "pc2", "pc3"}, second)
	got := NewPathResolver(kb).Path("pc1", "pc2")
	want := []string{"pc1", "switch1", "pc2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Path with pc2 branch first = %v, want %v", got, want)
	}
}

func TestPath_LongChainWithinHopBound(t *testing.T) {
	// A 50-switch daisy chain stays under the hop bound and resolves
	// end to end.
	ids := []string{"pc1"}
	var conns []model.Connection
	prev := "pc1.eth0"
	for i := 1; i <= 50; i++ {
		sw := fmt.Sprintf("switch%d", i)
		ids = append(ids, sw)
		conns = append(conns, model.Connection{From: prev, To: sw + ".port1"})
		prev = sw + ".port2"
	}
	ids = append(ids, "pc2")
	conns = append(conns, model.Connection{From: prev, To: "pc2.eth0"})

	kb := pathKB(t, ids, conns)
	got := NewPathResolver(kb).Path("pc1", "pc2")
	if len(got) != 52 {
		t.Fatalf("chain path length = %d, want 52", len(got))
	}
	if got[0] != "pc1" || got[51] != "pc2" {
		t.Fatalf("chain endpoints = %s..%s, want pc1..pc2", got[0], got[len(got)-1])
	}
}
