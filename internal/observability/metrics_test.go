package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/signalsfoundry/lan-simulator/model"
)

func observedResult() model.PingResult {
	rtt1 := 0.5
	rtt2 := 1.5
	return model.PingResult{
		EventID: "evt-1",
		Status:  model.StatusSuccess,
		Action:  model.ActionPing,
		Details: &model.PingDetails{
			Source:          "pc1.eth0",
			DestinationIP:   "10.0.0.2",
			PacketsSent:     3,
			PacketsReceived: 2,
			LossPercentage:  100.0 / 3,
			ICMPPackets: []model.ICMPPacket{
				{Sequence: 0, Success: true, RTTMs: &rtt1},
				{Sequence: 1, Success: false},
				{Sequence: 2, Success: true, RTTMs: &rtt2},
			},
			PathTaken: []string{"pc1", "switch1", "pc2"},
		},
	}
}

func TestObserveResultRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimulationCollector(reg)
	if err != nil {
		t.Fatalf("NewSimulationCollector: %v", err)
	}

	collector.ObserveResult(observedResult())

	if got := counterValue(t, reg, "lansim_events_total", map[string]string{"status": "success"}); got != 1 {
		t.Fatalf("lansim_events_total{status=success} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.ICMPPacketsTotal.WithLabelValues(PacketSent)); got != 3 {
		t.Fatalf("lansim_icmp_packets_total{outcome=sent} = %v, want 3", got)
	}
	if got := testutil.ToFloat64(collector.ICMPPacketsTotal.WithLabelValues(PacketReceived)); got != 2 {
		t.Fatalf("lansim_icmp_packets_total{outcome=received} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.ICMPPacketsTotal.WithLabelValues(PacketLost)); got != 1 {
		t.Fatalf("lansim_icmp_packets_total{outcome=lost} = %v, want 1", got)
	}

	if count := histogramSampleCount(t, reg, "lansim_ping_rtt_milliseconds"); count != 2 {
		t.Fatalf("lansim_ping_rtt_milliseconds sample_count = %d, want 2", count)
	}
	if count := histogramSampleCount(t, reg, "lansim_path_hops"); count != 1 {
		t.Fatalf("lansim_path_hops sample_count = %d, want 1", count)
	}
}

func TestObserveSkipAndARPLookups(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimulationCollector(reg)
	if err != nil {
		t.Fatalf("NewSimulationCollector: %v", err)
	}

	collector.ObserveSkip(model.Event{ID: "evt-odd", Type: "reboot"})
	collector.IncARPLookup("resolved")
	collector.IncARPLookup("hit")
	collector.IncARPLookup("hit")

	if got := testutil.ToFloat64(collector.EventsTotal.WithLabelValues(EventSkipped)); got != 1 {
		t.Fatalf("lansim_events_total{status=skipped} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.ARPLookupsTotal.WithLabelValues("hit")); got != 2 {
		t.Fatalf("lansim_arp_lookups_total{result=hit} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.ARPLookupsTotal.WithLabelValues("resolved")); got != 1 {
		t.Fatalf("lansim_arp_lookups_total{result=resolved} = %v, want 1", got)
	}
}

func TestMetricsHandlerExposesSimulationSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimulationCollector(reg)
	if err != nil {
		t.Fatalf("NewSimulationCollector: %v", err)
	}
	collector.RunStarted()
	collector.ObserveResult(observedResult())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"lansim_events_total",
		"lansim_icmp_packets_total",
		"lansim_ping_rtt_milliseconds",
		"lansim_path_hops",
		"lansim_active_runs",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}

	collector.RunFinished()
	if got := testutil.ToFloat64(collector.ActiveRuns); got != 0 {
		t.Fatalf("lansim_active_runs = %v, want 0 after RunFinished", got)
	}
}

func TestStoreCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewStoreCollector(reg)
	if err != nil {
		t.Fatalf("NewStoreCollector: %v", err)
	}

	collector.ObserveSave(10 * time.Millisecond)
	collector.IncRunsLoaded()
	collector.SetArchiveSize(4096)

	if got := testutil.ToFloat64(collector.RunsSavedTotal); got != 1 {
		t.Fatalf("lansim_store_runs_saved_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.RunsLoadedTotal); got != 1 {
		t.Fatalf("lansim_store_runs_loaded_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.ArchiveSizeBytes); got != 4096 {
		t.Fatalf("lansim_store_archive_size_bytes = %v, want 4096", got)
	}
	if count := histogramSampleCount(t, reg, "lansim_store_save_duration_seconds"); count != 1 {
		t.Fatalf("lansim_store_save_duration_seconds sample_count = %d, want 1", count)
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func counterValue(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) float64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
