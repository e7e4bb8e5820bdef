package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/lan-simulator/model"
)

// Outcome label values for the ICMP packet counter.
const (
	PacketSent     = "sent"
	PacketReceived = "received"
	PacketLost     = "lost"
)

// EventSkipped labels events whose type the runner does not handle.
// Handled events are labeled with their result status.
const EventSkipped = "skipped"

// SimulationCollector bundles Prometheus metrics for the simulation
// engine and provides helpers to wire them into the runner's listener
// hooks. Core packages never import Prometheus; everything flows in
// through these observer methods.
type SimulationCollector struct {
	gatherer prometheus.Gatherer

	EventsTotal      *prometheus.CounterVec
	ICMPPacketsTotal *prometheus.CounterVec
	ARPLookupsTotal  *prometheus.CounterVec
	RTTMilliseconds  prometheus.Histogram
	PathHops         prometheus.Histogram
	ActiveRuns       prometheus.Gauge
}

// NewSimulationCollector registers simulation metrics against the
// provided registerer, defaulting to the global Prometheus registry
// when nil.
func NewSimulationCollector(reg prometheus.Registerer) (*SimulationCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lansim_events_total",
		Help: "Total number of processed events, labeled by outcome status.",
	}, []string{"status"})
	events, err := registerCounterVec(reg, events, "lansim_events_total")
	if err != nil {
		return nil, err
	}

	packets := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lansim_icmp_packets_total",
		Help: "Total number of simulated ICMP packets, labeled by outcome.",
	}, []string{"outcome"})
	packets, err = registerCounterVec(reg, packets, "lansim_icmp_packets_total")
	if err != nil {
		return nil, err
	}

	arp := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lansim_arp_lookups_total",
		Help: "Total number of ARP resolution attempts, labeled by result.",
	}, []string{"result"})
	arp, err = registerCounterVec(reg, arp, "lansim_arp_lookups_total")
	if err != nil {
		return nil, err
	}

	rtt := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lansim_ping_rtt_milliseconds",
		Help:    "Simulated round-trip times of successful echo exchanges.",
		Buckets: []float64{0.1, 0.25, 0.5, 0.75, 1, 1.25, 1.5, 1.75, 2},
	})
	rtt, err = registerHistogram(reg, rtt, "lansim_ping_rtt_milliseconds")
	if err != nil {
		return nil, err
	}

	hops := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lansim_path_hops",
		Help:    "Device count of resolved paths, zero when no route exists.",
		Buckets: []float64{0, 1, 2, 3, 4, 5, 7, 10, 15, 25, 50, 100},
	})
	hops, err = registerHistogram(reg, hops, "lansim_path_hops")
	if err != nil {
		return nil, err
	}

	active, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lansim_active_runs",
		Help: "Number of simulation runs currently in progress.",
	}), "lansim_active_runs")
	if err != nil {
		return nil, err
	}

	return &SimulationCollector{
		gatherer:         gatherer,
		EventsTotal:      events,
		ICMPPacketsTotal: packets,
		ARPLookupsTotal:  arp,
		RTTMilliseconds:  rtt,
		PathHops:         hops,
		ActiveRuns:       active,
	}, nil
}

// ObserveResult records one completed event: its status, the per-packet
// outcomes, successful RTT samples, and the resolved path length.
// Intended as an Event Runner result listener.
func (c *SimulationCollector) ObserveResult(res model.PingResult) {
	if c == nil {
		return
	}
	if c.EventsTotal != nil {
		c.EventsTotal.WithLabelValues(string(res.Status)).Inc()
	}
	if res.Details == nil {
		return
	}
	d := res.Details

	if c.ICMPPacketsTotal != nil {
		c.ICMPPacketsTotal.WithLabelValues(PacketSent).Add(float64(d.PacketsSent))
		c.ICMPPacketsTotal.WithLabelValues(PacketReceived).Add(float64(d.PacketsReceived))
		c.ICMPPacketsTotal.WithLabelValues(PacketLost).Add(float64(d.PacketsSent - d.PacketsReceived))
	}
	if c.RTTMilliseconds != nil {
		for _, pkt := range d.ICMPPackets {
			if pkt.Success && pkt.RTTMs != nil {
				c.RTTMilliseconds.Observe(*pkt.RTTMs)
			}
		}
	}
	if c.PathHops != nil {
		c.PathHops.Observe(float64(len(d.PathTaken)))
	}
}

// ObserveSkip counts an event the runner declined to handle. Intended
// as an Event Runner skip listener.
func (c *SimulationCollector) ObserveSkip(model.Event) {
	if c == nil || c.EventsTotal == nil {
		return
	}
	c.EventsTotal.WithLabelValues(EventSkipped).Inc()
}

// IncARPLookup counts one resolution attempt by result
// (hit, resolved, failed). Intended as an ARP cache observer.
func (c *SimulationCollector) IncARPLookup(result string) {
	if c == nil || c.ARPLookupsTotal == nil {
		return
	}
	c.ARPLookupsTotal.WithLabelValues(result).Inc()
}

// RunStarted marks a run in progress; RunFinished clears it.
func (c *SimulationCollector) RunStarted() {
	if c == nil || c.ActiveRuns == nil {
		return
	}
	c.ActiveRuns.Inc()
}

func (c *SimulationCollector) RunFinished() {
	if c == nil || c.ActiveRuns == nil {
		return
	}
	c.ActiveRuns.Dec()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimulationCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
