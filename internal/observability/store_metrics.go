package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StoreCollector exposes Prometheus metrics for the results archive.
type StoreCollector struct {
	gatherer prometheus.Gatherer

	SaveDuration     prometheus.Histogram
	RunsSavedTotal   prometheus.Counter
	RunsLoadedTotal  prometheus.Counter
	ArchiveSizeBytes prometheus.Gauge
}

// NewStoreCollector registers archive metrics against the provided
// registerer.
func NewStoreCollector(reg prometheus.Registerer) (*StoreCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	saveHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lansim_store_save_duration_seconds",
		Help:    "Duration of archive writes for completed runs.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
	saveHistogram, err := registerHistogram(reg, saveHistogram, "lansim_store_save_duration_seconds")
	if err != nil {
		return nil, err
	}

	saved := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lansim_store_runs_saved_total",
		Help: "Cumulative number of runs written to the archive.",
	})
	saved, err = registerCounter(reg, saved, "lansim_store_runs_saved_total")
	if err != nil {
		return nil, err
	}

	loaded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lansim_store_runs_loaded_total",
		Help: "Cumulative number of runs read back from the archive.",
	})
	loaded, err = registerCounter(reg, loaded, "lansim_store_runs_loaded_total")
	if err != nil {
		return nil, err
	}

	size := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lansim_store_archive_size_bytes",
		Help: "Size of the archive database file on disk.",
	})
	size, err = registerGauge(reg, size, "lansim_store_archive_size_bytes")
	if err != nil {
		return nil, err
	}

	return &StoreCollector{
		gatherer:         gatherer,
		SaveDuration:     saveHistogram,
		RunsSavedTotal:   saved,
		RunsLoadedTotal:  loaded,
		ArchiveSizeBytes: size,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *StoreCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveSave records a completed archive write.
func (c *StoreCollector) ObserveSave(d time.Duration) {
	if c == nil {
		return
	}
	if c.SaveDuration != nil {
		c.SaveDuration.Observe(d.Seconds())
	}
	if c.RunsSavedTotal != nil {
		c.RunsSavedTotal.Inc()
	}
}

// IncRunsLoaded counts one run read back from the archive.
func (c *StoreCollector) IncRunsLoaded() {
	if c == nil || c.RunsLoadedTotal == nil {
		return
	}
	c.RunsLoadedTotal.Inc()
}

// SetArchiveSize updates the on-disk size gauge.
func (c *StoreCollector) SetArchiveSize(bytes int64) {
	if c == nil || c.ArchiveSizeBytes == nil {
		return
	}
	if bytes < 0 {
		bytes = 0
	}
	c.ArchiveSizeBytes.Set(float64(bytes))
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
