package results

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/signalsfoundry/lan-simulator/model"
)

// Batch is the serialized form of one run's results. The "logs" key
// is the stable envelope consumed by replay tooling; run metadata is
// optional so batches written by other producers still decode.
type Batch struct {
	RunID     string             `json:"run_id,omitempty"`
	StartedAt *time.Time         `json:"started_at,omitempty"`
	Scenario  string             `json:"scenario,omitempty"`
	Logs      []model.PingResult `json:"logs"`
}

// DecodeBatch parses a batch from JSON, accepting both the bare
// {"logs":[...]} envelope and the extended form with metadata.
func DecodeBatch(data []byte) (*Batch, error) {
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("results: decode batch: %w", err)
	}
	return &b, nil
}

// Encode writes the batch as indented JSON.
func (b *Batch) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("results: encode batch: %w", err)
	}
	return nil
}

// Summary aggregates a batch for operator-facing output.
type Summary struct {
	Events          int
	Succeeded       int
	Failed          int
	PacketsSent     int
	PacketsReceived int
}

// LossPercentage is the aggregate packet loss over the whole batch,
// zero when nothing was sent.
func (s Summary) LossPercentage() float64 {
	if s.PacketsSent == 0 {
		return 0
	}
	return float64(s.PacketsSent-s.PacketsReceived) / float64(s.PacketsSent) * 100
}

// Summarize folds a result list into a Summary.
func Summarize(logs []model.PingResult) Summary {
	var s Summary
	for i := range logs {
		s.Events++
		if logs[i].Failed() {
			s.Failed++
		} else {
			s.Succeeded++
		}
		if d := logs[i].Details; d != nil {
			s.PacketsSent += d.PacketsSent
			s.PacketsReceived += d.PacketsReceived
		}
	}
	return s
}

// Log collects the results of one simulation run in production order
// and fans each append out to subscribers. It is the only mutable
// state outside the engine's ARP cache and is guarded the same way so
// live consumers (metrics, progress output) can read mid-run.
type Log struct {
	mu        sync.RWMutex
	runID     string
	startedAt time.Time
	entries   []model.PingResult
	subs      []func(model.PingResult)
}

// NewLog creates an empty log with a fresh run ID.
func NewLog() *Log {
	return &Log{
		runID:     xid.New().String(),
		startedAt: time.Now().UTC(),
	}
}

// RunID returns the generated identifier for this run.
func (l *Log) RunID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.runID
}

// StartedAt returns the log's creation time.
func (l *Log) StartedAt() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.startedAt
}

// Append records a result and notifies subscribers in registration
// order.
func (l *Log) Append(res model.PingResult) {
	l.mu.Lock()
	l.entries = append(l.entries, res)
	subs := l.subs
	l.mu.Unlock()

	for _, fn := range subs {
		fn(res)
	}
}

// Subscribe registers a callback invoked for every appended result.
// Callbacks run on the appending goroutine and must not block.
func (l *Log) Subscribe(fn func(model.PingResult)) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = append(l.subs, fn)
}

// Len returns the number of recorded results.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Snapshot returns a copy of the recorded results in append order.
func (l *Log) Snapshot() []model.PingResult {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]model.PingResult, len(l.entries))
	copy(out, l.entries)
	return out
}

// Batch packages the current contents for serialization or archival.
func (l *Log) Batch() *Batch {
	l.mu.RLock()
	defer l.mu.RUnlock()

	logs := make([]model.PingResult, len(l.entries))
	copy(logs, l.entries)
	started := l.startedAt
	return &Batch{
		RunID:     l.runID,
		StartedAt: &started,
		Logs:      logs,
	}
}

// Summary aggregates the current contents.
func (l *Log) Summary() Summary {
	return Summarize(l.Snapshot())
}
