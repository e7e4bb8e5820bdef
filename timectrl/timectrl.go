package timectrl

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Mode describes how the Controller honors nominal delays.
type Mode int

const (
	// Off returns immediately from every wait; simulation and replay
	// run at full speed.
	Off Mode = iota
	// RealTime waits the full nominal duration.
	RealTime
	// Accelerated divides every nominal duration by the speed-up
	// factor.
	Accelerated
)

func (m Mode) String() string {
	switch m {
	case RealTime:
		return "real-time"
	case Accelerated:
		return "accelerated"
	default:
		return "off"
	}
}

// ModeFromString maps a flag value to a Mode. Matching is tolerant:
// unknown values fall back to Off so a typo yields a fast run rather
// than a surprise wall-clock wait.
func ModeFromString(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "real-time", "realtime", "real":
		return RealTime
	case "accelerated", "accel", "fast":
		return Accelerated
	default:
		return Off
	}
}

// Controller is the delay hook shared by the ping engine and the
// replay monitors. Pacing never influences computed results; callers
// only ever wait, and a canceled context ends any wait early.
type Controller struct {
	mu        sync.RWMutex
	mode      Mode
	factor    float64
	listeners []func(Mode)
}

// NewController constructs a controller in the given mode with a
// speed-up factor of 1.
func NewController(mode Mode) *Controller {
	return &Controller{mode: mode, factor: 1}
}

// NewAccelerated constructs an Accelerated controller with the given
// speed-up factor. Factors at or below 1 behave like RealTime.
func NewAccelerated(factor float64) *Controller {
	c := NewController(Accelerated)
	c.SetFactor(factor)
	return c
}

// Mode returns the current pacing mode.
func (c *Controller) Mode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// SetMode switches the pacing mode and notifies listeners.
func (c *Controller) SetMode(mode Mode) {
	c.mu.Lock()
	c.mode = mode
	listeners := c.listeners
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(mode)
	}
}

// SetFactor updates the Accelerated speed-up factor. Values at or
// below zero are ignored.
func (c *Controller) SetFactor(factor float64) {
	if factor <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factor = factor
}

// AddListener registers a callback invoked on every mode change.
func (c *Controller) AddListener(fn func(Mode)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Wait blocks for the nominal duration scaled by the current mode and
// factor. It returns the context's error when canceled first, nil
// otherwise. Off mode and non-positive durations return immediately.
func (c *Controller) Wait(ctx context.Context, d time.Duration) error {
	c.mu.RLock()
	mode := c.mode
	factor := c.factor
	c.mu.RUnlock()

	if mode == Off || d <= 0 {
		return ctx.Err()
	}
	if mode == Accelerated && factor > 1 {
		d = time.Duration(float64(d) / factor)
		if d <= 0 {
			return ctx.Err()
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
