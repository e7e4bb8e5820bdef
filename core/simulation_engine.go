package core

import (
	"context"

	"github.com/signalsfoundry/lan-simulator/model"
)

// SimulationEngine drives the ping service over an ordered sequence
// of events, producing one result per handled event with input order
// preserved. Events whose type is not recognized are skipped without
// a result entry; skip listeners exist so callers can log or count
// them without changing the output contract.
type SimulationEngine struct {
	KB          *KnowledgeBase
	PingService *PingService

	resultListeners []func(model.PingResult)
	skipListeners   []func(model.Event)
}

// NewSimulationEngine wires an engine over the given topology.
func NewSimulationEngine(kb *KnowledgeBase) *SimulationEngine {
	return &SimulationEngine{
		KB:          kb,
		PingService: NewPingService(kb),
	}
}

// RegisterResultListener adds a callback invoked after each produced
// result, in batch order.
func (se *SimulationEngine) RegisterResultListener(fn func(model.PingResult)) {
	if fn == nil {
		return
	}
	se.resultListeners = append(se.resultListeners, fn)
}

// RegisterSkipListener adds a callback invoked for every event whose
// type the engine does not handle.
func (se *SimulationEngine) RegisterSkipListener(fn func(model.Event)) {
	if fn == nil {
		return
	}
	se.skipListeners = append(se.skipListeners, fn)
}

// Run simulates the batch sequentially. A per-event failure becomes a
// failed-status result and the batch continues; only context
// cancellation stops the loop early, returning the results produced
// so far.
func (se *SimulationEngine) Run(ctx context.Context, events []model.Event) []model.PingResult {
	results := make([]model.PingResult, 0, len(events))

	for _, event := range events {
		if ctx.Err() != nil {
			break
		}
		if event.Type != model.EventTypePing {
			for _, fn := range se.skipListeners {
				fn(event)
			}
			continue
		}

		result := se.PingService.Simulate(ctx, event)
		results = append(results, result)
		for _, fn := range se.resultListeners {
			fn(result)
		}
	}

	return results
}
