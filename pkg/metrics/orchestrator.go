package metrics

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"
)

// Orchestrator holds the OpenTelemetry instruments emitted by the dispatch
// loop, collector loop, and timeout sweeper, grounded on
// njobs.AssignerMetrics (pkg/njobs/assigner.go).
type Orchestrator struct {
	dispatched metric.Int64Counter
	finalized  metric.Int64Counter
	timedOut   metric.Int64Counter
	results    metric.Int64Counter
	inFlight   int64
}

// NewOrchestrator builds the orchestrator's instrument set against meter m.
func NewOrchestrator(m metric.Meter) (*Orchestrator, error) {
	om := new(Orchestrator)
	var err error
	om.dispatched, err = m.NewInt64Counter("orchestrator_tasks_dispatched")
	if err != nil {
		return nil, err
	}
	om.finalized, err = m.NewInt64Counter("orchestrator_tasks_finalized")
	if err != nil {
		return nil, err
	}
	om.timedOut, err = m.NewInt64Counter("orchestrator_tasks_timed_out")
	if err != nil {
		return nil, err
	}
	om.results, err = m.NewInt64Counter("orchestrator_dimension_results_received")
	if err != nil {
		return nil, err
	}
	if _, err := m.NewInt64UpDownSumObserver("orchestrator_tasks_in_flight",
		func(_ context.Context, res metric.Int64ObserverResult) {
			res.Observe(atomic.LoadInt64(&om.inFlight))
		}); err != nil {
		return nil, err
	}
	return om, nil
}

// TaskDispatched records one task fanned out to the five dimension queues.
func (o *Orchestrator) TaskDispatched(ctx context.Context) {
	o.dispatched.Add(ctx, 1)
	atomic.AddInt64(&o.inFlight, 1)
}

// TaskFinalized records one task that reached a terminal state via the
// collector (completed or failed-with-all-dimensions-errored).
func (o *Orchestrator) TaskFinalized(ctx context.Context) {
	o.finalized.Add(ctx, 1)
	atomic.AddInt64(&o.inFlight, -1)
}

// TaskTimedOut records one task the sweeper failed for exceeding its
// deadline.
func (o *Orchestrator) TaskTimedOut(ctx context.Context) {
	o.timedOut.Add(ctx, 1)
	atomic.AddInt64(&o.inFlight, -1)
}

// DimensionResultReceived records one DimensionResult the collector popped
// off the results queue.
func (o *Orchestrator) DimensionResultReceived(ctx context.Context) {
	o.results.Add(ctx, 1)
}

// InFlight returns the current in-flight task count as tracked by metrics.
// This is a secondary view; the orchestrator's in-flight table (§5) is the
// authoritative one used by the sweeper.
func (o *Orchestrator) InFlight() int64 {
	return atomic.LoadInt64(&o.inFlight)
}
