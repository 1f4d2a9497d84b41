// Package orchestrator implements the dispatch loop, collector loop,
// timeout sweeper, and batch progress projection that together score
// submitted records against the five evaluation dimensions and aggregate
// the results into a final score per record. It is the direct analogue of
// the source pkg/njobs assigner it is modeled on: a fixed-concurrency loop draining a
// FIFO queue, tracked by an in-flight table a sweeper reaps on timeout.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"go.evalmesh.dev/engine/pkg/metrics"
	"go.evalmesh.dev/engine/pkg/queue"
	"go.evalmesh.dev/engine/pkg/recordcache"
	"go.evalmesh.dev/engine/pkg/store"
)

// RankingTracker folds a task's final score into its agent's running mean
// (§4.7, supplemental agent ranking projection). It is satisfied by
// *rankings.Tracker; orchestrator only depends on this narrow interface so
// tests can stub it out.
type RankingTracker interface {
	Upsert(ctx context.Context, batchID, agentID string, finalScore float64) error
}

// Orchestrator runs the three always-on loops against a shared broker and
// store.
type Orchestrator struct {
	broker   queue.Broker
	store    store.Store
	cache    *recordcache.Cache
	inFlight *inFlightTable
	metrics  *metrics.Orchestrator
	rankings RankingTracker
	log      *zap.Logger
	opts     Options
	clock    func() time.Time

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New builds an Orchestrator. rankingTracker may be nil to skip the ranking
// projection entirely.
func New(broker queue.Broker, st store.Store, m *metrics.Orchestrator, rankingTracker RankingTracker, log *zap.Logger, opts Options) (*Orchestrator, error) {
	if err := opts.Weights.Validate(); err != nil {
		return nil, err
	}
	cache, err := recordcache.New(4096, opts.PartialResultsTTL)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		broker:   broker,
		store:    st,
		cache:    cache,
		inFlight: newInFlightTable(),
		metrics:  m,
		rankings: rankingTracker,
		log:      log,
		opts:     opts,
	}, nil
}

// Start launches the dispatch loop, collector loop, and timeout sweeper.
// It returns immediately; the loops run until Stop is called.
func (o *Orchestrator) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	o.wg.Add(3)
	go func() { defer o.wg.Done(); o.runDispatchLoop(runCtx) }()
	go func() { defer o.wg.Done(); o.runCollectorLoop(runCtx) }()
	go func() { defer o.wg.Done(); o.runSweepLoop(runCtx) }()
}

// Stop cancels the running loops and waits up to HardShutdownDeadline for
// them to drain before returning. The broker-mediated shutdown signal
// (§5.1) is how a separate `stop` process invocation reaches this same
// cancellation; Stop itself is only the in-process half of that path.
func (o *Orchestrator) Stop() {
	if o.cancel == nil {
		return
	}
	o.cancel()
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(o.opts.HardShutdownDeadline):
		o.log.Warn("orchestrator: hard shutdown deadline exceeded, loops still draining")
	}
}

// InFlightCount returns the number of tasks currently tracked as dispatched
// but not yet finalised. The count lives only in this process; the `status`
// subcommand runs as a separate process and does not report it.
func (o *Orchestrator) InFlightCount() int {
	return o.inFlight.len()
}

func (o *Orchestrator) rankingsRecord(ctx context.Context, batchID, agentID string, finalScore float64, scored bool) {
	if o.rankings == nil || !scored || agentID == "" {
		return
	}
	if err := o.rankings.Upsert(ctx, batchID, agentID, finalScore); err != nil {
		o.log.Warn("orchestrator: agent ranking upsert failed",
			zap.String("batch_id", batchID), zap.String("agent_id", agentID), zap.Error(err))
	}
}
