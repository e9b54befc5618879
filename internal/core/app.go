// Package core hosts the coordinator: the single goroutine that owns all
// snapshot mutation. Event batches and queries are serialized through one
// select loop, so queries always observe a state consistent with the most
// recently applied event, without locks.
package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"StrappedIndexer/internal/event"
	"StrappedIndexer/internal/ingestion"
	"StrappedIndexer/internal/observability"
	"StrappedIndexer/internal/persistence"
	"StrappedIndexer/internal/query"
	"StrappedIndexer/internal/snapshot"
)

// App is the coordinator. It pulls event batches from the source, applies
// them in order, detects chain reorganizations, and answers queries between
// batches.
type App struct {
	snapshots persistence.SnapshotStorage
	metadata  persistence.MetadataStorage
	source    ingestion.EventSource
	queries   chan query.Query
	contract  event.ContractID
	logger    zerolog.Logger
	metrics   *observability.Metrics

	// lastHeight is the height of the last applied batch; nil until the
	// first batch (or recovery from storage).
	lastHeight *uint32

	// triggered buffers the current game's modifier unlocks for the
	// historical archive. Entries are height-tagged so a rollback can
	// discard the ones that no longer happened.
	triggered []bufferedTrigger
}

type bufferedTrigger struct {
	height uint32
	snapshot.TriggeredModifier
}

// NewApp wires the coordinator. contract is the game contract's id, used to
// derive strap asset ids.
func NewApp(
	snapshots persistence.SnapshotStorage,
	metadata persistence.MetadataStorage,
	source ingestion.EventSource,
	contract event.ContractID,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *App {
	return &App{
		snapshots: snapshots,
		metadata:  metadata,
		source:    source,
		queries:   make(chan query.Query, 64),
		contract:  contract,
		logger:    logger,
		metrics:   metrics,
	}
}

// Submit hands a query to the coordinator. It blocks until the query is
// queued or ctx is done; the reply arrives on the query's own channel.
func (a *App) Submit(ctx context.Context, q query.Query) error {
	select {
	case a.queries <- q:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type batchResult struct {
	batch ingestion.EventBatch
	err   error
}

// Run drives the coordinator until ctx is done or a fatal error occurs.
// Source and storage errors are fatal: the indexer's only job is to mirror
// the ledger, and continuing past a failed read or write would serve wrong
// answers.
func (a *App) Run(ctx context.Context) error {
	if _, h, err := a.snapshots.LatestOverview(); err == nil {
		height := h
		a.lastHeight = &height
		a.logger.Info().Uint32("height", height).Msg("recovered state")
	} else if !persistence.IsNotFound(err) {
		return err
	}

	batches := make(chan batchResult)
	go a.pump(ctx, batches)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case res := <-batches:
			if res.err != nil {
				return res.err
			}
			if err := a.applyBatch(res.batch); err != nil {
				return err
			}

		case q := <-a.queries:
			if err := a.answer(q); err != nil {
				return err
			}
		}
	}
}

// pump feeds batches from the source into the select loop. It stops after
// the first source error; the loop treats that error as fatal.
func (a *App) pump(ctx context.Context, out chan<- batchResult) {
	for {
		start := time.Now()
		batch, err := a.source.NextEventBatch(ctx)
		if a.metrics != nil && err == nil {
			a.metrics.SourceBatches.Inc()
			a.metrics.SourcePullLatency.Observe(time.Since(start).Seconds())
		}
		select {
		case out <- batchResult{batch: batch, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// applyBatch handles one block's events. A batch at or below the last
// applied height means the chain reorganized: the replaced blocks are
// rolled back before the new one is applied.
func (a *App) applyBatch(batch ingestion.EventBatch) error {
	if a.lastHeight != nil && batch.Height <= *a.lastHeight {
		if err := a.rollBackTo(batch.Height); err != nil {
			return err
		}
	}

	for _, ev := range batch.Events {
		start := time.Now()
		if err := a.applyEvent(ev, batch.Height); err != nil {
			if a.metrics != nil {
				a.metrics.EventsRejected.WithLabelValues(ev.EventType().String(), "apply").Inc()
			}
			return err
		}
		if a.metrics != nil {
			a.metrics.EventsApplied.WithLabelValues(ev.EventType().String()).Inc()
			a.metrics.EventDuration.WithLabelValues(ev.EventType().String()).Observe(time.Since(start).Seconds())
		}
	}

	height := batch.Height
	a.lastHeight = &height
	if a.metrics != nil {
		a.metrics.BatchHeight.Set(float64(batch.Height))
		a.metrics.BatchSize.Observe(float64(len(batch.Events)))
	}
	return nil
}

// rollBackTo discards every record above newHeight-1 so the batch at
// newHeight can be applied on a clean base. Historical archives survive.
func (a *App) rollBackTo(newHeight uint32) error {
	if newHeight == 0 {
		// A batch at height 0 restates everything from genesis.
		if err := a.snapshots.PruneFrom(0); err != nil {
			return err
		}
		a.triggered = a.triggered[:0]
	} else {
		target := newHeight - 1
		if err := a.snapshots.RollBack(target); err != nil {
			return err
		}
		kept := a.triggered[:0]
		for _, t := range a.triggered {
			if t.height <= target {
				kept = append(kept, t)
			}
		}
		a.triggered = kept
	}

	depth := uint32(0)
	if a.lastHeight != nil && *a.lastHeight >= newHeight {
		depth = *a.lastHeight - newHeight + 1
	}
	a.lastHeight = nil
	if _, h, err := a.snapshots.LatestOverview(); err == nil {
		height := h
		a.lastHeight = &height
	} else if !persistence.IsNotFound(err) {
		return err
	}

	if a.metrics != nil {
		a.metrics.Rollbacks.Inc()
		a.metrics.RollbackDepth.Observe(float64(depth))
	}
	a.logger.Warn().
		Uint32("new_height", newHeight).
		Uint32("depth", depth).
		Msg("chain reorganization, rolled back")
	return nil
}

// answer resolves one query against storage. Missing records reply nil;
// any other storage error is fatal.
func (a *App) answer(q query.Query) error {
	switch r := q.(type) {
	case query.LatestOverview:
		s, h, err := a.snapshots.LatestOverview()
		if persistence.IsNotFound(err) {
			r.Reply <- nil
			return nil
		}
		if err != nil {
			return err
		}
		r.Reply <- &query.OverviewReply{Snapshot: s, Height: h}

	case query.LatestAccount:
		s, h, err := a.snapshots.LatestAccount(r.Identity)
		if persistence.IsNotFound(err) {
			r.Reply <- nil
			return nil
		}
		if err != nil {
			return err
		}
		r.Reply <- &query.AccountReply{Snapshot: s, Height: h}

	case query.HistoricalAccount:
		s, h, err := a.snapshots.AccountAt(r.Identity, r.GameID)
		if persistence.IsNotFound(err) {
			r.Reply <- nil
			return nil
		}
		if err != nil {
			return err
		}
		r.Reply <- &query.AccountReply{Snapshot: s, Height: h}

	case query.HistoricalGame:
		s, err := a.snapshots.Historical(r.GameID)
		if persistence.IsNotFound(err) {
			r.Reply <- nil
			return nil
		}
		if err != nil {
			return err
		}
		r.Reply <- &s

	case query.AllKnownStraps:
		straps, err := a.metadata.AllKnown()
		if err != nil {
			return err
		}
		r.Reply <- straps
	}
	return nil
}
