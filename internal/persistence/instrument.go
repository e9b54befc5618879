package persistence

import (
	"time"

	"StrappedIndexer/internal/event"
	"StrappedIndexer/internal/observability"
	"StrappedIndexer/internal/snapshot"
)

// Instrument wraps a SnapshotStorage so every mutation reports write count,
// failure count, and latency. With nil metrics the store is returned as is.
func Instrument(s SnapshotStorage, m *observability.Metrics) SnapshotStorage {
	if m == nil {
		return s
	}
	return &instrumentedSnapshots{inner: s, metrics: m}
}

type instrumentedSnapshots struct {
	inner   SnapshotStorage
	metrics *observability.Metrics
}

func (i *instrumentedSnapshots) observe(record string, start time.Time, err error) {
	i.metrics.PersistDuration.WithLabelValues(record).Observe(time.Since(start).Seconds())
	if err != nil {
		i.metrics.PersistErrors.WithLabelValues(record).Inc()
		return
	}
	i.metrics.PersistWrites.WithLabelValues(record).Inc()
}

func (i *instrumentedSnapshots) LatestOverview() (snapshot.OverviewSnapshot, uint32, error) {
	return i.inner.LatestOverview()
}

func (i *instrumentedSnapshots) LatestAccount(account event.Identity) (snapshot.AccountSnapshot, uint32, error) {
	return i.inner.LatestAccount(account)
}

func (i *instrumentedSnapshots) AccountAt(account event.Identity, gameID uint32) (snapshot.AccountSnapshot, uint32, error) {
	return i.inner.AccountAt(account, gameID)
}

func (i *instrumentedSnapshots) Historical(gameID uint32) (snapshot.HistoricalSnapshot, error) {
	return i.inner.Historical(gameID)
}

func (i *instrumentedSnapshots) UpdateOverview(s snapshot.OverviewSnapshot, height uint32) error {
	start := time.Now()
	err := i.inner.UpdateOverview(s, height)
	i.observe("overview", start, err)
	return err
}

func (i *instrumentedSnapshots) UpdateAccount(account event.Identity, gameID uint32, s snapshot.AccountSnapshot, height uint32) error {
	start := time.Now()
	err := i.inner.UpdateAccount(account, gameID, s, height)
	i.observe("account", start, err)
	return err
}

func (i *instrumentedSnapshots) WriteHistorical(gameID uint32, s snapshot.HistoricalSnapshot) error {
	start := time.Now()
	err := i.inner.WriteHistorical(gameID, s)
	i.observe("historical", start, err)
	return err
}

func (i *instrumentedSnapshots) RollBack(toHeight uint32) error {
	start := time.Now()
	err := i.inner.RollBack(toHeight)
	i.observe("rollback", start, err)
	return err
}

func (i *instrumentedSnapshots) PruneFrom(fromHeight uint32) error {
	start := time.Now()
	err := i.inner.PruneFrom(fromHeight)
	i.observe("prune", start, err)
	return err
}
