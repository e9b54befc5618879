package persistence

import (
	"fmt"
	"sort"
	"sync"

	"StrappedIndexer/internal/event"
	"StrappedIndexer/internal/snapshot"
)

// MemorySnapshotStorage is the volatile backend: guarded maps, no
// durability. Used by coordinator tests and short-lived deployments.
type MemorySnapshotStorage struct {
	mu         sync.Mutex
	overviews  map[uint32]snapshot.OverviewSnapshot
	latest     *uint32
	accounts   map[accountKey]accountRecord
	historical map[uint32]snapshot.HistoricalSnapshot
}

type accountKey struct {
	account event.Identity
	gameID  uint32
}

type accountRecord struct {
	snap   snapshot.AccountSnapshot
	height uint32
}

func NewMemorySnapshotStorage() *MemorySnapshotStorage {
	return &MemorySnapshotStorage{
		overviews:  make(map[uint32]snapshot.OverviewSnapshot),
		accounts:   make(map[accountKey]accountRecord),
		historical: make(map[uint32]snapshot.HistoricalSnapshot),
	}
}

func (m *MemorySnapshotStorage) LatestOverview() (snapshot.OverviewSnapshot, uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latest == nil {
		return snapshot.OverviewSnapshot{}, 0, fmt.Errorf("latest overview: %w", ErrNotFound)
	}
	s, ok := m.overviews[*m.latest]
	if !ok {
		return snapshot.OverviewSnapshot{}, 0, fmt.Errorf("overview at height %d: %w", *m.latest, ErrNotFound)
	}
	return s.Clone(), *m.latest, nil
}

func (m *MemorySnapshotStorage) LatestAccount(account event.Identity) (snapshot.AccountSnapshot, uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latest == nil {
		return snapshot.AccountSnapshot{}, 0, fmt.Errorf("latest account: no overview: %w", ErrNotFound)
	}
	current, ok := m.overviews[*m.latest]
	if !ok {
		return snapshot.AccountSnapshot{}, 0, fmt.Errorf("latest account: no overview: %w", ErrNotFound)
	}
	return m.accountAtLocked(account, current.GameID)
}

func (m *MemorySnapshotStorage) AccountAt(account event.Identity, gameID uint32) (snapshot.AccountSnapshot, uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accountAtLocked(account, gameID)
}

func (m *MemorySnapshotStorage) accountAtLocked(account event.Identity, gameID uint32) (snapshot.AccountSnapshot, uint32, error) {
	rec, ok := m.accounts[accountKey{account: account, gameID: gameID}]
	if !ok {
		return snapshot.AccountSnapshot{}, 0, fmt.Errorf("account %s game %d: %w", account, gameID, ErrNotFound)
	}
	return rec.snap.Clone(), rec.height, nil
}

func (m *MemorySnapshotStorage) UpdateOverview(s snapshot.OverviewSnapshot, height uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overviews[height] = s.Clone()
	h := height
	m.latest = &h
	return nil
}

func (m *MemorySnapshotStorage) UpdateAccount(account event.Identity, gameID uint32, s snapshot.AccountSnapshot, height uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[accountKey{account: account, gameID: gameID}] = accountRecord{
		snap:   s.Clone(),
		height: height,
	}
	return nil
}

func (m *MemorySnapshotStorage) Historical(gameID uint32) (snapshot.HistoricalSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.historical[gameID]
	if !ok {
		return snapshot.HistoricalSnapshot{}, fmt.Errorf("historical game %d: %w", gameID, ErrNotFound)
	}
	return s.Clone(), nil
}

func (m *MemorySnapshotStorage) WriteHistorical(gameID uint32, s snapshot.HistoricalSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historical[gameID] = s.Clone()
	return nil
}

func (m *MemorySnapshotStorage) RollBack(toHeight uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var survivors []uint32
	for h := range m.overviews {
		if h > toHeight {
			delete(m.overviews, h)
		} else {
			survivors = append(survivors, h)
		}
	}
	if len(survivors) == 0 {
		m.latest = nil
	} else {
		sort.Slice(survivors, func(i, j int) bool { return survivors[i] < survivors[j] })
		h := survivors[len(survivors)-1]
		m.latest = &h
	}

	for key, rec := range m.accounts {
		if rec.height > toHeight {
			delete(m.accounts, key)
		}
	}
	// Historical archives stay: they belong to completed games.
	return nil
}

func (m *MemorySnapshotStorage) PruneFrom(fromHeight uint32) error {
	if fromHeight == 0 {
		m.mu.Lock()
		m.overviews = make(map[uint32]snapshot.OverviewSnapshot)
		m.accounts = make(map[accountKey]accountRecord)
		m.latest = nil
		m.mu.Unlock()
		return nil
	}
	return m.RollBack(fromHeight - 1)
}

// MemoryMetadataStorage is the volatile strap registry.
type MemoryMetadataStorage struct {
	mu     sync.Mutex
	straps map[event.AssetID]event.Strap
}

func NewMemoryMetadataStorage() *MemoryMetadataStorage {
	return &MemoryMetadataStorage{straps: make(map[event.AssetID]event.Strap)}
}

func (m *MemoryMetadataStorage) Lookup(assetID event.AssetID) (event.Strap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	strap, ok := m.straps[assetID]
	if !ok {
		return event.Strap{}, fmt.Errorf("strap metadata %s: %w", assetID, ErrNotFound)
	}
	return strap, nil
}

func (m *MemoryMetadataStorage) Record(assetID event.AssetID, strap event.Strap) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.straps[assetID] = strap
	return nil
}

func (m *MemoryMetadataStorage) AllKnownIDs() ([]event.AssetID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]event.AssetID, 0, len(m.straps))
	for id := range m.straps {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func (m *MemoryMetadataStorage) AllKnown() ([]snapshot.StrapMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]snapshot.StrapMetadata, 0, len(m.straps))
	for id, strap := range m.straps {
		out = append(out, snapshot.StrapMetadata{AssetID: id, Strap: strap})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID.String() < out[j].AssetID.String() })
	return out, nil
}
