package persistence

import (
	"errors"

	"StrappedIndexer/internal/event"
	"StrappedIndexer/internal/snapshot"
)

// ErrNotFound reports that the requested snapshot, account, archive, or
// asset metadata does not exist. It is the only recoverable storage error:
// the query surface maps it to an empty/404 response and nothing retries it.
var ErrNotFound = errors.New("not found")

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// SnapshotStorage persists the indexer's materialized state. The coordinator
// is the only writer; reads may come from any goroutine, so implementations
// must be safe for concurrent use.
type SnapshotStorage interface {
	// LatestOverview returns the current-game overview and the height it
	// was written at. ErrNotFound before any event has been applied.
	LatestOverview() (snapshot.OverviewSnapshot, uint32, error)

	// LatestAccount returns the account's record for the current game.
	// ErrNotFound when there is no overview or no record for that game.
	LatestAccount(account event.Identity) (snapshot.AccountSnapshot, uint32, error)

	// AccountAt returns the account's record for an explicit game id.
	AccountAt(account event.Identity, gameID uint32) (snapshot.AccountSnapshot, uint32, error)

	// UpdateOverview replaces the current overview and advances the latest
	// height pointer. Durable implementations must not return before the
	// write is flushed.
	UpdateOverview(s snapshot.OverviewSnapshot, height uint32) error

	// UpdateAccount upserts one (account, game) record at the given height.
	UpdateAccount(account event.Identity, gameID uint32, s snapshot.AccountSnapshot, height uint32) error

	// Historical returns the archive of a completed game.
	Historical(gameID uint32) (snapshot.HistoricalSnapshot, error)

	// WriteHistorical archives a completed game. The coordinator writes each
	// game id at most once; implementations may allow overwrite.
	WriteHistorical(gameID uint32, s snapshot.HistoricalSnapshot) error

	// RollBack removes every overview and account record written above
	// toHeight and repoints "latest" at the highest surviving height
	// (clearing it when nothing remains). Historical archives are never
	// touched: completed games are not revised by a reorg of the current
	// game. RollBack(0) resets all current state while keeping the archive.
	RollBack(toHeight uint32) error

	// PruneFrom removes everything at or above fromHeight. Used at startup
	// when the operator replays from an earlier height.
	PruneFrom(fromHeight uint32) error
}

// MetadataStorage registers strap asset identifiers as they are first
// observed, so clients can enumerate every collectible variant that has
// ever existed. Entries are never deleted.
type MetadataStorage interface {
	// Lookup returns the strap minted under the asset id, or ErrNotFound.
	Lookup(assetID event.AssetID) (event.Strap, error)

	// Record upserts the asset id → strap mapping. Idempotent.
	Record(assetID event.AssetID, strap event.Strap) error

	// AllKnownIDs lists every registered asset id.
	AllKnownIDs() ([]event.AssetID, error)

	// AllKnown lists every registered (asset id, strap) pair.
	AllKnown() ([]snapshot.StrapMetadata, error)
}
