package persistence

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v2"

	"StrappedIndexer/internal/event"
	"StrappedIndexer/internal/snapshot"
)

// Key spaces inside the shared badger instance. Overview and historical keys
// embed a big-endian u32 so lexicographic iteration is height/game order:
// "remove everything above H" is a forward scan with early exit and the
// scan's last survivor is the new latest.
var (
	overviewPrefix   = []byte("ov:")
	latestHeightKey  = []byte("om:latest")
	accountPrefix    = []byte("ac:")
	historicalPrefix = []byte("hs:")
	metadataPrefix   = []byte("md:")
)

// BadgerSnapshotStorage is the durable backend. The database is opened with
// synchronous writes, so every acknowledged update survives a crash. That
// trades throughput for durability, which is acceptable because ingestion
// cadence is per event batch, not per event.
type BadgerSnapshotStorage struct {
	db *badger.DB
}

// BadgerMetadataStorage shares the database with the snapshot storage but
// owns its own key space.
type BadgerMetadataStorage struct {
	db *badger.DB
}

// snapshotRecord is the stored value shape: the snapshot plus the height it
// was written at, so account rollback can filter without parsing keys.
type snapshotRecord[T any] struct {
	Snapshot T      `json:"snapshot"`
	Height   uint32 `json:"height"`
}

// OpenBadger opens (creating if needed) the database at dir and returns both
// stores backed by it. Close the returned handle when done.
func OpenBadger(dir string) (*BadgerSnapshotStorage, *BadgerMetadataStorage, *badger.DB, error) {
	opts := badger.DefaultOptions(dir).
		WithSyncWrites(true).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return &BadgerSnapshotStorage{db: db}, &BadgerMetadataStorage{db: db}, db, nil
}

func overviewKey(height uint32) []byte {
	key := make([]byte, 0, len(overviewPrefix)+4)
	key = append(key, overviewPrefix...)
	return binary.BigEndian.AppendUint32(key, height)
}

func overviewKeyHeight(key []byte) uint32 {
	return binary.BigEndian.Uint32(key[len(overviewPrefix):])
}

func accountRecordKey(account event.Identity, gameID uint32) []byte {
	key := make([]byte, 0, len(accountPrefix)+len(account)+5)
	key = append(key, accountPrefix...)
	key = append(key, account...)
	key = append(key, 0x00)
	return binary.BigEndian.AppendUint32(key, gameID)
}

func historicalKey(gameID uint32) []byte {
	key := make([]byte, 0, len(historicalPrefix)+4)
	key = append(key, historicalPrefix...)
	return binary.BigEndian.AppendUint32(key, gameID)
}

func metadataKey(assetID event.AssetID) []byte {
	key := make([]byte, 0, len(metadataPrefix)+len(assetID))
	key = append(key, metadataPrefix...)
	return append(key, assetID[:]...)
}

func (b *BadgerSnapshotStorage) LatestOverview() (snapshot.OverviewSnapshot, uint32, error) {
	var rec snapshotRecord[snapshot.OverviewSnapshot]
	err := b.db.View(func(txn *badger.Txn) error {
		height, err := latestHeight(txn)
		if err != nil {
			return err
		}
		return getJSON(txn, overviewKey(height), &rec)
	})
	if err != nil {
		return snapshot.OverviewSnapshot{}, 0, err
	}
	return rec.Snapshot, rec.Height, nil
}

func (b *BadgerSnapshotStorage) LatestAccount(account event.Identity) (snapshot.AccountSnapshot, uint32, error) {
	var rec snapshotRecord[snapshot.AccountSnapshot]
	err := b.db.View(func(txn *badger.Txn) error {
		height, err := latestHeight(txn)
		if err != nil {
			return err
		}
		var overview snapshotRecord[snapshot.OverviewSnapshot]
		if err := getJSON(txn, overviewKey(height), &overview); err != nil {
			return err
		}
		return getJSON(txn, accountRecordKey(account, overview.Snapshot.GameID), &rec)
	})
	if err != nil {
		return snapshot.AccountSnapshot{}, 0, err
	}
	return rec.Snapshot, rec.Height, nil
}

func (b *BadgerSnapshotStorage) AccountAt(account event.Identity, gameID uint32) (snapshot.AccountSnapshot, uint32, error) {
	var rec snapshotRecord[snapshot.AccountSnapshot]
	err := b.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, accountRecordKey(account, gameID), &rec)
	})
	if err != nil {
		return snapshot.AccountSnapshot{}, 0, err
	}
	return rec.Snapshot, rec.Height, nil
}

func (b *BadgerSnapshotStorage) UpdateOverview(s snapshot.OverviewSnapshot, height uint32) error {
	rec := snapshotRecord[snapshot.OverviewSnapshot]{Snapshot: s, Height: height}
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode overview record: %w", err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(overviewKey(height), value); err != nil {
			return err
		}
		return txn.Set(latestHeightKey, binary.BigEndian.AppendUint32(nil, height))
	})
	if err != nil {
		return fmt.Errorf("persist overview at height %d: %w", height, err)
	}
	return nil
}

func (b *BadgerSnapshotStorage) UpdateAccount(account event.Identity, gameID uint32, s snapshot.AccountSnapshot, height uint32) error {
	rec := snapshotRecord[snapshot.AccountSnapshot]{Snapshot: s, Height: height}
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode account record: %w", err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(accountRecordKey(account, gameID), value)
	})
	if err != nil {
		return fmt.Errorf("persist account %s game %d: %w", account, gameID, err)
	}
	return nil
}

func (b *BadgerSnapshotStorage) Historical(gameID uint32) (snapshot.HistoricalSnapshot, error) {
	var s snapshot.HistoricalSnapshot
	err := b.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, historicalKey(gameID), &s)
	})
	if err != nil {
		return snapshot.HistoricalSnapshot{}, err
	}
	return s, nil
}

func (b *BadgerSnapshotStorage) WriteHistorical(gameID uint32, s snapshot.HistoricalSnapshot) error {
	value, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode historical record: %w", err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(historicalKey(gameID), value)
	})
	if err != nil {
		return fmt.Errorf("persist historical game %d: %w", gameID, err)
	}
	return nil
}

func (b *BadgerSnapshotStorage) RollBack(toHeight uint32) error {
	// Doomed keys are collected under a read transaction first. The deletes
	// then go through a write batch, which splits itself into as many
	// transactions as needed; a rollback spanning many heights and accounts
	// would overflow a single transaction.
	var doomed [][]byte
	var latestSurvivor *uint32

	err := b.db.View(func(txn *badger.Txn) error {
		// Overviews: forward scan in height order. Keys above toHeight are
		// deleted; the last survivor becomes the new latest pointer.
		it := txn.NewIterator(badger.IteratorOptions{Prefix: overviewPrefix})
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			height := overviewKeyHeight(key)
			if height > toHeight {
				doomed = append(doomed, key)
			} else {
				h := height
				latestSurvivor = &h
			}
		}
		it.Close()

		// Accounts carry their height inside the record.
		it = txn.NewIterator(badger.IteratorOptions{Prefix: accountPrefix})
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var rec snapshotRecord[snapshot.AccountSnapshot]
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				it.Close()
				return fmt.Errorf("decode account record during rollback: %w", err)
			}
			if rec.Height > toHeight {
				doomed = append(doomed, item.KeyCopy(nil))
			}
		}
		it.Close()

		// Historical archives are game-scoped and immutable; not touched.
		return nil
	})
	if err != nil {
		return fmt.Errorf("roll back to height %d: %w", toHeight, err)
	}

	// The latest pointer is written first, so a crash mid-flush leaves it on
	// a surviving overview. Rerunning the rollback finishes the deletes.
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	if latestSurvivor != nil {
		if err := wb.Set(latestHeightKey, binary.BigEndian.AppendUint32(nil, *latestSurvivor)); err != nil {
			return fmt.Errorf("repoint latest height: %w", err)
		}
	} else if err := wb.Delete(latestHeightKey); err != nil {
		return fmt.Errorf("clear latest height: %w", err)
	}
	for _, key := range doomed {
		if err := wb.Delete(key); err != nil {
			return fmt.Errorf("delete during rollback: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("roll back to height %d: %w", toHeight, err)
	}
	return nil
}

func (b *BadgerSnapshotStorage) PruneFrom(fromHeight uint32) error {
	if fromHeight > 0 {
		return b.RollBack(fromHeight - 1)
	}

	var doomed [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		for _, prefix := range [][]byte{overviewPrefix, accountPrefix} {
			it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
			for it.Rewind(); it.Valid(); it.Next() {
				doomed = append(doomed, it.Item().KeyCopy(nil))
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("prune from genesis: %w", err)
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	if err := wb.Delete(latestHeightKey); err != nil {
		return fmt.Errorf("clear latest height: %w", err)
	}
	for _, key := range doomed {
		if err := wb.Delete(key); err != nil {
			return fmt.Errorf("delete during prune: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("prune from genesis: %w", err)
	}
	return nil
}

func (b *BadgerMetadataStorage) Lookup(assetID event.AssetID) (event.Strap, error) {
	var strap event.Strap
	err := b.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, metadataKey(assetID), &strap)
	})
	if err != nil {
		return event.Strap{}, err
	}
	return strap, nil
}

func (b *BadgerMetadataStorage) Record(assetID event.AssetID, strap event.Strap) error {
	value, err := json.Marshal(strap)
	if err != nil {
		return fmt.Errorf("encode strap metadata: %w", err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(metadataKey(assetID), value)
	})
	if err != nil {
		return fmt.Errorf("persist strap metadata %s: %w", assetID, err)
	}
	return nil
}

func (b *BadgerMetadataStorage) AllKnownIDs() ([]event.AssetID, error) {
	var ids []event.AssetID
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: metadataPrefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			var id event.AssetID
			copy(id[:], key[len(metadataPrefix):])
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list strap asset ids: %w", err)
	}
	return ids, nil
}

func (b *BadgerMetadataStorage) AllKnown() ([]snapshot.StrapMetadata, error) {
	var out []snapshot.StrapMetadata
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: metadataPrefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var id event.AssetID
			copy(id[:], item.Key()[len(metadataPrefix):])
			var strap event.Strap
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &strap)
			})
			if err != nil {
				return fmt.Errorf("decode strap metadata: %w", err)
			}
			out = append(out, snapshot.StrapMetadata{AssetID: id, Strap: strap})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list strap metadata: %w", err)
	}
	return out, nil
}

func latestHeight(txn *badger.Txn) (uint32, error) {
	item, err := txn.Get(latestHeightKey)
	if err == badger.ErrKeyNotFound {
		return 0, fmt.Errorf("latest height: %w", ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("read latest height: %w", err)
	}
	var height uint32
	err = item.Value(func(val []byte) error {
		if len(val) != 4 {
			return fmt.Errorf("latest height value is %d bytes, want 4", len(val))
		}
		height = binary.BigEndian.Uint32(val)
		return nil
	})
	return height, err
}

func getJSON(txn *badger.Txn, key []byte, dst any) error {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return fmt.Errorf("key %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read key %q: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, dst); err != nil {
			return fmt.Errorf("decode record at %q: %w", key, err)
		}
		return nil
	})
}
