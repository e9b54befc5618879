package persistence

import (
	"fmt"
	"testing"

	"StrappedIndexer/internal/event"
	"StrappedIndexer/internal/snapshot"
)

// Both backends must satisfy the same contract, so every test runs against
// both.
func eachStore(t *testing.T, fn func(t *testing.T, s SnapshotStorage)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemorySnapshotStorage())
	})
	t.Run("badger", func(t *testing.T) {
		snaps, _, db, err := OpenBadger(t.TempDir())
		if err != nil {
			t.Fatalf("open badger: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		fn(t, snaps)
	})
}

func eachMetadataStore(t *testing.T, fn func(t *testing.T, m MetadataStorage)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryMetadataStorage())
	})
	t.Run("badger", func(t *testing.T) {
		_, meta, db, err := OpenBadger(t.TempDir())
		if err != nil {
			t.Fatalf("open badger: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		fn(t, meta)
	})
}

func overviewAt(gameID, height uint32) snapshot.OverviewSnapshot {
	o := snapshot.NewOverview()
	o.GameID = gameID
	o.CurrentBlockHeight = height
	return o
}

func TestLatestOverviewEmpty(t *testing.T) {
	eachStore(t, func(t *testing.T, s SnapshotStorage) {
		_, _, err := s.LatestOverview()
		if !IsNotFound(err) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestOverviewLatestPointerAdvances(t *testing.T) {
	eachStore(t, func(t *testing.T, s SnapshotStorage) {
		for _, h := range []uint32{10, 11, 12} {
			if err := s.UpdateOverview(overviewAt(1, h), h); err != nil {
				t.Fatalf("update at %d: %v", h, err)
			}
		}
		o, h, err := s.LatestOverview()
		if err != nil {
			t.Fatalf("latest: %v", err)
		}
		if h != 12 || o.CurrentBlockHeight != 12 {
			t.Errorf("latest = (game %d, height %d), want height 12", o.GameID, h)
		}
	})
}

func TestAccountRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, s SnapshotStorage) {
		if err := s.UpdateOverview(overviewAt(3, 20), 20); err != nil {
			t.Fatal(err)
		}

		acc := snapshot.NewAccount()
		acc.TotalChipBet = 500
		if err := s.UpdateAccount("alice", 3, acc, 20); err != nil {
			t.Fatal(err)
		}

		got, h, err := s.LatestAccount("alice")
		if err != nil {
			t.Fatalf("latest account: %v", err)
		}
		if got.TotalChipBet != 500 || h != 20 {
			t.Errorf("got (bet=%d, height=%d), want (500, 20)", got.TotalChipBet, h)
		}

		got, _, err = s.AccountAt("alice", 3)
		if err != nil {
			t.Fatalf("account at: %v", err)
		}
		if got.TotalChipBet != 500 {
			t.Errorf("AccountAt bet = %d, want 500", got.TotalChipBet)
		}

		if _, _, err := s.LatestAccount("bob"); !IsNotFound(err) {
			t.Errorf("unknown account err = %v, want ErrNotFound", err)
		}
		if _, _, err := s.AccountAt("alice", 99); !IsNotFound(err) {
			t.Errorf("unknown game err = %v, want ErrNotFound", err)
		}
	})
}

// LatestAccount is scoped to the game in progress: a record from an earlier
// game must not surface once the overview moved on.
func TestLatestAccountTracksCurrentGame(t *testing.T) {
	eachStore(t, func(t *testing.T, s SnapshotStorage) {
		if err := s.UpdateOverview(overviewAt(1, 10), 10); err != nil {
			t.Fatal(err)
		}
		acc := snapshot.NewAccount()
		acc.TotalChipBet = 7
		if err := s.UpdateAccount("alice", 1, acc, 10); err != nil {
			t.Fatal(err)
		}

		if err := s.UpdateOverview(overviewAt(2, 11), 11); err != nil {
			t.Fatal(err)
		}
		if _, _, err := s.LatestAccount("alice"); !IsNotFound(err) {
			t.Errorf("err = %v, want ErrNotFound for new game", err)
		}
		if _, _, err := s.AccountAt("alice", 1); err != nil {
			t.Errorf("old game record should survive: %v", err)
		}
	})
}

func TestRollBackRemovesAboveHeight(t *testing.T) {
	eachStore(t, func(t *testing.T, s SnapshotStorage) {
		for _, h := range []uint32{5, 6, 7, 8} {
			if err := s.UpdateOverview(overviewAt(1, h), h); err != nil {
				t.Fatal(err)
			}
		}
		early := snapshot.NewAccount()
		early.TotalChipBet = 1
		late := snapshot.NewAccount()
		late.TotalChipBet = 2
		if err := s.UpdateAccount("alice", 1, early, 6); err != nil {
			t.Fatal(err)
		}
		if err := s.UpdateAccount("bob", 1, late, 8); err != nil {
			t.Fatal(err)
		}
		if err := s.WriteHistorical(0, snapshot.NewHistorical(0, nil, nil, nil)); err != nil {
			t.Fatal(err)
		}

		if err := s.RollBack(6); err != nil {
			t.Fatalf("rollback: %v", err)
		}

		_, h, err := s.LatestOverview()
		if err != nil {
			t.Fatalf("latest after rollback: %v", err)
		}
		if h != 6 {
			t.Errorf("latest height = %d, want 6", h)
		}
		if _, _, err := s.AccountAt("alice", 1); err != nil {
			t.Errorf("record at height 6 should survive: %v", err)
		}
		if _, _, err := s.AccountAt("bob", 1); !IsNotFound(err) {
			t.Errorf("record at height 8 should be gone, err = %v", err)
		}
		if _, err := s.Historical(0); err != nil {
			t.Errorf("historical archive must survive rollback: %v", err)
		}
	})
}

// A rollback spanning many heights and accounts must not be bounded by any
// single-transaction limit of the backend.
func TestRollBackManyRecords(t *testing.T) {
	eachStore(t, func(t *testing.T, s SnapshotStorage) {
		for h := uint32(1); h <= 300; h++ {
			if err := s.UpdateOverview(overviewAt(1, h), h); err != nil {
				t.Fatal(err)
			}
			player := event.Identity(fmt.Sprintf("player-%03d", h))
			if err := s.UpdateAccount(player, 1, snapshot.NewAccount(), h); err != nil {
				t.Fatal(err)
			}
		}

		if err := s.RollBack(10); err != nil {
			t.Fatalf("rollback: %v", err)
		}

		_, h, err := s.LatestOverview()
		if err != nil {
			t.Fatalf("latest after rollback: %v", err)
		}
		if h != 10 {
			t.Errorf("latest height = %d, want 10", h)
		}
		if _, _, err := s.AccountAt("player-010", 1); err != nil {
			t.Errorf("record at height 10 should survive: %v", err)
		}
		if _, _, err := s.AccountAt("player-011", 1); !IsNotFound(err) {
			t.Errorf("record at height 11 should be gone, err = %v", err)
		}
		if _, _, err := s.AccountAt("player-300", 1); !IsNotFound(err) {
			t.Errorf("record at height 300 should be gone, err = %v", err)
		}
	})
}

func TestRollBackToZeroKeepsArchive(t *testing.T) {
	eachStore(t, func(t *testing.T, s SnapshotStorage) {
		if err := s.UpdateOverview(overviewAt(2, 30), 30); err != nil {
			t.Fatal(err)
		}
		if err := s.UpdateAccount("alice", 2, snapshot.NewAccount(), 30); err != nil {
			t.Fatal(err)
		}
		if err := s.WriteHistorical(1, snapshot.NewHistorical(1, nil, nil, nil)); err != nil {
			t.Fatal(err)
		}

		if err := s.RollBack(0); err != nil {
			t.Fatalf("rollback: %v", err)
		}

		if _, _, err := s.LatestOverview(); !IsNotFound(err) {
			t.Errorf("overview err = %v, want ErrNotFound", err)
		}
		if _, _, err := s.AccountAt("alice", 2); !IsNotFound(err) {
			t.Errorf("account err = %v, want ErrNotFound", err)
		}
		if _, err := s.Historical(1); err != nil {
			t.Errorf("historical archive must survive full reset: %v", err)
		}
	})
}

func TestPruneFromMatchesRollBack(t *testing.T) {
	eachStore(t, func(t *testing.T, s SnapshotStorage) {
		for _, h := range []uint32{5, 6, 7} {
			if err := s.UpdateOverview(overviewAt(1, h), h); err != nil {
				t.Fatal(err)
			}
		}
		if err := s.PruneFrom(6); err != nil {
			t.Fatalf("prune: %v", err)
		}
		_, h, err := s.LatestOverview()
		if err != nil {
			t.Fatalf("latest: %v", err)
		}
		if h != 5 {
			t.Errorf("latest = %d, want 5", h)
		}
	})
}

func TestPruneFromZeroClearsCurrentState(t *testing.T) {
	eachStore(t, func(t *testing.T, s SnapshotStorage) {
		if err := s.UpdateOverview(overviewAt(1, 5), 5); err != nil {
			t.Fatal(err)
		}
		if err := s.WriteHistorical(0, snapshot.NewHistorical(0, nil, nil, nil)); err != nil {
			t.Fatal(err)
		}
		if err := s.PruneFrom(0); err != nil {
			t.Fatalf("prune: %v", err)
		}
		if _, _, err := s.LatestOverview(); !IsNotFound(err) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
		if _, err := s.Historical(0); err != nil {
			t.Errorf("archive must survive: %v", err)
		}
	})
}

func TestHistoricalRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, s SnapshotStorage) {
		archive := snapshot.NewHistorical(4,
			[]event.Roll{event.RollSix, event.RollEight},
			[]snapshot.TriggeredModifier{{RollIndex: 1, Modifier: event.ModLucky, ModifierRoll: event.RollEight}},
			[]event.StrapReward{{Roll: event.RollSix, Strap: event.Strap{Kind: event.KindHat}, Cost: 12}},
		)
		if err := s.WriteHistorical(4, archive); err != nil {
			t.Fatal(err)
		}
		got, err := s.Historical(4)
		if err != nil {
			t.Fatalf("historical: %v", err)
		}
		if len(got.Rolls) != 2 || got.Rolls[1] != event.RollEight {
			t.Errorf("rolls = %v", got.Rolls)
		}
		if len(got.Modifiers) != 1 || got.Modifiers[0].Modifier != event.ModLucky {
			t.Errorf("modifiers = %v", got.Modifiers)
		}
		if len(got.StrapRewards) != 1 || got.StrapRewards[0].Cost != 12 {
			t.Errorf("rewards = %v", got.StrapRewards)
		}
		if _, err := s.Historical(5); !IsNotFound(err) {
			t.Errorf("missing game err = %v, want ErrNotFound", err)
		}
	})
}

func TestMetadataRegistry(t *testing.T) {
	eachMetadataStore(t, func(t *testing.T, m MetadataStorage) {
		var contract event.ContractID
		contract[0] = 1

		hat := event.Strap{Level: 1, Kind: event.KindHat, Modifier: event.ModNothing}
		belt := event.Strap{Level: 2, Kind: event.KindBelt, Modifier: event.ModHoly}

		for _, s := range []event.Strap{hat, belt, hat} { // duplicate on purpose
			if err := m.Record(s.AssetID(contract), s); err != nil {
				t.Fatal(err)
			}
		}

		got, err := m.Lookup(hat.AssetID(contract))
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		if got != hat {
			t.Errorf("lookup = %+v, want %+v", got, hat)
		}

		all, err := m.AllKnown()
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 2 {
			t.Fatalf("len(AllKnown) = %d, want 2", len(all))
		}
		ids, err := m.AllKnownIDs()
		if err != nil {
			t.Fatal(err)
		}
		if len(ids) != 2 {
			t.Fatalf("len(AllKnownIDs) = %d, want 2", len(ids))
		}
		for i := 1; i < len(ids); i++ {
			if ids[i-1].String() >= ids[i].String() {
				t.Error("ids not in ascending order")
			}
		}

		var unknown event.AssetID
		if _, err := m.Lookup(unknown); !IsNotFound(err) {
			t.Errorf("unknown asset err = %v, want ErrNotFound", err)
		}
	})
}
