package core

import (
	"fmt"

	"StrappedIndexer/internal/event"
	"StrappedIndexer/internal/persistence"
	"StrappedIndexer/internal/snapshot"
)

// applyEvent mutates the materialized snapshots for one event at the given
// block height. Events are already-validated contract outputs, so there is
// no game-rule checking here: unknown shop entries are ignored, arithmetic
// saturates, and out-of-range rolls clamp. Storage failures are returned
// and treated as fatal by the caller.
func (a *App) applyEvent(ev event.Event, height uint32) error {
	switch e := ev.(type) {
	case event.Initialized:
		return a.applyInitialized(e, height)
	case event.RollEvent:
		return a.applyRoll(e, height)
	case event.NewGame:
		return a.applyNewGame(e, height)
	case event.ModifierTriggered:
		return a.applyModifierTriggered(e, height)
	case event.PlaceChipBet:
		return a.applyPlaceChipBet(e, height)
	case event.PlaceStrapBet:
		return a.applyPlaceStrapBet(e, height)
	case event.ClaimRewards:
		return a.applyClaimRewards(e, height)
	case event.FundPot:
		return a.applyFundPot(e, height)
	case event.PurchaseModifier:
		return a.applyPurchaseModifier(e, height)
	default:
		return fmt.Errorf("unknown event type: %T", ev)
	}
}

// loadOverview returns the current overview, or a zero one when no event
// has been applied yet (or the state was just pruned).
func (a *App) loadOverview() (snapshot.OverviewSnapshot, error) {
	o, _, err := a.snapshots.LatestOverview()
	if persistence.IsNotFound(err) {
		return snapshot.NewOverview(), nil
	}
	if err != nil {
		return snapshot.OverviewSnapshot{}, err
	}
	return o, nil
}

// loadAccount returns the (player, game) record, or an empty one.
func (a *App) loadAccount(player event.Identity, gameID uint32) (snapshot.AccountSnapshot, error) {
	acc, _, err := a.snapshots.AccountAt(player, gameID)
	if persistence.IsNotFound(err) {
		return snapshot.NewAccount(), nil
	}
	if err != nil {
		return snapshot.AccountSnapshot{}, err
	}
	return acc, nil
}

func (a *App) applyInitialized(e event.Initialized, height uint32) error {
	if e.FirstHeight != height {
		a.logger.Warn().
			Uint32("event_first_height", e.FirstHeight).
			Uint32("batch_height", height).
			Msg("Initialized first_height disagrees with batch height, using batch height")
	}

	o := snapshot.NewOverview()
	o.CurrentBlockHeight = height
	freq := e.RollFrequency
	o.RollFrequency = &freq
	first := height
	o.FirstRollHeight = &first
	next := snapshot.SatAdd32(height, e.RollFrequency)
	o.NextRollHeight = &next

	a.logger.Info().
		Str("vrf_contract", e.VRFContractID.String()).
		Str("chip_asset", e.ChipAssetID.String()).
		Uint32("roll_frequency", e.RollFrequency).
		Msg("contract initialized")

	return a.snapshots.UpdateOverview(o, height)
}

func (a *App) applyRoll(e event.RollEvent, height uint32) error {
	o, err := a.loadOverview()
	if err != nil {
		return err
	}
	o.Rolls = append(o.Rolls, e.RolledValue)
	o.CurrentBlockHeight = height
	return a.snapshots.UpdateOverview(o, height)
}

func (a *App) applyNewGame(e event.NewGame, height uint32) error {
	prev, _, err := a.snapshots.LatestOverview()
	hadState := err == nil
	if err != nil && !persistence.IsNotFound(err) {
		return err
	}

	// Archive the finished game before it is replaced. WriteHistorical is
	// skipped if an archive already exists for the game id, so replays after
	// a rollback never clobber an earlier archive.
	if hadState {
		if _, err := a.snapshots.Historical(prev.GameID); persistence.IsNotFound(err) {
			archive := snapshot.NewHistorical(prev.GameID, prev.Rolls, a.triggeredModifiers(), prev.Rewards)
			if err := a.snapshots.WriteHistorical(prev.GameID, archive); err != nil {
				return err
			}
			if a.metrics != nil {
				a.metrics.HistoricalGames.Inc()
			}
			a.logger.Info().Uint32("game_id", prev.GameID).Msg("archived completed game")
		} else if err != nil {
			return err
		}
	}
	a.triggered = a.triggered[:0]

	o := snapshot.NewOverview()
	o.GameID = e.GameID
	o.Rewards = append([]event.StrapReward(nil), e.NewStraps...)
	o.ModifierShop = make([]snapshot.ModifierShopEntry, len(e.NewModifiers))
	for i, offer := range e.NewModifiers {
		o.ModifierShop[i] = snapshot.ModifierShopEntry{
			TriggerRoll: offer.TriggerRoll,
			TargetRoll:  offer.TargetRoll,
			Modifier:    offer.Modifier,
		}
	}

	// The pot and chain configuration outlive individual games.
	if hadState {
		o.PotSize = prev.PotSize
		o.RollFrequency = prev.RollFrequency
		o.NextRollHeight = prev.NextRollHeight
		o.FirstRollHeight = prev.FirstRollHeight
	}
	o.CurrentBlockHeight = height

	for _, reward := range e.NewStraps {
		if err := a.registerStrap(reward.Strap); err != nil {
			return err
		}
	}

	return a.snapshots.UpdateOverview(o, height)
}

func (a *App) applyModifierTriggered(e event.ModifierTriggered, height uint32) error {
	o, err := a.loadOverview()
	if err != nil {
		return err
	}

	mod := e.Modifier
	o.ModifiersActive[e.ModifierRoll.Index()] = &mod

	for i := range o.ModifierShop {
		entry := &o.ModifierShop[i]
		if entry.TriggerRoll == e.TriggerRoll && entry.TargetRoll == e.ModifierRoll && entry.Modifier == e.Modifier {
			entry.Triggered = true
		}
	}

	a.triggered = append(a.triggered, bufferedTrigger{
		height: height,
		TriggeredModifier: snapshot.TriggeredModifier{
			RollIndex:    e.RollIndex,
			Modifier:     e.Modifier,
			ModifierRoll: e.ModifierRoll,
		},
	})

	o.CurrentBlockHeight = height
	return a.snapshots.UpdateOverview(o, height)
}

func (a *App) applyPlaceChipBet(e event.PlaceChipBet, height uint32) error {
	o, err := a.loadOverview()
	if err != nil {
		return err
	}
	idx := e.Roll.Index()
	o.TotalBets[idx].ChipTotal = snapshot.SatAdd(o.TotalBets[idx].ChipTotal, e.Amount)
	o.PotSize = snapshot.SatAdd(o.PotSize, e.Amount)
	o.CurrentBlockHeight = height
	if err := a.snapshots.UpdateOverview(o, height); err != nil {
		return err
	}

	acc, err := a.loadAccount(e.Player, e.GameID)
	if err != nil {
		return err
	}
	acc.TotalChipBet = snapshot.SatAdd(acc.TotalChipBet, e.Amount)
	acc.AppendBet(e.Roll, snapshot.AccountBet{
		Kind:         snapshot.BetChip,
		Amount:       e.Amount,
		BetRollIndex: e.BetRollIndex,
	})
	return a.snapshots.UpdateAccount(e.Player, e.GameID, acc, height)
}

func (a *App) applyPlaceStrapBet(e event.PlaceStrapBet, height uint32) error {
	o, err := a.loadOverview()
	if err != nil {
		return err
	}
	idx := e.Roll.Index()
	o.TotalBets[idx].StrapBets = snapshot.MergeStrapBet(o.TotalBets[idx].StrapBets, e.Strap, e.Amount)
	o.CurrentBlockHeight = height
	if err := a.snapshots.UpdateOverview(o, height); err != nil {
		return err
	}

	acc, err := a.loadAccount(e.Player, e.GameID)
	if err != nil {
		return err
	}
	strap := e.Strap
	acc.StrapBets = snapshot.MergeStrapBet(acc.StrapBets, strap, e.Amount)
	acc.AppendBet(e.Roll, snapshot.AccountBet{
		Kind:         snapshot.BetStrap,
		Strap:        &strap,
		Amount:       e.Amount,
		BetRollIndex: e.BetRollIndex,
	})
	if err := a.snapshots.UpdateAccount(e.Player, e.GameID, acc, height); err != nil {
		return err
	}
	return a.registerStrap(e.Strap)
}

func (a *App) applyClaimRewards(e event.ClaimRewards, height uint32) error {
	o, err := a.loadOverview()
	if err != nil {
		return err
	}
	o.PotSize = snapshot.SatSub(o.PotSize, e.TotalChipsWinnings)
	o.CurrentBlockHeight = height
	if err := a.snapshots.UpdateOverview(o, height); err != nil {
		return err
	}

	acc, err := a.loadAccount(e.Player, e.GameID)
	if err != nil {
		return err
	}
	acc.TotalChipWon = snapshot.SatAdd(acc.TotalChipWon, e.TotalChipsWinnings)
	acc.ClaimedRewards = &snapshot.ClaimedRewards{
		Chips:  e.TotalChipsWinnings,
		Straps: append([]event.StrapAmount(nil), e.TotalStrapWinnings...),
	}
	if err := a.snapshots.UpdateAccount(e.Player, e.GameID, acc, height); err != nil {
		return err
	}

	for _, won := range e.TotalStrapWinnings {
		if err := a.registerStrap(won.Strap); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) applyFundPot(e event.FundPot, height uint32) error {
	o, err := a.loadOverview()
	if err != nil {
		return err
	}
	o.PotSize = snapshot.SatAdd(o.PotSize, e.ChipsAmount)
	o.CurrentBlockHeight = height
	return a.snapshots.UpdateOverview(o, height)
}

func (a *App) applyPurchaseModifier(e event.PurchaseModifier, height uint32) error {
	o, err := a.loadOverview()
	if err != nil {
		return err
	}

	mod := e.ExpectedModifier
	o.ModifiersActive[e.ExpectedRoll.Index()] = &mod

	for i := range o.ModifierShop {
		entry := &o.ModifierShop[i]
		if entry.TargetRoll == e.ExpectedRoll && entry.Modifier == e.ExpectedModifier {
			entry.Purchased = true
		}
	}

	o.CurrentBlockHeight = height
	return a.snapshots.UpdateOverview(o, height)
}

// registerStrap records the strap's derived asset id so it shows up in the
// known-straps listing. Idempotent.
func (a *App) registerStrap(strap event.Strap) error {
	return a.metadata.Record(strap.AssetID(a.contract), strap)
}

// triggeredModifiers returns the current game's unlocked modifiers in
// trigger order, for archiving.
func (a *App) triggeredModifiers() []snapshot.TriggeredModifier {
	out := make([]snapshot.TriggeredModifier, 0, len(a.triggered))
	for _, t := range a.triggered {
		out = append(out, t.TriggeredModifier)
	}
	return out
}
