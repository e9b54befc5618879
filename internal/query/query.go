// Package query defines the request messages the HTTP layer sends to the
// coordinator. Queries are answered from the coordinator's own goroutine,
// so responses are consistent with the event applied most recently; every
// reply carries a deep copy and never aliases coordinator state.
package query

import (
	"StrappedIndexer/internal/event"
	"StrappedIndexer/internal/snapshot"
)

// Query is the union of request messages. Each variant carries its own
// buffered reply channel (capacity 1) so the coordinator never blocks on a
// caller that gave up waiting.
type Query interface {
	isQuery()
}

// OverviewReply pairs the current-game overview with the height it reflects.
type OverviewReply struct {
	Snapshot snapshot.OverviewSnapshot
	Height   uint32
}

// LatestOverview requests the current game's overview. Reply is nil when no
// event has been applied yet.
type LatestOverview struct {
	Reply chan *OverviewReply
}

// AccountReply pairs an account snapshot with the height it reflects.
type AccountReply struct {
	Snapshot snapshot.AccountSnapshot
	Height   uint32
}

// LatestAccount requests one player's record for the game in progress.
// Reply is nil when the player has no record for that game.
type LatestAccount struct {
	Identity event.Identity
	Reply    chan *AccountReply
}

// HistoricalAccount requests one player's record for an explicit game id,
// current or completed.
type HistoricalAccount struct {
	Identity event.Identity
	GameID   uint32
	Reply    chan *AccountReply
}

// HistoricalGame requests the archive of a completed game. Reply is nil when
// the game was never archived.
type HistoricalGame struct {
	GameID uint32
	Reply  chan *snapshot.HistoricalSnapshot
}

// AllKnownStraps requests every strap variant ever observed, with the asset
// id each one mints under.
type AllKnownStraps struct {
	Reply chan []snapshot.StrapMetadata
}

func (LatestOverview) isQuery()    {}
func (LatestAccount) isQuery()     {}
func (HistoricalAccount) isQuery() {}
func (HistoricalGame) isQuery()    {}
func (AllKnownStraps) isQuery()    {}

// NewLatestOverview builds the query with its reply channel.
func NewLatestOverview() LatestOverview {
	return LatestOverview{Reply: make(chan *OverviewReply, 1)}
}

// NewLatestAccount builds the query with its reply channel.
func NewLatestAccount(identity event.Identity) LatestAccount {
	return LatestAccount{Identity: identity, Reply: make(chan *AccountReply, 1)}
}

// NewHistoricalAccount builds the query with its reply channel.
func NewHistoricalAccount(identity event.Identity, gameID uint32) HistoricalAccount {
	return HistoricalAccount{Identity: identity, GameID: gameID, Reply: make(chan *AccountReply, 1)}
}

// NewHistoricalGame builds the query with its reply channel.
func NewHistoricalGame(gameID uint32) HistoricalGame {
	return HistoricalGame{GameID: gameID, Reply: make(chan *snapshot.HistoricalSnapshot, 1)}
}

// NewAllKnownStraps builds the query with its reply channel.
func NewAllKnownStraps() AllKnownStraps {
	return AllKnownStraps{Reply: make(chan []snapshot.StrapMetadata, 1)}
}
