// Package testutil holds small fixtures shared by package tests.
package testutil

import (
	"github.com/rs/zerolog"

	"StrappedIndexer/internal/event"
)

// NopLogger returns a logger that discards everything.
func NopLogger() zerolog.Logger {
	return zerolog.Nop()
}

// ContractID returns a deterministic contract id filled with seed.
func ContractID(seed byte) event.ContractID {
	var id event.ContractID
	for i := range id {
		id[i] = seed
	}
	return id
}

// Strap is a shorthand strap constructor.
func Strap(level uint8, kind event.StrapKind, mod event.Modifier) event.Strap {
	return event.Strap{Level: level, Kind: kind, Modifier: mod}
}

// U32 returns a pointer to v.
func U32(v uint32) *uint32 {
	return &v
}
