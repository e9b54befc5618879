// Package ingestion pulls contract event batches off the chain feed and
// converts them into typed events for the coordinator.
package ingestion

import (
	"context"

	"StrappedIndexer/internal/event"
)

// EventBatch is every contract event emitted at one block height, in
// emission order. A batch may be empty if the block touched the contract
// without emitting logs.
type EventBatch struct {
	Height uint32
	Events []event.Event
}

// EventSource yields event batches in block order. Implementations block
// until the next batch is available or ctx is done. A batch whose height is
// at or below a previously returned height signals a chain reorganization;
// the consumer is expected to roll its state back before applying it.
type EventSource interface {
	NextEventBatch(ctx context.Context) (EventBatch, error)
}
