package indexer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CursorStore persists the last indexed block per pairing.
type CursorStore interface {
	LastBlock(ctx context.Context, contractID, eventID uuid.UUID) (uint64, bool, error)
	UpsertCursor(ctx context.Context, contractID, eventID uuid.UUID, block uint64) error
}

// HeadSource reports the chain head.
type HeadSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// Tracker computes block windows from stored cursors.
type Tracker struct {
	store CursorStore
	heads HeadSource
}

func NewTracker(store CursorStore, heads HeadSource) *Tracker {
	return &Tracker{store: store, heads: heads}
}

// NextWindow returns the next range to index for a pairing. ok is false
// when the cursor has reached the head and nothing should be fetched.
func (t *Tracker) NextWindow(ctx context.Context, contractID, eventID uuid.UUID, defaultStart, maxBatch uint64) (BlockRange, bool, error) {
	cursor, _, err := t.store.LastBlock(ctx, contractID, eventID)
	if err != nil {
		return BlockRange{}, false, fmt.Errorf("load cursor: %w", err)
	}
	head, err := t.heads.LatestBlockNumber(ctx)
	if err != nil {
		return BlockRange{}, false, fmt.Errorf("get latest block: %w", err)
	}
	return NextRange(cursor, defaultStart, head, maxBatch)
}

// Advance records block as indexed. Re-advancing to the same or an older
// block leaves the cursor unchanged.
func (t *Tracker) Advance(ctx context.Context, contractID, eventID uuid.UUID, block uint64) error {
	if err := t.store.UpsertCursor(ctx, contractID, eventID, block); err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}
	return nil
}
