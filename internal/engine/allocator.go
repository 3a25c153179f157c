package engine

import (
	"context"
	"errors"
	"sync"

	"auction_go/internal/domain"
)

// AuctionCounter is the counter name auction ids are drawn from.
const AuctionCounter = "auction_id"

// Allocator issues globally unique, strictly increasing ids from a durable counter.
// Uniqueness comes from the store's atomic increment; the allocator additionally refuses
// any value that does not move past the last one it handed out in this process.
type Allocator struct {
	store domain.CounterStore

	mu   sync.Mutex
	last map[string]int64
}

// NewAllocator creates an allocator over the given counter store.
func NewAllocator(store domain.CounterStore) *Allocator {
	return &Allocator{
		store: store,
		last:  make(map[string]int64),
	}
}

// Next atomically increments the named counter and returns the new value.
func (a *Allocator) Next(ctx context.Context, name string) (int64, error) {
	v, err := a.store.NextSequence(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrStorageUnavailable) {
			return 0, err
		}
		return 0, domain.NewStorageError("next_sequence", err)
	}
	if v <= 0 {
		return 0, &domain.LedgerInconsistentError{AuctionID: v, Reason: "counter " + name + " returned a non-positive value"}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if v <= a.last[name] {
		return 0, &domain.LedgerInconsistentError{AuctionID: v, Reason: "counter " + name + " did not advance past a value already issued"}
	}
	a.last[name] = v
	return v, nil
}
