package service

import (
	"context"
	"log/slog"
	"sync"

	"auction_go/internal/domain"
)

// LiveState is the in-memory view of the current (or most recently touched) auction.
// It is a cache: it follows the ledger's successful writes and can be rebuilt from the store.
type LiveState struct {
	// pub serializes swap and notify so listeners see views in cache order.
	pub sync.Mutex

	mu        sync.RWMutex
	view      domain.Auction
	staged    *domain.Item
	listeners []func(domain.Auction)
}

// NewLiveState creates a cache holding the empty inactive view.
func NewLiveState() *LiveState {
	return &LiveState{view: domain.EmptyAuction()}
}

// Read returns a copy of the cached view without touching storage.
func (s *LiveState) Read() domain.Auction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.view.Clone()
}

// BidHistory returns a copy of the cached bid history.
func (s *LiveState) BidHistory() []domain.Bid {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Bid, len(s.view.BidHistory))
	copy(out, s.view.BidHistory)
	return out
}

// Update replaces the cached view unconditionally.
func (s *LiveState) Update(view domain.Auction) {
	s.pub.Lock()
	defer s.pub.Unlock()

	s.mu.Lock()
	s.view = view.Clone()
	s.mu.Unlock()

	s.notify(view)
}

// Offer replaces the cached view unless it is older than what is cached. Ledger writes
// that finish out of order therefore never roll the view back.
func (s *LiveState) Offer(view domain.Auction) bool {
	s.pub.Lock()
	defer s.pub.Unlock()

	s.mu.Lock()
	if isStale(s.view, view) {
		s.mu.Unlock()
		return false
	}
	s.view = view.Clone()
	s.mu.Unlock()

	s.notify(view)
	return true
}

// isStale reports whether next is older than cur. Auction ids only grow, so any view of
// an earlier auction is stale. Must be called with lock held
func isStale(cur, next domain.Auction) bool {
	if cur.AuctionID == 0 || next.AuctionID == 0 {
		return false
	}
	if next.AuctionID != cur.AuctionID {
		return next.AuctionID < cur.AuctionID
	}
	if !cur.IsActive && next.IsActive {
		return true
	}
	return cur.IsActive == next.IsActive && next.SequenceNumber < cur.SequenceNumber
}

// Subscribe registers fn to be called with every accepted view, in acceptance order.
// Listeners run on the writer's goroutine and must not block.
func (s *LiveState) Subscribe(fn func(domain.Auction)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listeners = append(s.listeners, fn)
}

func (s *LiveState) notify(view domain.Auction) {
	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(view.Clone())
	}
}

// StageItem records the lot for the next start and resets the view to an inactive
// placeholder carrying it.
func (s *LiveState) StageItem(item domain.Item) {
	view := domain.EmptyAuction()
	view.Item = &item

	s.pub.Lock()
	defer s.pub.Unlock()

	s.mu.Lock()
	s.staged = &item
	s.view = view.Clone()
	s.mu.Unlock()

	s.notify(view)
}

// StagedItem returns the staged lot, or nil.
func (s *LiveState) StagedItem() *domain.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.staged.Clone()
}

// Rebuild loads the active auction from reader. With nothing active the cache keeps its
// current view.
func (s *LiveState) Rebuild(ctx context.Context, reader domain.AuctionReader) error {
	active, err := reader.ActiveAuction(ctx)
	if err != nil {
		return err
	}
	if active == nil {
		slog.InfoContext(ctx, "Live state rebuilt: no active auction")
		return nil
	}

	s.Update(*active)
	slog.InfoContext(ctx, "Live state rebuilt",
		slog.Int64("auction_id", active.AuctionID),
		slog.Int64("sequence_number", active.SequenceNumber))
	return nil
}
