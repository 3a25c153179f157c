package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"auction_go/internal/domain"
)

// MemoryStore keeps auctions in process memory with the same atomicity as Storage.
// It backs the memory_only policy and the working set of persist_on_end_only.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]int64
	auctions map[int64]*domain.Auction
	activeID int64 // 0 when nothing is active
}

var _ domain.AuctionStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]int64),
		auctions: make(map[int64]*domain.Auction),
	}
}

func (m *MemoryStore) Close() error { return nil }

func checkCtx(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return domain.NewStorageError(op, err)
	}
	return nil
}

// NextSequence increments the named counter and returns the new value, starting from 1.
func (m *MemoryStore) NextSequence(ctx context.Context, name string) (int64, error) {
	if err := checkCtx(ctx, "next_sequence"); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters[name]++
	return m.counters[name], nil
}

// InsertAuction stores a copy of a.
func (m *MemoryStore) InsertAuction(ctx context.Context, a domain.Auction) error {
	if err := checkCtx(ctx, "insert_auction"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.auctions[a.AuctionID]; exists {
		return fmt.Errorf("auction %d: %w", a.AuctionID, domain.ErrDuplicateAuctionID)
	}
	if a.IsActive && m.activeID != 0 {
		return domain.ErrAuctionAlreadyActive
	}

	c := a.Clone()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	m.auctions[c.AuctionID] = &c
	if c.IsActive {
		m.activeID = c.AuctionID
	}
	return nil
}

// AppendBid applies one bid to the active auction.
func (m *MemoryStore) AppendBid(ctx context.Context, amount, senderID int64, clientSeq *int64) (domain.Auction, error) {
	if err := checkCtx(ctx, "append_bid"); err != nil {
		return domain.Auction{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	a := m.active()
	if a == nil {
		return domain.Auction{}, domain.ErrNoActiveAuction
	}

	a.SequenceNumber++
	if amount > a.HighestBid {
		a.HighestBid = amount
	}
	a.WinnerID = senderID
	a.BidHistory = append(a.BidHistory, domain.Bid{
		Bid:            amount,
		SenderID:       senderID,
		SequenceNumber: a.SequenceNumber,
		ClientSequence: clientSeq,
	})
	return a.Clone(), nil
}

// CloseActive ends the active auction with the caller's final tally.
func (m *MemoryStore) CloseActive(ctx context.Context, winnerID, highestBid int64) (domain.Auction, error) {
	if err := checkCtx(ctx, "close_active"); err != nil {
		return domain.Auction{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	a := m.active()
	if a == nil {
		return domain.Auction{}, domain.ErrNoActiveAuction
	}

	now := time.Now()
	a.IsActive = false
	a.WinnerID = winnerID
	a.HighestBid = highestBid
	a.EndedAt = &now
	m.activeID = 0
	return a.Clone(), nil
}

// Discard drops an auction; used once persist_on_end_only has archived it.
func (m *MemoryStore) Discard(auctionID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.auctions, auctionID)
	if m.activeID == auctionID {
		m.activeID = 0
	}
}

// ActiveAuction returns a copy of the active auction or nil.
func (m *MemoryStore) ActiveAuction(ctx context.Context) (*domain.Auction, error) {
	if err := checkCtx(ctx, "active_auction"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	a := m.active()
	if a == nil {
		return nil, nil
	}
	c := a.Clone()
	return &c, nil
}

// ListAuctions returns copies of all auctions ordered by id.
func (m *MemoryStore) ListAuctions(ctx context.Context) ([]domain.Auction, error) {
	if err := checkCtx(ctx, "list_auctions"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Auction, 0, len(m.auctions))
	for _, a := range m.auctions {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AuctionID < out[j].AuctionID
	})
	return out, nil
}

// Aggregate scans all auctions under the lock, giving a point-in-time snapshot.
func (m *MemoryStore) Aggregate(ctx context.Context) (domain.AuctionAggregate, error) {
	if err := checkCtx(ctx, "aggregate"); err != nil {
		return domain.AuctionAggregate{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var agg domain.AuctionAggregate
	for _, a := range m.auctions {
		if a.IsActive {
			agg.ActiveCount++
			continue
		}
		if agg.ConcludedCount == 0 || a.HighestBid > agg.MaxHighestBid {
			agg.MaxHighestBid = a.HighestBid
		}
		if agg.ConcludedCount == 0 || a.HighestBid < agg.MinHighestBid {
			agg.MinHighestBid = a.HighestBid
		}
		agg.ConcludedCount++
		agg.SumHighestBid += a.HighestBid
		agg.TotalBids += int64(len(a.BidHistory))
	}
	return agg, nil
}

// active must be called with the lock held.
func (m *MemoryStore) active() *domain.Auction {
	if m.activeID == 0 {
		return nil
	}
	return m.auctions[m.activeID]
}
