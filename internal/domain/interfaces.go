package domain

import (
	"context"
)

// CounterStore issues named, durable, strictly increasing sequence values.
type CounterStore interface {
	NextSequence(ctx context.Context, name string) (int64, error)
}

// AuctionReader is the read side of an auction store.
type AuctionReader interface {
	// ActiveAuction returns the active auction, or nil when none is active.
	ActiveAuction(ctx context.Context) (*Auction, error)
	ListAuctions(ctx context.Context) ([]Auction, error)
	Aggregate(ctx context.Context) (AuctionAggregate, error)
}

// AuctionStore owns the atomic primitives the ledger is built on.
// Every mutating call acts on "the record with is_active = true" and is atomic
// with respect to other callers, including other processes sharing the store.
type AuctionStore interface {
	CounterStore
	AuctionReader

	// InsertAuction writes a new record. Inserting a second active record
	// fails with ErrAuctionAlreadyActive.
	InsertAuction(ctx context.Context, a Auction) error

	// AppendBid raises highest_bid to max(current, amount), sets winner_id to senderID,
	// increments sequence_number and appends the bid at that position.
	// Returns ErrNoActiveAuction when nothing is active.
	AppendBid(ctx context.Context, amount, senderID int64, clientSeq *int64) (Auction, error)

	// CloseActive marks the active auction ended with the given final tally and
	// returns the closed view. Returns ErrNoActiveAuction when nothing is active.
	CloseActive(ctx context.Context, winnerID, highestBid int64) (Auction, error)

	Close() error
}
