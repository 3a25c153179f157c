package domain

import "time"

// NoWinner is the winner id of an auction that has not received any bid.
const NoWinner int64 = -1

// Item describes the lot being auctioned.
type Item struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Bid is one accepted offer. SequenceNumber is assigned by the ledger;
// ClientSequence is whatever the device claimed and is kept for diagnostics only.
type Bid struct {
	Bid            int64  `json:"bid"`
	SenderID       int64  `json:"sender_id"`
	SequenceNumber int64  `json:"sequence_number"`
	ClientSequence *int64 `json:"client_sequence,omitempty"`
}

// Auction is the full view of one bidding round.
type Auction struct {
	AuctionID      int64      `json:"auction_id"`
	IsActive       bool       `json:"is_active"`
	HighestBid     int64      `json:"highest_bid"`
	WinnerID       int64      `json:"winner_id"`
	SequenceNumber int64      `json:"sequence_number"`
	BidHistory     []Bid      `json:"bid_history"`
	Item           *Item      `json:"item,omitempty"`
	CreatedAt      time.Time  `json:"created_at,omitzero"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

// NewAuction returns a freshly started auction with zeroed counters.
func NewAuction(id int64, item *Item, now time.Time) Auction {
	return Auction{
		AuctionID:  id,
		IsActive:   true,
		WinnerID:   NoWinner,
		BidHistory: []Bid{},
		Item:       item.Clone(),
		CreatedAt:  now,
	}
}

// EmptyAuction is the inactive placeholder view used before any auction exists.
func EmptyAuction() Auction {
	return Auction{WinnerID: NoWinner, BidHistory: []Bid{}}
}

// Clone returns a deep copy; callers may mutate it freely.
func (a Auction) Clone() Auction {
	out := a
	out.BidHistory = make([]Bid, len(a.BidHistory))
	copy(out.BidHistory, a.BidHistory)
	out.Item = a.Item.Clone()
	if a.EndedAt != nil {
		t := *a.EndedAt
		out.EndedAt = &t
	}
	return out
}

// MaxBid is the largest amount in the history, 0 when empty.
func (a Auction) MaxBid() int64 {
	var max int64
	for _, b := range a.BidHistory {
		if b.Bid > max {
			max = b.Bid
		}
	}
	return max
}

// LastBidder is the sender of the most recent bid, NoWinner when empty.
func (a Auction) LastBidder() int64 {
	if len(a.BidHistory) == 0 {
		return NoWinner
	}
	return a.BidHistory[len(a.BidHistory)-1].SenderID
}

// Clone copies the item; nil stays nil.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

// BidReceipt is the post-update view returned by a successful bid.
type BidReceipt struct {
	AcceptedSequence int64   `json:"accepted_sequence_number"`
	HighestBid       int64   `json:"new_highest_bid"`
	WinnerID         int64   `json:"new_winner_id"`
	Auction          Auction `json:"current_state"`
}

// EndResult is returned by a successful end event.
type EndResult struct {
	AuctionID int64               `json:"auction_id"`
	Auction   Auction             `json:"-"`
	Mismatch  *FinalTallyMismatch `json:"final_tally_mismatch,omitempty"`
}

// AuctionAggregate holds raw aggregate figures over concluded auctions.
type AuctionAggregate struct {
	ConcludedCount int64
	ActiveCount    int64
	SumHighestBid  int64
	MaxHighestBid  int64
	MinHighestBid  int64
	TotalBids      int64
}
