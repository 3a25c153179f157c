package domain

import (
	"time"
)

// AuctionRecord is the persisted row of an auction.
// IsActive carries a partial unique index so that at most one row can be active.
type AuctionRecord struct {
	AuctionID       int64      `gorm:"primaryKey;autoIncrement:false" json:"auction_id"`
	IsActive        bool       `gorm:"not null;uniqueIndex:idx_one_active,where:is_active = true" json:"is_active"`
	HighestBid      int64      `gorm:"not null" json:"highest_bid"`
	WinnerID        int64      `gorm:"not null" json:"winner_id"`
	SequenceNumber  int64      `gorm:"not null" json:"sequence_number"`
	ItemName        string     `json:"item_name"`
	ItemDescription string     `json:"item_description"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	EndedAt         *time.Time `json:"ended_at"`
}

func (AuctionRecord) TableName() string { return "auctions" }

// BidRecord is one row of an auction's bid history.
type BidRecord struct {
	ID             uint      `gorm:"primaryKey"`
	AuctionID      int64     `gorm:"not null;uniqueIndex:idx_auction_seq,priority:1" json:"auction_id"`
	SequenceNumber int64     `gorm:"not null;uniqueIndex:idx_auction_seq,priority:2" json:"sequence_number"`
	Bid            int64     `gorm:"not null" json:"bid"`
	SenderID       int64     `gorm:"not null" json:"sender_id"`
	ClientSequence *int64    `json:"client_sequence"`
	CreatedAt      time.Time `json:"created_at"`
}

func (BidRecord) TableName() string { return "bids" }

// Counter is a named monotonically increasing sequence.
type Counter struct {
	Name      string    `gorm:"primaryKey" json:"name"`
	Value     int64     `gorm:"not null;default:0" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Counter) TableName() string { return "counters" }

// ToAuction assembles the view from a record and its ordered bids.
func (r AuctionRecord) ToAuction(bids []BidRecord) Auction {
	a := Auction{
		AuctionID:      r.AuctionID,
		IsActive:       r.IsActive,
		HighestBid:     r.HighestBid,
		WinnerID:       r.WinnerID,
		SequenceNumber: r.SequenceNumber,
		BidHistory:     make([]Bid, 0, len(bids)),
		CreatedAt:      r.CreatedAt,
		EndedAt:        r.EndedAt,
	}
	if r.ItemName != "" || r.ItemDescription != "" {
		a.Item = &Item{Name: r.ItemName, Description: r.ItemDescription}
	}
	for _, b := range bids {
		a.BidHistory = append(a.BidHistory, Bid{
			Bid:            b.Bid,
			SenderID:       b.SenderID,
			SequenceNumber: b.SequenceNumber,
			ClientSequence: b.ClientSequence,
		})
	}
	return a
}

// NewAuctionRecord flattens a view into its row (bids are stored separately).
func NewAuctionRecord(a Auction) AuctionRecord {
	r := AuctionRecord{
		AuctionID:      a.AuctionID,
		IsActive:       a.IsActive,
		HighestBid:     a.HighestBid,
		WinnerID:       a.WinnerID,
		SequenceNumber: a.SequenceNumber,
		CreatedAt:      a.CreatedAt,
		EndedAt:        a.EndedAt,
	}
	if a.Item != nil {
		r.ItemName = a.Item.Name
		r.ItemDescription = a.Item.Description
	}
	return r
}
