package domain

import (
	"testing"
	"time"
)

func TestNewAuction(t *testing.T) {
	item := &Item{Name: "Lamp", Description: "Brass desk lamp"}
	a := NewAuction(4, item, time.Unix(100, 0))

	if !a.IsActive || a.AuctionID != 4 {
		t.Fatalf("unexpected auction header: %+v", a)
	}
	if a.WinnerID != NoWinner || a.HighestBid != 0 || a.SequenceNumber != 0 {
		t.Errorf("counters should start zeroed, got %+v", a)
	}
	if a.BidHistory == nil || len(a.BidHistory) != 0 {
		t.Errorf("history should be empty and non-nil, got %#v", a.BidHistory)
	}

	item.Name = "changed"
	if a.Item.Name != "Lamp" {
		t.Error("auction should hold its own copy of the item")
	}
}

func TestAuction_Clone(t *testing.T) {
	ended := time.Unix(200, 0)
	a := Auction{
		AuctionID:  1,
		BidHistory: []Bid{{Bid: 10, SenderID: 1, SequenceNumber: 1}},
		Item:       &Item{Name: "Vase"},
		EndedAt:    &ended,
	}

	c := a.Clone()
	c.BidHistory[0].Bid = 99
	c.Item.Name = "Bowl"
	*c.EndedAt = time.Unix(0, 0)

	if a.BidHistory[0].Bid != 10 {
		t.Error("clone shares bid history with original")
	}
	if a.Item.Name != "Vase" {
		t.Error("clone shares item with original")
	}
	if !a.EndedAt.Equal(ended) {
		t.Error("clone shares ended_at with original")
	}
}

func TestAuction_MaxBidAndLastBidder(t *testing.T) {
	a := EmptyAuction()
	if a.MaxBid() != 0 || a.LastBidder() != NoWinner {
		t.Errorf("empty auction: max=%d last=%d", a.MaxBid(), a.LastBidder())
	}

	a.BidHistory = []Bid{
		{Bid: 10, SenderID: 1, SequenceNumber: 1},
		{Bid: 5, SenderID: 2, SequenceNumber: 2},
	}
	if a.MaxBid() != 10 {
		t.Errorf("MaxBid = %d, want 10", a.MaxBid())
	}
	if a.LastBidder() != 2 {
		t.Errorf("LastBidder = %d, want 2", a.LastBidder())
	}
}

func TestAuctionRecord_RoundTrip(t *testing.T) {
	a := NewAuction(9, &Item{Name: "Clock", Description: "Wall clock"}, time.Unix(300, 0))
	a.HighestBid = 12
	a.WinnerID = 3
	a.SequenceNumber = 1

	rec := NewAuctionRecord(a)
	seq := int64(42)
	got := rec.ToAuction([]BidRecord{{AuctionID: 9, SequenceNumber: 1, Bid: 12, SenderID: 3, ClientSequence: &seq}})

	if got.Item == nil || got.Item.Name != "Clock" {
		t.Fatalf("item lost: %+v", got.Item)
	}
	if len(got.BidHistory) != 1 || got.BidHistory[0].SenderID != 3 || *got.BidHistory[0].ClientSequence != 42 {
		t.Errorf("history lost: %+v", got.BidHistory)
	}

	noItem := NewAuctionRecord(NewAuction(10, nil, time.Unix(0, 0))).ToAuction(nil)
	if noItem.Item != nil {
		t.Errorf("empty item columns should map to nil item, got %+v", noItem.Item)
	}
}

func TestParsePolicies(t *testing.T) {
	tests := []struct {
		in      string
		want    PersistencePolicy
		wantErr bool
	}{
		{"", PersistEveryBid, false},
		{"persist_every_bid", PersistEveryBid, false},
		{"persist_on_end_only", PersistOnEndOnly, false},
		{"memory_only", MemoryOnly, false},
		{"sometimes", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePersistencePolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParsePersistencePolicy(%q) = %q, %v", tt.in, got, err)
		}
	}

	if p, err := ParseStartPolicy(""); err != nil || p != RejectWhileActive {
		t.Errorf("default start policy = %q, %v", p, err)
	}
	if p, err := ParseStartPolicy("force_close"); err != nil || p != ForceClose {
		t.Errorf("force_close = %q, %v", p, err)
	}
	if _, err := ParseStartPolicy("ignore"); err == nil {
		t.Error("expected error for unknown start policy")
	}
}
