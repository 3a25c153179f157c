package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"auction_go/internal/domain"
	"auction_go/internal/infra/storage"

	"github.com/shopspring/decimal"
)

func TestStats_NoConcludedAuctions(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	store.InsertAuction(ctx, domain.NewAuction(1, nil, time.Now()))

	st, err := NewStatsService(store).Compute(ctx)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if !st.AverageWinningBid.IsZero() || !st.AverageBidsPerAuction.IsZero() {
		t.Errorf("expected zero averages, got %+v", st)
	}
	if st.MaxWinningBid != 0 || st.MinWinningBid != 0 || st.TotalConcluded != 0 {
		t.Errorf("expected zero figures, got %+v", st)
	}
	if st.TotalActive != 1 {
		t.Errorf("expected 1 active, got %d", st.TotalActive)
	}
}

func TestStats_Compute(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	// Auction 1: three bids, tally 20. Auction 2: one bid, tally 5. Auction 3: no bids, tally 0.
	runs := []struct {
		id      int64
		bids    []int64
		closing int64
	}{
		{1, []int64{10, 15, 20}, 20},
		{2, []int64{5}, 5},
		{3, nil, 0},
	}
	for _, r := range runs {
		if err := store.InsertAuction(ctx, domain.NewAuction(r.id, nil, time.Now())); err != nil {
			t.Fatal(err)
		}
		for _, b := range r.bids {
			store.AppendBid(ctx, b, 1, nil)
		}
		if _, err := store.CloseActive(ctx, 1, r.closing); err != nil {
			t.Fatal(err)
		}
	}

	st, err := NewStatsService(store).Compute(ctx)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	// 25 / 3 and 4 / 3
	if want := decimal.RequireFromString("8.33"); !st.AverageWinningBid.Equal(want) {
		t.Errorf("average winning bid: got %s, want %s", st.AverageWinningBid, want)
	}
	if want := decimal.RequireFromString("1.33"); !st.AverageBidsPerAuction.Equal(want) {
		t.Errorf("average bids: got %s, want %s", st.AverageBidsPerAuction, want)
	}
	if st.MaxWinningBid != 20 || st.MinWinningBid != 0 {
		t.Errorf("max/min: got %d/%d", st.MaxWinningBid, st.MinWinningBid)
	}
	if st.TotalConcluded != 3 || st.TotalActive != 0 {
		t.Errorf("totals: got %d concluded, %d active", st.TotalConcluded, st.TotalActive)
	}
}

func TestStats_StorageError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStatsService(storage.NewMemoryStore()).Compute(ctx)
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("expected ErrStorageUnavailable, got %v", err)
	}
}
