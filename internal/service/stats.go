package service

import (
	"context"

	"auction_go/internal/domain"

	"github.com/shopspring/decimal"
)

// averagePlaces is the rounding applied to averages.
const averagePlaces = 2

// Stats is the analytics summary over concluded auctions.
type Stats struct {
	AverageWinningBid     decimal.Decimal `json:"average_winning_bid"`
	AverageBidsPerAuction decimal.Decimal `json:"average_bids_per_auction"`
	MaxWinningBid         int64           `json:"max_winning_bid"`
	MinWinningBid         int64           `json:"min_winning_bid"`
	TotalActive           int64           `json:"total_active_auctions"`
	TotalConcluded        int64           `json:"total_concluded_auctions"`
}

// StatsService derives Stats from a store aggregate. It never writes.
type StatsService struct {
	reader domain.AuctionReader
}

// NewStatsService creates a StatsService reading through reader.
func NewStatsService(reader domain.AuctionReader) *StatsService {
	return &StatsService{reader: reader}
}

// Compute returns the current figures. With no concluded auctions every figure is zero.
func (s *StatsService) Compute(ctx context.Context) (Stats, error) {
	agg, err := s.reader.Aggregate(ctx)
	if err != nil {
		return Stats{}, err
	}
	return statsFromAggregate(agg), nil
}

func statsFromAggregate(agg domain.AuctionAggregate) Stats {
	st := Stats{
		AverageWinningBid:     decimal.Zero,
		AverageBidsPerAuction: decimal.Zero,
		TotalActive:           agg.ActiveCount,
		TotalConcluded:        agg.ConcludedCount,
	}
	if agg.ConcludedCount == 0 {
		return st
	}

	n := decimal.NewFromInt(agg.ConcludedCount)
	st.AverageWinningBid = decimal.NewFromInt(agg.SumHighestBid).DivRound(n, averagePlaces)
	st.AverageBidsPerAuction = decimal.NewFromInt(agg.TotalBids).DivRound(n, averagePlaces)
	st.MaxWinningBid = agg.MaxHighestBid
	st.MinWinningBid = agg.MinHighestBid
	return st
}
