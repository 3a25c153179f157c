package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"auction_go/internal/domain"
	"auction_go/internal/infra"
	"auction_go/internal/infra/storage"
)

// LiveSink receives every view the ledger has durably written.
type LiveSink interface {
	Offer(view domain.Auction) bool
}

// LedgerConfig wires a Ledger.
type LedgerConfig struct {
	// Durable is the authoritative store. Unused by MemoryOnly.
	Durable domain.AuctionStore
	// Counters overrides where auction ids come from (e.g. Redis). Defaults to the
	// durable store, or to process memory under MemoryOnly.
	Counters    domain.CounterStore
	Policy      domain.PersistencePolicy
	StartPolicy domain.StartPolicy
	Live        LiveSink
	Metrics     *infra.Metrics
}

// Ledger owns write access to auction records and applies start, order and end events.
// It holds no locks of its own: ordering within an auction comes from the store's
// atomic conditional updates, so several ledgers may share one durable store.
type Ledger struct {
	working     domain.AuctionStore  // where the running auction lives
	archive     domain.AuctionStore  // where ended auctions are copied; nil when working is already durable
	scratch     *storage.MemoryStore // non-nil when working is process memory
	alloc       *Allocator
	policy      domain.PersistencePolicy
	startPolicy domain.StartPolicy
	live        LiveSink
	metrics     *infra.Metrics
}

// NewLedger builds a ledger for the configured persistence policy.
func NewLedger(cfg LedgerConfig) (*Ledger, error) {
	policy := cfg.Policy
	if policy == "" {
		policy = domain.PersistEveryBid
	}
	startPolicy := cfg.StartPolicy
	if startPolicy == "" {
		startPolicy = domain.RejectWhileActive
	}

	l := &Ledger{
		policy:      policy,
		startPolicy: startPolicy,
		live:        cfg.Live,
		metrics:     cfg.Metrics,
	}
	if l.metrics == nil {
		l.metrics = &infra.Metrics{}
	}

	counters := cfg.Counters
	switch policy {
	case domain.PersistEveryBid:
		if cfg.Durable == nil {
			return nil, fmt.Errorf("%s requires a durable store", policy)
		}
		l.working = cfg.Durable
	case domain.PersistOnEndOnly:
		if cfg.Durable == nil {
			return nil, fmt.Errorf("%s requires a durable store", policy)
		}
		l.scratch = storage.NewMemoryStore()
		l.working = l.scratch
		l.archive = cfg.Durable
	case domain.MemoryOnly:
		l.scratch = storage.NewMemoryStore()
		l.working = l.scratch
		if counters == nil {
			counters = l.scratch
		}
	default:
		return nil, fmt.Errorf("unknown persistence policy %q", policy)
	}
	if counters == nil {
		counters = cfg.Durable
	}
	l.alloc = NewAllocator(counters)

	return l, nil
}

// Policy returns the persistence policy in effect.
func (l *Ledger) Policy() domain.PersistencePolicy {
	return l.policy
}

// Start opens a new auction and returns its initial view.
func (l *Ledger) Start(ctx context.Context, item *domain.Item) (domain.Auction, error) {
	defer l.observe(time.Now())

	active, err := l.working.ActiveAuction(ctx)
	if err != nil {
		l.metrics.RecordError()
		return domain.Auction{}, err
	}
	if active != nil {
		if l.startPolicy != domain.ForceClose {
			return domain.Auction{}, domain.ErrAuctionAlreadyActive
		}
		slog.WarnContext(ctx, "Force-closing active auction before start",
			slog.Int64("auction_id", active.AuctionID),
			slog.Int64("highest_bid", active.HighestBid),
			slog.Int64("winner_id", active.WinnerID))
		if _, err := l.End(ctx, active.WinnerID, active.HighestBid); err != nil && !errors.Is(err, domain.ErrNoActiveAuction) {
			return domain.Auction{}, err
		}
	}

	id, err := l.alloc.Next(ctx, AuctionCounter)
	if err != nil {
		l.metrics.RecordError()
		return domain.Auction{}, err
	}

	a := domain.NewAuction(id, item, time.Now())
	if err := l.working.InsertAuction(ctx, a); err != nil {
		l.metrics.RecordError()
		if errors.Is(err, domain.ErrAuctionAlreadyActive) {
			// Another start committed between our check and insert; the id stays unused.
			slog.WarnContext(ctx, "Start lost race to a concurrent start, allocated id unused", slog.Int64("auction_id", id))
			return domain.Auction{}, err
		}
		incons := &domain.LedgerInconsistentError{AuctionID: id, Reason: "allocated id was not persisted", Err: err}
		slog.ErrorContext(ctx, "LEDGER_INCONSISTENT", slog.Int64("auction_id", id), slog.Any("error", err))
		return domain.Auction{}, incons
	}

	l.metrics.RecordAuctionStarted()
	slog.InfoContext(ctx, "Auction started", slog.Int64("auction_id", id), slog.String("policy", string(l.policy)))
	l.publish(a)
	return a, nil
}

// SubmitBid appends one bid to the active auction. The winner becomes senderID on every
// accepted bid, whether or not it raised the highest bid. clientSeq is kept for
// diagnostics; the ledger assigns the authoritative position.
func (l *Ledger) SubmitBid(ctx context.Context, amount, senderID int64, clientSeq *int64) (domain.BidReceipt, error) {
	defer l.observe(time.Now())

	a, err := l.working.AppendBid(ctx, amount, senderID, clientSeq)
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveAuction) {
			l.metrics.RecordBidRejected()
		} else {
			l.metrics.RecordError()
		}
		return domain.BidReceipt{}, err
	}

	if clientSeq != nil && *clientSeq != a.SequenceNumber {
		slog.DebugContext(ctx, "Client sequence differs from ledger position",
			slog.Int64("auction_id", a.AuctionID),
			slog.Int64("client_sequence", *clientSeq),
			slog.Int64("sequence_number", a.SequenceNumber))
	}

	l.metrics.RecordBidAccepted()
	l.publish(a)
	return domain.BidReceipt{
		AcceptedSequence: a.SequenceNumber,
		HighestBid:       a.HighestBid,
		WinnerID:         a.WinnerID,
		Auction:          a,
	}, nil
}

// End closes the active auction with the caller's final tally. The tally is trusted;
// disagreement with the bid history is reported in EndResult.Mismatch, not as an error.
func (l *Ledger) End(ctx context.Context, winnerID, highestBid int64) (domain.EndResult, error) {
	defer l.observe(time.Now())

	a, err := l.working.CloseActive(ctx, winnerID, highestBid)
	if err != nil {
		if !errors.Is(err, domain.ErrNoActiveAuction) {
			l.metrics.RecordError()
		}
		return domain.EndResult{}, err
	}

	if l.archive != nil {
		if err := l.archive.InsertAuction(ctx, a); err != nil {
			// The ended auction stays in process memory and is still listed.
			l.metrics.RecordError()
			slog.ErrorContext(ctx, "LEDGER_INCONSISTENT", slog.Int64("auction_id", a.AuctionID), slog.Any("error", err))
			return domain.EndResult{}, &domain.LedgerInconsistentError{AuctionID: a.AuctionID, Reason: "ended auction was not archived", Err: err}
		}
		l.scratch.Discard(a.AuctionID)
	}

	res := domain.EndResult{AuctionID: a.AuctionID, Auction: a}
	if ledgerMax := a.MaxBid(); ledgerMax != highestBid {
		res.Mismatch = &domain.FinalTallyMismatch{
			AuctionID:        a.AuctionID,
			ReportedWinnerID: winnerID,
			ReportedBid:      highestBid,
			LedgerWinnerID:   a.LastBidder(),
			LedgerMaxBid:     ledgerMax,
		}
		l.metrics.RecordTallyMismatch()
		slog.WarnContext(ctx, "FINAL_TALLY_MISMATCH",
			slog.Int64("auction_id", a.AuctionID),
			slog.Int64("reported_bid", highestBid),
			slog.Int64("reported_winner", winnerID),
			slog.Int64("ledger_max_bid", ledgerMax))
	}

	l.metrics.RecordAuctionEnded()
	slog.InfoContext(ctx, "Auction ended",
		slog.Int64("auction_id", a.AuctionID),
		slog.Int64("winner_id", winnerID),
		slog.Int64("highest_bid", highestBid),
		slog.Int("bids", len(a.BidHistory)))
	l.publish(a)
	return res, nil
}

// ActiveAuction returns the running auction, or nil.
func (l *Ledger) ActiveAuction(ctx context.Context) (*domain.Auction, error) {
	return l.working.ActiveAuction(ctx)
}

// ListAuctions returns every known auction ordered by id.
func (l *Ledger) ListAuctions(ctx context.Context) ([]domain.Auction, error) {
	working, err := l.working.ListAuctions(ctx)
	if err != nil || l.archive == nil {
		return working, err
	}

	archived, err := l.archive.ListAuctions(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]bool, len(archived))
	for _, a := range archived {
		seen[a.AuctionID] = true
	}
	for _, a := range working {
		if !seen[a.AuctionID] {
			archived = append(archived, a)
		}
	}
	sort.Slice(archived, func(i, j int) bool {
		return archived[i].AuctionID < archived[j].AuctionID
	})
	return archived, nil
}

// Aggregate combines the working and archive stores.
func (l *Ledger) Aggregate(ctx context.Context) (domain.AuctionAggregate, error) {
	working, err := l.working.Aggregate(ctx)
	if err != nil || l.archive == nil {
		return working, err
	}
	archived, err := l.archive.Aggregate(ctx)
	if err != nil {
		return domain.AuctionAggregate{}, err
	}
	return mergeAggregates(archived, working), nil
}

var _ domain.AuctionReader = (*Ledger)(nil)

func mergeAggregates(a, b domain.AuctionAggregate) domain.AuctionAggregate {
	out := domain.AuctionAggregate{
		ConcludedCount: a.ConcludedCount + b.ConcludedCount,
		ActiveCount:    a.ActiveCount + b.ActiveCount,
		SumHighestBid:  a.SumHighestBid + b.SumHighestBid,
		TotalBids:      a.TotalBids + b.TotalBids,
	}
	switch {
	case a.ConcludedCount == 0:
		out.MaxHighestBid, out.MinHighestBid = b.MaxHighestBid, b.MinHighestBid
	case b.ConcludedCount == 0:
		out.MaxHighestBid, out.MinHighestBid = a.MaxHighestBid, a.MinHighestBid
	default:
		out.MaxHighestBid = max(a.MaxHighestBid, b.MaxHighestBid)
		out.MinHighestBid = min(a.MinHighestBid, b.MinHighestBid)
	}
	return out
}

func (l *Ledger) publish(a domain.Auction) {
	if l.live != nil {
		l.live.Offer(a)
	}
}

func (l *Ledger) observe(start time.Time) {
	l.metrics.RecordLatency(time.Since(start))
}
