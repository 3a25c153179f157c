package engine

import (
	"context"
	"fmt"
	"log/slog"

	"auction_go/internal/domain"
	"auction_go/internal/event"
)

// ItemStager supplies the lot staged for the next start, if any.
type ItemStager interface {
	StagedItem() *domain.Item
}

// Dispatcher routes inbound device messages to the ledger.
type Dispatcher struct {
	ledger *Ledger
	stager ItemStager
}

// NewDispatcher creates a dispatcher. stager may be nil.
func NewDispatcher(ledger *Ledger, stager ItemStager) *Dispatcher {
	return &Dispatcher{ledger: ledger, stager: stager}
}

// Ledger returns the underlying ledger.
func (d *Dispatcher) Ledger() *Ledger {
	return d.ledger
}

// Dispatch validates msg and applies it. The reply is the auction view for start,
// an OrderReply for order and an EndReply for end.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *event.Message) (reply any, err error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", domain.ErrInvalidMessage)
	}
	msgType, msgID := msg.MessageType, msg.MessageID

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "CRITICAL_PANIC_DETECTED",
				slog.Any("panic", r),
				slog.String("message_type", string(msgType)),
				slog.Int64("message_id", msgID))
			reply, err = nil, fmt.Errorf("dispatch %s: panic: %v", msgType, r)
		}
	}()

	if err := msg.Validate(); err != nil {
		slog.WarnContext(ctx, "Rejected message",
			slog.String("message_type", string(msg.MessageType)),
			slog.Int64("message_id", msg.MessageID),
			slog.Any("error", err))
		return nil, err
	}

	switch msg.MessageType {
	case event.TypeStart:
		return d.start(ctx, msg)
	case event.TypeOrder:
		return d.order(ctx, msg)
	case event.TypeEnd:
		return d.end(ctx, msg)
	}
	// Validate already rejected anything else.
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownMessageType, msg.MessageType)
}

func (d *Dispatcher) start(ctx context.Context, msg *event.Message) (any, error) {
	item := msg.Item.Clone()
	if item == nil && d.stager != nil {
		item = d.stager.StagedItem()
	}
	a, err := d.ledger.Start(ctx, item)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (d *Dispatcher) order(ctx context.Context, msg *event.Message) (any, error) {
	receipt, err := d.ledger.SubmitBid(ctx, msg.Bid, msg.SenderID, msg.SequenceNumber)
	if err != nil {
		return nil, err
	}
	return event.OrderReply{Status: event.StatusReceived, CurrentState: receipt.Auction}, nil
}

func (d *Dispatcher) end(ctx context.Context, msg *event.Message) (any, error) {
	res, err := d.ledger.End(ctx, msg.WinnerID, msg.HighestBid)
	if err != nil {
		return nil, err
	}
	return event.EndReply{
		AuctionID:          res.AuctionID,
		IsActive:           false,
		FinalTallyMismatch: res.Mismatch,
	}, nil
}
