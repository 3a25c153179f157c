package event

import (
	"fmt"

	"auction_go/internal/domain"
)

// MessageType identifies an inbound auction event.
type MessageType string

const (
	TypeStart MessageType = "start"
	TypeOrder MessageType = "order"
	TypeEnd   MessageType = "end"
)

// Message is the inbound event sent by bidder devices.
// Only the fields relevant to MessageType are read; SequenceNumber is informational.
type Message struct {
	MessageType    MessageType  `json:"message_type"`
	MessageID      int64        `json:"message_id"`
	Bid            int64        `json:"bid"`
	SenderID       int64        `json:"sender_id"`
	SequenceNumber *int64       `json:"sequence_number,omitempty"`
	WinnerID       int64        `json:"winner_id"`
	HighestBid     int64        `json:"highest_bid"`
	Item           *domain.Item `json:"item,omitempty"`
}

// Validate checks the message type and the amounts it carries.
func (m *Message) Validate() error {
	switch m.MessageType {
	case TypeStart:
		return nil
	case TypeOrder:
		if m.Bid < 0 {
			return fmt.Errorf("%w: bid must be non-negative, got %d", domain.ErrInvalidMessage, m.Bid)
		}
		return nil
	case TypeEnd:
		if m.HighestBid < 0 {
			return fmt.Errorf("%w: highest_bid must be non-negative, got %d", domain.ErrInvalidMessage, m.HighestBid)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownMessageType, m.MessageType)
	}
}

// OrderReply is returned for an accepted order event.
type OrderReply struct {
	Status       string         `json:"status"`
	CurrentState domain.Auction `json:"current_state"`
}

// EndReply is returned for an accepted end event.
type EndReply struct {
	AuctionID          int64                      `json:"auction_id"`
	IsActive           bool                       `json:"is_active"`
	FinalTallyMismatch *domain.FinalTallyMismatch `json:"final_tally_mismatch,omitempty"`
}

// StatusReceived is the status string of an accepted order.
const StatusReceived = "message received"
