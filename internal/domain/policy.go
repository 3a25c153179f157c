package domain

import "fmt"

// PersistencePolicy decides when auction state reaches the durable store.
type PersistencePolicy string

const (
	// PersistEveryBid writes every start, bid and end straight to the durable store.
	PersistEveryBid PersistencePolicy = "persist_every_bid"
	// PersistOnEndOnly keeps the running auction in memory and archives it on end.
	PersistOnEndOnly PersistencePolicy = "persist_on_end_only"
	// MemoryOnly never touches the durable store.
	MemoryOnly PersistencePolicy = "memory_only"
)

// ParsePersistencePolicy validates a configured policy name. Empty means PersistEveryBid.
func ParsePersistencePolicy(s string) (PersistencePolicy, error) {
	switch p := PersistencePolicy(s); p {
	case "":
		return PersistEveryBid, nil
	case PersistEveryBid, PersistOnEndOnly, MemoryOnly:
		return p, nil
	default:
		return "", fmt.Errorf("unknown persistence policy %q", s)
	}
}

// StartPolicy decides what a start event does while another auction is active.
type StartPolicy string

const (
	// RejectWhileActive fails the start with ErrAuctionAlreadyActive.
	RejectWhileActive StartPolicy = "reject"
	// ForceClose ends the active auction with its own tally, then starts the new one.
	ForceClose StartPolicy = "force_close"
)

// ParseStartPolicy validates a configured start policy. Empty means RejectWhileActive.
func ParseStartPolicy(s string) (StartPolicy, error) {
	switch p := StartPolicy(s); p {
	case "":
		return RejectWhileActive, nil
	case RejectWhileActive, ForceClose:
		return p, nil
	default:
		return "", fmt.Errorf("unknown start policy %q", s)
	}
}
