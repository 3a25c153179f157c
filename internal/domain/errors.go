package domain

import (
	"errors"
	"fmt"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

var (
	// ErrNoActiveAuction is returned when a bid or end event arrives with nothing active.
	ErrNoActiveAuction = errors.New("no active auction found")

	// ErrAuctionAlreadyActive is returned by start when another auction is still open.
	ErrAuctionAlreadyActive = errors.New("an auction is already active")

	// ErrStorageUnavailable matches every StorageError.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrLedgerInconsistent matches every LedgerInconsistentError.
	ErrLedgerInconsistent = errors.New("ledger inconsistent")

	// ErrDuplicateAuctionID is returned by a store asked to insert an id it already holds.
	ErrDuplicateAuctionID = errors.New("auction id already exists")

	// ErrUnknownMessageType is returned for events other than start, order and end.
	ErrUnknownMessageType = errors.New("unknown message type")

	// ErrInvalidMessage is returned for a known message type carrying unusable fields.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)

// StorageError wraps a failure of the backing store (unreachable, timeout, driver error).
type StorageError struct {
	Op  string // Store operation that failed (e.g., "submit_bid", "next_sequence")
	Err error
}

func (e *StorageError) Error() string {
	return "storage unavailable: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) IsRetriable() bool {
	return true
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorageUnavailable
}

// NewStorageError creates a retriable storage error
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// LedgerInconsistentError reports a split between the id allocator and the auction records,
// e.g. an id was allocated but the record could not be written.
type LedgerInconsistentError struct {
	AuctionID int64
	Reason    string
	Err       error
}

func (e *LedgerInconsistentError) Error() string {
	msg := fmt.Sprintf("ledger inconsistent (auction_id=%d): %s", e.AuctionID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LedgerInconsistentError) IsRetriable() bool {
	return false
}

func (e *LedgerInconsistentError) Unwrap() error {
	return e.Err
}

func (e *LedgerInconsistentError) Is(target error) bool {
	return target == ErrLedgerInconsistent
}

// FinalTallyMismatch is reported (never returned as a failure) when the end event's
// highest bid differs from the maximum found in the ledger's own bid history.
type FinalTallyMismatch struct {
	AuctionID        int64
	ReportedWinnerID int64
	ReportedBid      int64
	LedgerWinnerID   int64
	LedgerMaxBid     int64
}

func (m *FinalTallyMismatch) Error() string {
	return fmt.Sprintf("final tally mismatch for auction %d: reported bid %d (winner %d), ledger max %d (last bidder %d)",
		m.AuctionID, m.ReportedBid, m.ReportedWinnerID, m.LedgerMaxBid, m.LedgerWinnerID)
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
