package entities

import (
	"errors"
	"fmt"
	"strings"
)

// Configuration errors
var (
	ErrInvalidConfiguration = errors.New("invalid pool configuration")
)

// Request errors. None of these leave a trace on pool state.
var (
	ErrPoolNotFound     = errors.New("pool not found")
	ErrPoolClosed       = errors.New("pool is not accepting wagers")
	ErrWagerOutOfBounds = errors.New("wager amount out of bounds")
	ErrUnknownOutcome   = errors.New("unknown outcome")
	ErrInvalidWager     = errors.New("invalid wager")
	ErrAlreadySettled   = errors.New("pool already settled")
	ErrPoolCancelled    = errors.New("pool has been cancelled")
	ErrAlreadyCancelled = errors.New("pool already cancelled")
)

// Collaborator errors
var (
	ErrLedgerDebitFailed = errors.New("ledger debit failed")
	ErrOperationTimedOut = errors.New("operation timed out")
	ErrDuplicatePoolID   = errors.New("pool id already in use")
)

// Ledger errors, returned by Ledger implementations
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownAccount    = errors.New("unknown account")
)

// PartialSettlementFailure reports ledger credits that failed after a pool
// reached a terminal state. The transition itself is committed; the listed
// wagers carry their computed payout and need external reconciliation.
type PartialSettlementFailure struct {
	PoolID         string
	FailedWagerIDs []string
	Causes         map[string]error
}

// NewPartialSettlementFailure creates an empty failure report for a pool
func NewPartialSettlementFailure(poolID string) *PartialSettlementFailure {
	return &PartialSettlementFailure{
		PoolID: poolID,
		Causes: make(map[string]error),
	}
}

// Add records a failed credit for a wager
func (e *PartialSettlementFailure) Add(wagerID string, cause error) {
	e.FailedWagerIDs = append(e.FailedWagerIDs, wagerID)
	e.Causes[wagerID] = cause
}

// HasFailures reports whether any credit failed
func (e *PartialSettlementFailure) HasFailures() bool {
	return e != nil && len(e.FailedWagerIDs) > 0
}

func (e *PartialSettlementFailure) Error() string {
	return fmt.Sprintf("pool %s: %d ledger credit(s) failed for wagers [%s]",
		e.PoolID, len(e.FailedWagerIDs), strings.Join(e.FailedWagerIDs, ", "))
}

// Unwrap exposes the individual credit failures to errors.Is/As
func (e *PartialSettlementFailure) Unwrap() []error {
	causes := make([]error, 0, len(e.FailedWagerIDs))
	for _, id := range e.FailedWagerIDs {
		causes = append(causes, e.Causes[id])
	}
	return causes
}
