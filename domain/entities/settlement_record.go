package entities

import (
	"time"

	"parimutuel/domain/money"
)

// SettlementRecordKind tells settled and cancelled pools apart
type SettlementRecordKind string

const (
	SettlementRecordSettled   SettlementRecordKind = "settled"
	SettlementRecordCancelled SettlementRecordKind = "cancelled"
)

// SettlementRecord is the durable copy of a terminal pool transition, kept
// for the external ledger to reconcile against
type SettlementRecord struct {
	PoolID           string
	Kind             SettlementRecordKind
	WinningOutcomeID *string
	CancelReason     string
	TotalPot         money.Amount
	HouseTake        money.Amount
	TotalPaid        money.Amount
	NoWinners        bool
	FailedCredits    int
	ClosedAt         time.Time
	RecordedAt       time.Time
	Lines            []WagerPayout
}

// NewSettledRecord builds a record from a settlement result
func NewSettledRecord(result *SettlementResult) *SettlementRecord {
	winner := result.WinningOutcomeID
	return &SettlementRecord{
		PoolID:           result.Pool.ID,
		Kind:             SettlementRecordSettled,
		WinningOutcomeID: &winner,
		TotalPot:         result.Pool.TotalPot,
		HouseTake:        result.HouseTake,
		TotalPaid:        result.TotalPaid,
		NoWinners:        result.NoWinners,
		FailedCredits:    len(result.FailedCredits),
		ClosedAt:         result.SettledAt,
		Lines:            result.Payouts,
	}
}

// NewCancelledRecord builds a record from a cancellation result
func NewCancelledRecord(result *CancellationResult) *SettlementRecord {
	return &SettlementRecord{
		PoolID:        result.Pool.ID,
		Kind:          SettlementRecordCancelled,
		CancelReason:  result.Reason,
		TotalPot:      result.Pool.TotalPot,
		TotalPaid:     result.TotalRefunded,
		FailedCredits: len(result.FailedCredits),
		ClosedAt:      result.CancelledAt,
		Lines:         result.Refunds,
	}
}

// Uncredited returns the lines whose payout never reached the ledger
func (r *SettlementRecord) Uncredited() []WagerPayout {
	var lines []WagerPayout
	for _, line := range r.Lines {
		if !line.Credited && line.Payout > 0 {
			lines = append(lines, line)
		}
	}
	return lines
}
