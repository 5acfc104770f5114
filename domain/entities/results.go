package entities

import (
	"time"

	"parimutuel/domain/money"
)

// WagerPayout is one line of a settlement or refund report
type WagerPayout struct {
	PoolID    string
	WagerID   string
	BettorRef string
	OutcomeID string
	Principal money.Amount
	Payout    money.Amount
	Status    WagerStatus
	Credited  bool // False when the ledger credit failed or was not needed
}

// SettlementResult is the record emitted when a pool is settled
type SettlementResult struct {
	Pool             *Pool
	WinningOutcomeID string
	Winners          int
	TotalPaid        money.Amount
	HouseTake        money.Amount
	NetPot           money.Amount
	NoWinners        bool // Winning outcome had no stake; the net pot went to the house
	Payouts          []WagerPayout
	FailedCredits    []string
	SettledAt        time.Time
}

// CancellationResult is the record emitted when a pool is cancelled
type CancellationResult struct {
	Pool          *Pool
	Reason        string
	RefundedCount int
	TotalRefunded money.Amount
	Refunds       []WagerPayout
	FailedCredits []string
	CancelledAt   time.Time
}
