package entities

import (
	"time"

	"parimutuel/domain/money"

	"github.com/shopspring/decimal"
)

// WagerStatus represents the state of a wager
type WagerStatus string

const (
	WagerStatusActive   WagerStatus = "active"
	WagerStatusWon      WagerStatus = "won"
	WagerStatusLost     WagerStatus = "lost"
	WagerStatusRefunded WagerStatus = "refunded"
)

// Wager is a single stake on one outcome of a pool
type Wager struct {
	ID              string
	PoolID          string
	OutcomeID       string
	BettorRef       string // External account reference
	Principal       money.Amount
	OddsAtPlacement decimal.Decimal // Display only, never used for payouts
	Status          WagerStatus
	PayoutAmount    *money.Amount
	PlacedAt        time.Time
	ClosedAt        *time.Time
}

// IsActive checks if the wager is still awaiting settlement
func (w *Wager) IsActive() bool {
	return w.Status == WagerStatusActive
}

// MarkWon closes the wager with a payout
func (w *Wager) MarkWon(payout money.Amount, at time.Time) {
	w.close(WagerStatusWon, payout, at)
}

// MarkLost closes the wager with a zero payout
func (w *Wager) MarkLost(at time.Time) {
	w.close(WagerStatusLost, 0, at)
}

// MarkRefunded closes the wager returning its principal
func (w *Wager) MarkRefunded(at time.Time) {
	w.close(WagerStatusRefunded, w.Principal, at)
}

func (w *Wager) close(status WagerStatus, payout money.Amount, at time.Time) {
	if !w.IsActive() {
		return
	}
	w.Status = status
	w.PayoutAmount = &payout
	w.ClosedAt = &at
}

// Payout returns the recorded payout, zero while active
func (w *Wager) Payout() money.Amount {
	if w.PayoutAmount == nil {
		return 0
	}
	return *w.PayoutAmount
}

// Clone returns a deep copy of the wager
func (w *Wager) Clone() *Wager {
	c := *w
	if w.PayoutAmount != nil {
		payout := *w.PayoutAmount
		c.PayoutAmount = &payout
	}
	if w.ClosedAt != nil {
		at := *w.ClosedAt
		c.ClosedAt = &at
	}
	return &c
}
