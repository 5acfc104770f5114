package entities

import (
	"time"

	"parimutuel/domain/money"

	"github.com/shopspring/decimal"
)

// PoolStatus represents the state of a wagering pool
type PoolStatus string

const (
	PoolStatusOpen      PoolStatus = "open"
	PoolStatusSettled   PoolStatus = "settled"
	PoolStatusCancelled PoolStatus = "cancelled"

	// PoolStatusLocked is never stored. It is what an open pool looks like
	// once its lock time has passed.
	PoolStatusLocked PoolStatus = "locked"
)

// Pool is a parimutuel pool: every stake on every outcome goes into one pot
// that is shared by the backers of the winning outcome.
type Pool struct {
	ID               string
	Descriptor       map[string]any // Opaque event metadata
	Status           PoolStatus
	Outcomes         []*Outcome
	TotalPot         money.Amount
	HouseFeeFraction decimal.Decimal
	MinWager         money.Amount
	MaxWager         money.Amount
	LockTime         time.Time
	CreatedAt        time.Time
	WinningOutcomeID *string
	SettledAt        *time.Time
	CancelledAt      *time.Time
	CancelReason     string
	Sequence         uint64   // Number of the last event emitted for this pool
	Wagers           []*Wager // Insertion order
}

// Outcome is one of the mutually exclusive results of a pool
type Outcome struct {
	ID                string
	Description       string
	InitialOdds       decimal.Decimal
	TotalWagered      money.Amount
	BackerCount       int
	CurrentMultiplier decimal.Decimal
}

// OutcomeSpec describes an outcome at pool creation
type OutcomeSpec struct {
	ID          string `validate:"required"`
	Description string
	InitialOdds decimal.Decimal
}

// PoolParams contains parameters for creating a pool
type PoolParams struct {
	Descriptor       map[string]any
	Outcomes         []OutcomeSpec `validate:"required,min=1,unique=ID,dive"`
	HouseFeeFraction decimal.Decimal
	MinWager         money.Amount `validate:"gte=1,ltefield=MaxWager"`
	MaxWager         money.Amount `validate:"gte=1"`
	LockTime         time.Time    `validate:"required"`
}

// NextSequence numbers the next event emitted for the pool. It must be
// called with the pool lock held.
func (p *Pool) NextSequence() uint64 {
	p.Sequence++
	return p.Sequence
}

// IsOpen checks if the pool has not reached a terminal state
func (p *Pool) IsOpen() bool {
	return p.Status == PoolStatusOpen
}

// IsSettled checks if a winner has been declared
func (p *Pool) IsSettled() bool {
	return p.Status == PoolStatusSettled
}

// IsCancelled checks if the pool was aborted
func (p *Pool) IsCancelled() bool {
	return p.Status == PoolStatusCancelled
}

// IsTerminal checks if the pool is settled or cancelled
func (p *Pool) IsTerminal() bool {
	return p.IsSettled() || p.IsCancelled()
}

// IsLocked checks if the pool is open but past its lock time
func (p *Pool) IsLocked(now time.Time) bool {
	return p.IsOpen() && !now.Before(p.LockTime)
}

// CanAcceptWagers checks if a wager placed at now may be admitted
func (p *Pool) CanAcceptWagers(now time.Time) bool {
	return p.IsOpen() && now.Before(p.LockTime)
}

// ObservedStatus returns the stored status, or locked for an open pool past
// its lock time
func (p *Pool) ObservedStatus(now time.Time) PoolStatus {
	if p.IsLocked(now) {
		return PoolStatusLocked
	}
	return p.Status
}

// FindOutcome returns the outcome with the given ID, or nil
func (p *Pool) FindOutcome(outcomeID string) *Outcome {
	for _, o := range p.Outcomes {
		if o.ID == outcomeID {
			return o
		}
	}
	return nil
}

// HouseTake is the operator's cut of the current pot, rounded down
func (p *Pool) HouseTake() money.Amount {
	return money.FractionOf(p.TotalPot, p.HouseFeeFraction)
}

// NetPot is the part of the pot distributable to winners
func (p *Pool) NetPot() money.Amount {
	return p.TotalPot - p.HouseTake()
}

// WagersOn returns the wagers placed on an outcome, in insertion order
func (p *Pool) WagersOn(outcomeID string) []*Wager {
	var wagers []*Wager
	for _, w := range p.Wagers {
		if w.OutcomeID == outcomeID {
			wagers = append(wagers, w)
		}
	}
	return wagers
}

// Settle freezes the pool with a winning outcome
func (p *Pool) Settle(winningOutcomeID string, at time.Time) {
	if p.IsOpen() {
		p.Status = PoolStatusSettled
		p.WinningOutcomeID = &winningOutcomeID
		p.SettledAt = &at
	}
}

// Cancel aborts the pool
func (p *Pool) Cancel(reason string, at time.Time) {
	if p.IsOpen() {
		p.Status = PoolStatusCancelled
		p.CancelReason = reason
		p.CancelledAt = &at
	}
}

// Clone returns a deep copy of the pool, wagers included
func (p *Pool) Clone() *Pool {
	c := p.Summary()
	c.Wagers = make([]*Wager, len(p.Wagers))
	for i, w := range p.Wagers {
		c.Wagers[i] = w.Clone()
	}
	return c
}

// Summary returns a deep copy of the pool without its wagers
func (p *Pool) Summary() *Pool {
	c := *p
	c.Wagers = nil

	if p.Descriptor != nil {
		c.Descriptor = make(map[string]any, len(p.Descriptor))
		for k, v := range p.Descriptor {
			c.Descriptor[k] = v
		}
	}

	c.Outcomes = make([]*Outcome, len(p.Outcomes))
	for i, o := range p.Outcomes {
		oc := *o
		c.Outcomes[i] = &oc
	}

	if p.WinningOutcomeID != nil {
		id := *p.WinningOutcomeID
		c.WinningOutcomeID = &id
	}
	if p.SettledAt != nil {
		at := *p.SettledAt
		c.SettledAt = &at
	}
	if p.CancelledAt != nil {
		at := *p.CancelledAt
		c.CancelledAt = &at
	}

	return &c
}
