package events

import (
	"time"

	"parimutuel/domain/entities"
	"parimutuel/domain/money"

	"github.com/shopspring/decimal"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypePoolCreated   EventType = "pool_created"
	EventTypeWagerPlaced   EventType = "wager_placed"
	EventTypePoolLocked    EventType = "pool_locked"
	EventTypePoolSettled   EventType = "pool_settled"
	EventTypePoolCancelled EventType = "pool_cancelled"
)

// Event is the base interface for all events.
//
// Events are delivered after the pool lock is released, so two events for
// the same pool can reach a handler out of order. Sequence numbers are
// assigned under the lock and increase by one per pool; consumers that care
// about order sort or drop by Sequence.
type Event interface {
	Type() EventType
}

// PoolCreatedEvent represents a new pool opening for wagers
type PoolCreatedEvent struct {
	PoolID     string
	Sequence   uint64
	OutcomeIDs []string
	LockTime   time.Time
	CreatedAt  time.Time
}

func (e PoolCreatedEvent) Type() EventType {
	return EventTypePoolCreated
}

// WagerPlacedEvent represents an accepted wager and the odds it produced
type WagerPlacedEvent struct {
	PoolID          string
	Sequence        uint64
	WagerID         string
	OutcomeID       string
	BettorRef       string
	Principal       money.Amount
	OddsAtPlacement decimal.Decimal
	TotalPot        money.Amount
	Multipliers     map[string]decimal.Decimal // Outcome ID -> multiplier after this wager
	PlacedAt        time.Time
}

func (e WagerPlacedEvent) Type() EventType {
	return EventTypeWagerPlaced
}

// PoolLockedEvent is emitted the first time a pool is observed past its
// lock time. It is informational; pool state does not change.
type PoolLockedEvent struct {
	PoolID   string
	Sequence uint64 // Last sequence observed; lock events do not take a number of their own
	TotalPot money.Amount
	LockTime time.Time
}

func (e PoolLockedEvent) Type() EventType {
	return EventTypePoolLocked
}

// PoolSettledEvent carries the settlement record for the external ledger
type PoolSettledEvent struct {
	Sequence uint64
	Result   *entities.SettlementResult
}

func (e PoolSettledEvent) Type() EventType {
	return EventTypePoolSettled
}

// PoolCancelledEvent carries the refund record for the external ledger
type PoolCancelledEvent struct {
	Sequence uint64
	Result   *entities.CancellationResult
}

func (e PoolCancelledEvent) Type() EventType {
	return EventTypePoolCancelled
}
