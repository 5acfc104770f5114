package interfaces

import (
	"context"
	"time"

	"parimutuel/domain/events"
	"parimutuel/domain/money"
)

// LedgerEntryKind tags what a ledger movement is for
type LedgerEntryKind string

const (
	LedgerEntryStake  LedgerEntryKind = "stake"
	LedgerEntryPayout LedgerEntryKind = "payout"
	LedgerEntryRefund LedgerEntryKind = "refund"
)

// LedgerEntry is a single debit or credit request against an external account
type LedgerEntry struct {
	Account   string
	Amount    money.Amount
	Reference string // Unique per movement; lets the ledger drop retried duplicates
	PoolID    string
	WagerID   string
	Kind      LedgerEntryKind
}

// LedgerReference is the idempotency key of the movement of kind for wagerID
func LedgerReference(wagerID string, kind LedgerEntryKind) string {
	return wagerID + ":" + string(kind)
}

// Ledger moves funds in and out of bettor accounts. Calls are made while a
// pool is locked, so implementations must honour ctx deadlines.
type Ledger interface {
	// Debit takes the amount from the account, failing if it cannot be covered
	Debit(ctx context.Context, entry LedgerEntry) error

	// Credit pays the amount into the account. A repeated reference must not
	// be applied twice.
	Credit(ctx context.Context, entry LedgerEntry) error
}

// Clock is the time source for lock-time comparisons
type Clock interface {
	Now() time.Time
}

// IDGenerator produces unique pool and wager identifiers
type IDGenerator interface {
	NewID() string
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event) error
}

// EventHandler processes a published event in the publishing process
type EventHandler func(ctx context.Context, event events.Event) error

// EventSubscriber registers in-process handlers on a publisher
type EventSubscriber interface {
	RegisterLocalHandler(eventType events.EventType, handler EventHandler)
}

// DurableEventSubscriber delivers events from a persistent stream. A handler
// error causes the event to be redelivered, so handlers must be idempotent.
type DurableEventSubscriber interface {
	Subscribe(eventType events.EventType, handler EventHandler) error
}
