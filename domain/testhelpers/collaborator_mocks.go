package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"parimutuel/domain/entities"
	"parimutuel/domain/events"
	"parimutuel/domain/interfaces"
	"parimutuel/domain/money"

	"github.com/stretchr/testify/mock"
)

// MockLedger is a mock implementation of Ledger
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Debit(ctx context.Context, entry interfaces.LedgerEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLedger) Credit(ctx context.Context, entry interfaces.LedgerEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) error {
	args := m.Called(event)
	return args.Error(0)
}

// FixedClock is a settable Clock for tests that move time by hand
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock stopped at now
func NewFixedClock(now time.Time) *FixedClock {
	return &FixedClock{now: now}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// SequentialIDGenerator hands out prefix-1, prefix-2, ...
type SequentialIDGenerator struct {
	mu     sync.Mutex
	prefix string
	next   int
}

// NewSequentialIDGenerator creates a generator with the given prefix
func NewSequentialIDGenerator(prefix string) *SequentialIDGenerator {
	return &SequentialIDGenerator{prefix: prefix}
}

func (g *SequentialIDGenerator) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("%s-%d", g.prefix, g.next)
}

// InMemoryLedger is a thread-safe ledger with per-account balances.
// Debits fail when the balance cannot cover them; credits with a
// reference that was already applied are ignored.
type InMemoryLedger struct {
	mu       sync.Mutex
	balances map[string]money.Amount
	applied  map[string]bool
	debits   int
	credits  int
}

// NewInMemoryLedger creates a ledger with the given opening balances
func NewInMemoryLedger(balances map[string]money.Amount) *InMemoryLedger {
	l := &InMemoryLedger{
		balances: make(map[string]money.Amount),
		applied:  make(map[string]bool),
	}
	for account, balance := range balances {
		l.balances[account] = balance
	}
	return l
}

func (l *InMemoryLedger) Debit(ctx context.Context, entry interfaces.LedgerEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.applied[entry.Reference] {
		return nil
	}
	if l.balances[entry.Account] < entry.Amount {
		return fmt.Errorf("account %s has %s, needs %s: %w",
			entry.Account, l.balances[entry.Account], entry.Amount, entities.ErrInsufficientFunds)
	}
	l.balances[entry.Account] -= entry.Amount
	l.applied[entry.Reference] = true
	l.debits++
	return nil
}

func (l *InMemoryLedger) Credit(ctx context.Context, entry interfaces.LedgerEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.applied[entry.Reference] {
		return nil
	}
	l.balances[entry.Account] += entry.Amount
	l.applied[entry.Reference] = true
	l.credits++
	return nil
}

// Balance returns the current balance of an account
func (l *InMemoryLedger) Balance(account string) money.Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account]
}

// Counts returns how many debits and credits were applied
func (l *InMemoryLedger) Counts() (debits, credits int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debits, l.credits
}

// RecordingPublisher collects published events in order
type RecordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *RecordingPublisher) Publish(event events.Event) error {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
	return nil
}

// Events returns a copy of everything published so far
func (p *RecordingPublisher) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Event, len(p.events))
	copy(out, p.events)
	return out
}

// OfType returns the published events with the given type
func (p *RecordingPublisher) OfType(eventType events.EventType) []events.Event {
	var out []events.Event
	for _, e := range p.Events() {
		if e.Type() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// MockSettlementRecordRepository is a mock implementation of SettlementRecordRepository
type MockSettlementRecordRepository struct {
	mock.Mock
}

func (m *MockSettlementRecordRepository) Save(ctx context.Context, record *entities.SettlementRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockSettlementRecordRepository) GetByPoolID(ctx context.Context, poolID string) (*entities.SettlementRecord, error) {
	args := m.Called(ctx, poolID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.SettlementRecord), args.Error(1)
}

func (m *MockSettlementRecordRepository) ListUncredited(ctx context.Context) ([]entities.WagerPayout, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.WagerPayout), args.Error(1)
}

func (m *MockSettlementRecordRepository) MarkCredited(ctx context.Context, poolID, wagerID string) error {
	args := m.Called(ctx, poolID, wagerID)
	return args.Error(0)
}
