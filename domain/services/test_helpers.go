package services

import (
	"context"
	"testing"
	"time"

	"parimutuel/domain/entities"
	"parimutuel/domain/events"
	"parimutuel/domain/interfaces"
	"parimutuel/domain/money"
	"parimutuel/domain/testhelpers"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Test constants for consistent test data
const (
	TestOutcomeA = "home"
	TestOutcomeB = "away"
	TestOutcomeC = "draw"
	TestBettor1  = "acct-100"
	TestBettor2  = "acct-200"
	TestBettor3  = "acct-300"
)

var TestStart = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// TestMocks aggregates the collaborator mocks for testing
type TestMocks struct {
	Ledger         *testhelpers.MockLedger
	EventPublisher *testhelpers.MockEventPublisher
}

// NewTestMocks creates a new set of mocks
func NewTestMocks() *TestMocks {
	return &TestMocks{
		Ledger:         &testhelpers.MockLedger{},
		EventPublisher: &testhelpers.MockEventPublisher{},
	}
}

// AssertAllExpectations verifies all mock expectations were met
func (m *TestMocks) AssertAllExpectations(t *testing.T) {
	m.Ledger.AssertExpectations(t)
	m.EventPublisher.AssertExpectations(t)
}

// MockHelper provides common mock setup patterns
type MockHelper struct {
	mocks *TestMocks
}

// NewMockHelper creates a new mock helper
func NewMockHelper(mocks *TestMocks) *MockHelper {
	return &MockHelper{mocks: mocks}
}

// ExpectDebit expects a stake debit for an account and amount
func (h *MockHelper) ExpectDebit(account string, amount money.Amount) *mock.Call {
	return h.mocks.Ledger.On("Debit", mock.Anything, mock.MatchedBy(func(e interfaces.LedgerEntry) bool {
		return e.Account == account && e.Amount == amount && e.Kind == interfaces.LedgerEntryStake
	})).Return(nil)
}

// ExpectAnyDebit accepts every debit
func (h *MockHelper) ExpectAnyDebit() *mock.Call {
	return h.mocks.Ledger.On("Debit", mock.Anything, mock.Anything).Return(nil)
}

// ExpectCredit expects a credit of the given kind for an account and amount
func (h *MockHelper) ExpectCredit(account string, amount money.Amount, kind interfaces.LedgerEntryKind) *mock.Call {
	return h.mocks.Ledger.On("Credit", mock.Anything, mock.MatchedBy(func(e interfaces.LedgerEntry) bool {
		return e.Account == account && e.Amount == amount && e.Kind == kind
	})).Return(nil)
}

// ExpectEventPublish sets up event publisher mock expectations
func (h *MockHelper) ExpectEventPublish(eventType events.EventType) *mock.Call {
	return h.mocks.EventPublisher.On("Publish", mock.MatchedBy(func(e events.Event) bool {
		return e.Type() == eventType
	})).Return(nil)
}

// ExpectAnyEvents accepts every published event
func (h *MockHelper) ExpectAnyEvents() *mock.Call {
	return h.mocks.EventPublisher.On("Publish", mock.Anything).Return(nil).Maybe()
}

// PoolTestFixture wires a pool service to mocks, a settable clock and
// predictable ids
type PoolTestFixture struct {
	T       *testing.T
	Ctx     context.Context
	Mocks   *TestMocks
	Helper  *MockHelper
	Clock   *testhelpers.FixedClock
	IDs     *testhelpers.SequentialIDGenerator
	Service interfaces.PoolService
}

// NewPoolTestFixture creates a fixture with the default engine config
func NewPoolTestFixture(t *testing.T) *PoolTestFixture {
	return NewPoolTestFixtureWithConfig(t, DefaultPoolServiceConfig())
}

// NewPoolTestFixtureWithConfig creates a fixture with a custom engine config
func NewPoolTestFixtureWithConfig(t *testing.T, cfg PoolServiceConfig) *PoolTestFixture {
	mocks := NewTestMocks()
	clock := testhelpers.NewFixedClock(TestStart)
	ids := testhelpers.NewSequentialIDGenerator("id")

	return &PoolTestFixture{
		T:       t,
		Ctx:     context.Background(),
		Mocks:   mocks,
		Helper:  NewMockHelper(mocks),
		Clock:   clock,
		IDs:     ids,
		Service: NewPoolService(mocks.Ledger, mocks.EventPublisher, clock, ids, cfg),
	}
}

// TwoOutcomeParams returns params for a home/away pool locking in an hour
func TwoOutcomeParams(fee string) entities.PoolParams {
	return entities.PoolParams{
		Descriptor: map[string]any{"event": "final"},
		Outcomes: []entities.OutcomeSpec{
			{ID: TestOutcomeA, Description: "Home win", InitialOdds: decimal.RequireFromString("1.9")},
			{ID: TestOutcomeB, Description: "Away win", InitialOdds: decimal.RequireFromString("2.1")},
		},
		HouseFeeFraction: decimal.RequireFromString(fee),
		MinWager:         1,
		MaxWager:         1_000_000,
		LockTime:         TestStart.Add(time.Hour),
	}
}

// CreatePool creates a pool, accepting the creation event
func (f *PoolTestFixture) CreatePool(params entities.PoolParams) *entities.Pool {
	f.Helper.ExpectEventPublish(events.EventTypePoolCreated).Once()
	pool, err := f.Service.CreatePool(f.Ctx, params)
	require.NoError(f.T, err)
	return pool
}

// PlaceWagers places each wager expecting success, with any debit accepted
func (f *PoolTestFixture) PlaceWagers(poolID string, wagers ...TestWager) []*entities.Wager {
	placed := make([]*entities.Wager, 0, len(wagers))
	for _, w := range wagers {
		wager, err := f.Service.PlaceWager(f.Ctx, poolID, w.OutcomeID, w.BettorRef, w.Principal)
		require.NoError(f.T, err)
		placed = append(placed, wager)
	}
	return placed
}

// TestWager is a wager to place in a test
type TestWager struct {
	OutcomeID string
	BettorRef string
	Principal money.Amount
}
