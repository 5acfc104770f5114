package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"parimutuel/domain/entities"
	"parimutuel/domain/events"
	"parimutuel/domain/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPoolService_Settle_PayoutExample(t *testing.T) {
	fixture := NewPoolTestFixture(t)
	fixture.Helper.ExpectAnyDebit()
	pool := fixture.CreatePool(TwoOutcomeParams("0.1"))

	fixture.Helper.ExpectEventPublish(events.EventTypeWagerPlaced).Times(3)
	placed := fixture.PlaceWagers(pool.ID,
		TestWager{TestOutcomeA, TestBettor1, 60},
		TestWager{TestOutcomeB, TestBettor3, 50},
		TestWager{TestOutcomeA, TestBettor2, 40},
	)

	fixture.Helper.ExpectCredit(TestBettor1, 81, interfaces.LedgerEntryPayout).Once()
	fixture.Helper.ExpectCredit(TestBettor2, 54, interfaces.LedgerEntryPayout).Once()
	fixture.Helper.ExpectEventPublish(events.EventTypePoolSettled).Once()

	fixture.Clock.Advance(2 * time.Hour)
	result, err := fixture.Service.Settle(fixture.Ctx, pool.ID, TestOutcomeA)
	require.NoError(t, err)

	assert.Equal(t, TestOutcomeA, result.WinningOutcomeID)
	assert.Equal(t, 2, result.Winners)
	assert.EqualValues(t, 15, result.HouseTake)
	assert.EqualValues(t, 135, result.NetPot)
	assert.EqualValues(t, 135, result.TotalPaid)
	assert.False(t, result.NoWinners)
	assert.Empty(t, result.FailedCredits)
	assert.Equal(t, result.Pool.TotalPot, result.TotalPaid+result.HouseTake)

	settled := result.Pool
	assert.Equal(t, entities.PoolStatusSettled, settled.Status)
	require.NotNil(t, settled.WinningOutcomeID)
	assert.Equal(t, TestOutcomeA, *settled.WinningOutcomeID)
	require.NotNil(t, settled.SettledAt)
	assert.Equal(t, TestStart.Add(2*time.Hour), *settled.SettledAt)

	byID := make(map[string]*entities.Wager)
	for _, w := range settled.Wagers {
		byID[w.ID] = w
	}
	assert.Equal(t, entities.WagerStatusWon, byID[placed[0].ID].Status)
	assert.EqualValues(t, 81, byID[placed[0].ID].Payout())
	assert.Equal(t, entities.WagerStatusLost, byID[placed[1].ID].Status)
	require.NotNil(t, byID[placed[1].ID].PayoutAmount)
	assert.EqualValues(t, 0, *byID[placed[1].ID].PayoutAmount)
	assert.Equal(t, entities.WagerStatusWon, byID[placed[2].ID].Status)
	assert.EqualValues(t, 54, byID[placed[2].ID].Payout())

	require.Len(t, result.Payouts, 3)
	assert.True(t, result.Payouts[0].Credited)
	assert.False(t, result.Payouts[1].Credited)
	assert.True(t, result.Payouts[2].Credited)

	fixture.Mocks.AssertAllExpectations(t)
}

func TestPoolService_Settle_Conservation(t *testing.T) {
	tests := []struct {
		name   string
		fee    string
		wagers []TestWager
		winner string
	}{
		{
			name: "residual goes to last winner",
			fee:  "0",
			wagers: []TestWager{
				{TestOutcomeA, TestBettor1, 1},
				{TestOutcomeA, TestBettor2, 1},
				{TestOutcomeA, TestBettor3, 1},
				{TestOutcomeB, TestBettor1, 97},
			},
			winner: TestOutcomeA,
		},
		{
			name: "awkward fee",
			fee:  "0.0725",
			wagers: []TestWager{
				{TestOutcomeA, TestBettor1, 333},
				{TestOutcomeB, TestBettor2, 17},
				{TestOutcomeA, TestBettor3, 29},
				{TestOutcomeB, TestBettor1, 101},
				{TestOutcomeA, TestBettor2, 7},
			},
			winner: TestOutcomeB,
		},
		{
			name: "single winner takes the net pot",
			fee:  "0.15",
			wagers: []TestWager{
				{TestOutcomeA, TestBettor1, 13},
				{TestOutcomeB, TestBettor2, 999},
			},
			winner: TestOutcomeA,
		},
		{
			name: "winning outcome never backed",
			fee:  "0.05",
			wagers: []TestWager{
				{TestOutcomeA, TestBettor1, 40},
				{TestOutcomeA, TestBettor2, 60},
			},
			winner: TestOutcomeB,
		},
		{
			name:   "empty pool",
			fee:    "0.05",
			winner: TestOutcomeA,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture := NewPoolTestFixture(t)
			fixture.Helper.ExpectAnyDebit()
			fixture.Helper.ExpectAnyEvents()
			fixture.Mocks.Ledger.On("Credit", mock.Anything, mock.Anything).Return(nil).Maybe()

			pool := fixture.CreatePool(TwoOutcomeParams(tt.fee))
			fixture.PlaceWagers(pool.ID, tt.wagers...)

			result, err := fixture.Service.Settle(fixture.Ctx, pool.ID, tt.winner)
			require.NoError(t, err)

			assert.Equal(t, result.Pool.TotalPot, result.TotalPaid+result.HouseTake)

			var paid, credited int64
			for _, w := range result.Pool.Wagers {
				assert.False(t, w.IsActive())
				paid += int64(w.Payout())
			}
			for _, p := range result.Payouts {
				if p.Credited {
					credited += int64(p.Payout)
				}
			}
			assert.EqualValues(t, result.TotalPaid, paid)
			assert.EqualValues(t, result.TotalPaid, credited)
		})
	}
}

func TestPoolService_Settle_NoWinners(t *testing.T) {
	fixture := NewPoolTestFixture(t)
	fixture.Helper.ExpectAnyDebit()
	fixture.Helper.ExpectAnyEvents()
	pool := fixture.CreatePool(TwoOutcomeParams("0.05"))

	fixture.PlaceWagers(pool.ID,
		TestWager{TestOutcomeA, TestBettor1, 40},
		TestWager{TestOutcomeA, TestBettor2, 60},
	)

	result, err := fixture.Service.Settle(fixture.Ctx, pool.ID, TestOutcomeB)
	require.NoError(t, err)

	assert.True(t, result.NoWinners)
	assert.Equal(t, 0, result.Winners)
	assert.EqualValues(t, 0, result.TotalPaid)
	assert.EqualValues(t, 100, result.HouseTake)
	for _, w := range result.Pool.Wagers {
		assert.Equal(t, entities.WagerStatusLost, w.Status)
	}

	fixture.Mocks.Ledger.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything)
}

func TestPoolService_Settle_Rejections(t *testing.T) {
	tests := []struct {
		name          string
		poolID        string
		winner        string
		before        func(*PoolTestFixture, string)
		expectedError error
	}{
		{
			name:          "pool does not exist",
			poolID:        "missing",
			winner:        TestOutcomeA,
			expectedError: entities.ErrPoolNotFound,
		},
		{
			name:          "unknown winning outcome",
			winner:        "nobody",
			expectedError: entities.ErrUnknownOutcome,
		},
		{
			name:   "already settled",
			winner: TestOutcomeB,
			before: func(f *PoolTestFixture, poolID string) {
				_, err := f.Service.Settle(f.Ctx, poolID, TestOutcomeA)
				require.NoError(f.T, err)
			},
			expectedError: entities.ErrAlreadySettled,
		},
		{
			name:   "cancelled pool",
			winner: TestOutcomeA,
			before: func(f *PoolTestFixture, poolID string) {
				_, err := f.Service.Cancel(f.Ctx, poolID, "postponed")
				require.NoError(f.T, err)
			},
			expectedError: entities.ErrPoolCancelled,
		},
		{
			name:   "terminal check precedes outcome check",
			winner: "nobody",
			before: func(f *PoolTestFixture, poolID string) {
				_, err := f.Service.Settle(f.Ctx, poolID, TestOutcomeA)
				require.NoError(f.T, err)
			},
			expectedError: entities.ErrAlreadySettled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture := NewPoolTestFixture(t)
			fixture.Helper.ExpectAnyDebit()
			fixture.Helper.ExpectAnyEvents()
			fixture.Mocks.Ledger.On("Credit", mock.Anything, mock.Anything).Return(nil)

			pool := fixture.CreatePool(TwoOutcomeParams("0.05"))
			fixture.PlaceWagers(pool.ID,
				TestWager{TestOutcomeA, TestBettor1, 10},
				TestWager{TestOutcomeB, TestBettor2, 10},
			)

			poolID := tt.poolID
			if poolID == "" {
				poolID = pool.ID
			}
			if tt.before != nil {
				tt.before(fixture, pool.ID)
			}

			before, err := fixture.Service.GetPool(fixture.Ctx, pool.ID)
			require.NoError(t, err)
			credits := len(creditCalls(fixture.Mocks))

			result, err := fixture.Service.Settle(fixture.Ctx, poolID, tt.winner)
			assert.ErrorIs(t, err, tt.expectedError)
			assert.Nil(t, result)

			after, err := fixture.Service.GetPool(fixture.Ctx, pool.ID)
			require.NoError(t, err)
			assert.Equal(t, before, after)
			assert.Len(t, creditCalls(fixture.Mocks), credits)
		})
	}
}

func TestPoolService_Settle_PartialFailure(t *testing.T) {
	fixture := NewPoolTestFixture(t)
	fixture.Helper.ExpectAnyDebit()
	fixture.Helper.ExpectAnyEvents()
	pool := fixture.CreatePool(TwoOutcomeParams("0.1"))

	placed := fixture.PlaceWagers(pool.ID,
		TestWager{TestOutcomeA, TestBettor1, 60},
		TestWager{TestOutcomeA, TestBettor2, 40},
		TestWager{TestOutcomeB, TestBettor3, 50},
	)

	creditErr := errors.New("account service unavailable")
	fixture.Mocks.Ledger.On("Credit", mock.Anything, mock.MatchedBy(func(e interfaces.LedgerEntry) bool {
		return e.Account == TestBettor1
	})).Return(creditErr).Once()
	fixture.Helper.ExpectCredit(TestBettor2, 54, interfaces.LedgerEntryPayout).Once()

	result, err := fixture.Service.Settle(fixture.Ctx, pool.ID, TestOutcomeA)
	require.Error(t, err)
	require.NotNil(t, result)

	var partial *entities.PartialSettlementFailure
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, pool.ID, partial.PoolID)
	assert.Equal(t, []string{placed[0].ID}, partial.FailedWagerIDs)
	assert.ErrorIs(t, err, creditErr)
	assert.Equal(t, []string{placed[0].ID}, result.FailedCredits)

	// The failed winner is still recorded as won with its payout
	assert.Equal(t, entities.PoolStatusSettled, result.Pool.Status)
	assert.Equal(t, entities.WagerStatusWon, result.Pool.Wagers[0].Status)
	assert.EqualValues(t, 81, result.Pool.Wagers[0].Payout())
	assert.False(t, result.Payouts[0].Credited)
	assert.True(t, result.Payouts[1].Credited)
	assert.EqualValues(t, 135, result.TotalPaid)

	// A retry does not credit anyone again
	_, err = fixture.Service.Settle(fixture.Ctx, pool.ID, TestOutcomeA)
	assert.ErrorIs(t, err, entities.ErrAlreadySettled)
	assert.Len(t, creditCalls(fixture.Mocks), 2)

	fixture.Mocks.Ledger.AssertExpectations(t)
}

func TestPoolService_Settle_CreditTimeoutIsReported(t *testing.T) {
	cfg := DefaultPoolServiceConfig()
	cfg.LedgerCallTimeout = 20 * time.Millisecond
	fixture := NewPoolTestFixtureWithConfig(t, cfg)
	fixture.Helper.ExpectAnyDebit()
	fixture.Helper.ExpectAnyEvents()
	pool := fixture.CreatePool(TwoOutcomeParams("0"))

	placed := fixture.PlaceWagers(pool.ID, TestWager{TestOutcomeA, TestBettor1, 10})

	fixture.Mocks.Ledger.On("Credit", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return(errors.New("deadline exceeded")).Once()

	result, err := fixture.Service.Settle(fixture.Ctx, pool.ID, TestOutcomeA)
	require.NotNil(t, result)

	var partial *entities.PartialSettlementFailure
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, []string{placed[0].ID}, partial.FailedWagerIDs)
	assert.ErrorIs(t, err, entities.ErrOperationTimedOut)
}

func creditCalls(mocks *TestMocks) []mock.Call {
	var calls []mock.Call
	for _, call := range mocks.Ledger.Calls {
		if call.Method == "Credit" {
			calls = append(calls, call)
		}
	}
	return calls
}
