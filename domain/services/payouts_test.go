package services

import (
	"testing"

	"parimutuel/domain/entities"
	"parimutuel/domain/money"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildPool(fee string, wagers ...TestWager) *entities.Pool {
	pool := &entities.Pool{
		ID:               "p",
		Status:           entities.PoolStatusOpen,
		HouseFeeFraction: decimal.RequireFromString(fee),
		Outcomes: []*entities.Outcome{
			{ID: TestOutcomeA, InitialOdds: decimal.RequireFromString("1.8")},
			{ID: TestOutcomeB, InitialOdds: decimal.RequireFromString("2.2")},
			{ID: TestOutcomeC, InitialOdds: decimal.RequireFromString("3.5")},
		},
	}
	for i, w := range wagers {
		pool.Wagers = append(pool.Wagers, &entities.Wager{
			ID:        string(rune('a' + i)),
			OutcomeID: w.OutcomeID,
			BettorRef: w.BettorRef,
			Principal: w.Principal,
			Status:    entities.WagerStatusActive,
		})
		pool.TotalPot += w.Principal
		outcome := pool.FindOutcome(w.OutcomeID)
		outcome.TotalWagered += w.Principal
		outcome.BackerCount++
	}
	return pool
}

func TestRecalculateOdds(t *testing.T) {
	tests := []struct {
		name     string
		fee      string
		wagers   []TestWager
		expected map[string]string
	}{
		{
			name: "no wagers shows initial odds",
			fee:  "0.05",
			expected: map[string]string{
				TestOutcomeA: "1.8",
				TestOutcomeB: "2.2",
				TestOutcomeC: "3.5",
			},
		},
		{
			name: "sixty forty split",
			fee:  "0.05",
			wagers: []TestWager{
				{TestOutcomeA, TestBettor1, 60},
				{TestOutcomeB, TestBettor2, 40},
			},
			expected: map[string]string{
				TestOutcomeA: "1.5833",
				TestOutcomeB: "2.375",
				TestOutcomeC: "3.5",
			},
		},
		{
			name: "thirds are truncated not rounded",
			fee:  "0",
			wagers: []TestWager{
				{TestOutcomeA, TestBettor1, 3},
				{TestOutcomeB, TestBettor2, 6},
				{TestOutcomeC, TestBettor3, 9},
			},
			expected: map[string]string{
				TestOutcomeA: "6",
				TestOutcomeB: "3",
				TestOutcomeC: "2",
			},
		},
		{
			name: "house take is floored before dividing",
			fee:  "0.1",
			wagers: []TestWager{
				{TestOutcomeA, TestBettor1, 7},
				{TestOutcomeB, TestBettor2, 8},
			},
			// pot 15, take floor(1.5)=1, net 14
			expected: map[string]string{
				TestOutcomeA: "2",
				TestOutcomeB: "1.75",
				TestOutcomeC: "3.5",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := buildPool(tt.fee, tt.wagers...)
			RecalculateOdds(pool, money.DefaultMultiplierPlaces)

			multipliers := Multipliers(pool)
			for id, want := range tt.expected {
				assert.True(t, multipliers[id].Equal(decimal.RequireFromString(want)),
					"outcome %s: got %s want %s", id, multipliers[id], want)
			}
		})
	}
}

func TestRecalculateOdds_Precision(t *testing.T) {
	pool := buildPool("0", TestWager{TestOutcomeA, TestBettor1, 3}, TestWager{TestOutcomeB, TestBettor2, 7})

	RecalculateOdds(pool, 2)
	assert.Equal(t, "3.33", pool.Outcomes[0].CurrentMultiplier.StringFixed(2))

	RecalculateOdds(pool, 6)
	assert.Equal(t, "3.333333", pool.Outcomes[0].CurrentMultiplier.StringFixed(6))
	assert.Equal(t, "1.428571", pool.Outcomes[1].CurrentMultiplier.StringFixed(6))
}

func TestCalculatePoolPayouts(t *testing.T) {
	t.Run("proportional split", func(t *testing.T) {
		pool := buildPool("0.1",
			TestWager{TestOutcomeA, TestBettor1, 60},
			TestWager{TestOutcomeB, TestBettor3, 50},
			TestWager{TestOutcomeA, TestBettor2, 40},
		)

		plan := CalculatePoolPayouts(pool, pool.FindOutcome(TestOutcomeA))
		assert.EqualValues(t, 15, plan.HouseTake)
		assert.EqualValues(t, 135, plan.NetPot)
		assert.EqualValues(t, 135, plan.TotalPaid)
		assert.False(t, plan.NoWinners)
		require.Len(t, plan.Winners, 2)
		require.Len(t, plan.Losers, 1)
		assert.EqualValues(t, 81, plan.Payouts["a"])
		assert.EqualValues(t, 54, plan.Payouts["c"])
	})

	t.Run("last winner absorbs the remainder", func(t *testing.T) {
		pool := buildPool("0",
			TestWager{TestOutcomeA, TestBettor1, 1},
			TestWager{TestOutcomeA, TestBettor2, 1},
			TestWager{TestOutcomeA, TestBettor3, 1},
			TestWager{TestOutcomeB, TestBettor1, 97},
		)

		plan := CalculatePoolPayouts(pool, pool.FindOutcome(TestOutcomeA))
		assert.EqualValues(t, 33, plan.Payouts["a"])
		assert.EqualValues(t, 33, plan.Payouts["b"])
		assert.EqualValues(t, 34, plan.Payouts["c"])
		assert.EqualValues(t, 100, plan.TotalPaid)
	})

	t.Run("same ordering gives the same split", func(t *testing.T) {
		wagers := []TestWager{
			{TestOutcomeC, TestBettor1, 11},
			{TestOutcomeC, TestBettor2, 23},
			{TestOutcomeA, TestBettor3, 41},
			{TestOutcomeC, TestBettor3, 5},
		}
		first := CalculatePoolPayouts(buildPool("0.0725", wagers...), &entities.Outcome{ID: TestOutcomeC, TotalWagered: 39})
		second := CalculatePoolPayouts(buildPool("0.0725", wagers...), &entities.Outcome{ID: TestOutcomeC, TotalWagered: 39})
		assert.Equal(t, first.Payouts, second.Payouts)
		assert.Equal(t, first.NetPot, first.TotalPaid)
	})

	t.Run("no stake on the winner", func(t *testing.T) {
		pool := buildPool("0.05",
			TestWager{TestOutcomeA, TestBettor1, 40},
			TestWager{TestOutcomeB, TestBettor2, 60},
		)

		plan := CalculatePoolPayouts(pool, pool.FindOutcome(TestOutcomeC))
		assert.True(t, plan.NoWinners)
		assert.EqualValues(t, 100, plan.HouseTake)
		assert.EqualValues(t, 0, plan.TotalPaid)
		assert.Empty(t, plan.Payouts)
		assert.Len(t, plan.Losers, 2)
	})

	t.Run("closed wagers are ignored", func(t *testing.T) {
		pool := buildPool("0",
			TestWager{TestOutcomeA, TestBettor1, 10},
			TestWager{TestOutcomeA, TestBettor2, 10},
		)
		pool.Wagers[0].MarkRefunded(TestStart)

		plan := CalculatePoolPayouts(pool, pool.FindOutcome(TestOutcomeA))
		require.Len(t, plan.Winners, 1)
		assert.EqualValues(t, 20, plan.Payouts["b"])
	})
}
