package services

import (
	"parimutuel/domain/entities"
	"parimutuel/domain/money"

	"github.com/shopspring/decimal"
)

// RecalculateOdds recomputes every outcome's multiplier from the pool's
// current aggregates using the parimutuel rule: the net pot divided by the
// stake on that outcome. Outcomes nobody has backed show their initial odds.
// The whole set is rebuilt each time so rounding never accumulates.
func RecalculateOdds(pool *entities.Pool, places int32) {
	netPot := pool.NetPot()

	for _, outcome := range pool.Outcomes {
		if outcome.TotalWagered > 0 {
			outcome.CurrentMultiplier = money.Ratio(netPot, outcome.TotalWagered, places)
		} else {
			outcome.CurrentMultiplier = outcome.InitialOdds
		}
	}
}

// Multipliers returns the current multiplier of every outcome keyed by ID
func Multipliers(pool *entities.Pool) map[string]decimal.Decimal {
	odds := make(map[string]decimal.Decimal, len(pool.Outcomes))
	for _, outcome := range pool.Outcomes {
		odds[outcome.ID] = outcome.CurrentMultiplier
	}
	return odds
}
