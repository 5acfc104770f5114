package services

import (
	"parimutuel/domain/entities"
	"parimutuel/domain/money"
)

// PayoutPlan contains the settlement arithmetic for a pool
type PayoutPlan struct {
	HouseTake money.Amount
	NetPot    money.Amount
	TotalPaid money.Amount
	NoWinners bool
	Winners   []*entities.Wager
	Losers    []*entities.Wager
	Payouts   map[string]money.Amount // Wager ID -> payout, winners only
}

// CalculatePoolPayouts splits the net pot among the active wagers on the
// winning outcome in proportion to their principal. Shares are floored in
// insertion order and the last winner takes the rounding residual, so
// TotalPaid + HouseTake always equals the pot. If nobody backed the winner
// the whole pot is reported as house take.
//
// The plan is computed from the frozen aggregates only; multipliers shown
// while the pool was open play no part.
func CalculatePoolPayouts(pool *entities.Pool, winningOutcome *entities.Outcome) *PayoutPlan {
	plan := &PayoutPlan{
		HouseTake: pool.HouseTake(),
		NetPot:    pool.NetPot(),
		Payouts:   make(map[string]money.Amount),
	}

	for _, wager := range pool.Wagers {
		if !wager.IsActive() {
			continue
		}
		if wager.OutcomeID == winningOutcome.ID {
			plan.Winners = append(plan.Winners, wager)
		} else {
			plan.Losers = append(plan.Losers, wager)
		}
	}

	if winningOutcome.TotalWagered == 0 || len(plan.Winners) == 0 {
		plan.NoWinners = true
		plan.HouseTake = pool.TotalPot
		return plan
	}

	stakes := make([]money.Amount, len(plan.Winners))
	for i, winner := range plan.Winners {
		stakes[i] = winner.Principal
	}

	shares := money.Distribute(plan.NetPot, stakes)
	for i, winner := range plan.Winners {
		plan.Payouts[winner.ID] = shares[i]
		plan.TotalPaid += shares[i]
	}

	return plan
}
