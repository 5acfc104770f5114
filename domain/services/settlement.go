package services

import (
	"context"
	"fmt"

	"parimutuel/domain/entities"
	"parimutuel/domain/events"
	"parimutuel/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// Settle declares the winning outcome and pays out the net pot.
//
// The transition is committed before any credit is attempted. Credits that
// fail are not retried or rolled back: the wager keeps its Won status and
// computed payout, and a *entities.PartialSettlementFailure naming the
// failed wagers is returned together with the result.
func (s *poolService) Settle(ctx context.Context, poolID, winningOutcomeID string) (*entities.SettlementResult, error) {
	entry, err := s.acquire(ctx, poolID)
	if err != nil {
		return nil, err
	}

	result, failure, err := s.settlePool(ctx, entry.pool, winningOutcomeID)
	entry.release()
	if err != nil {
		return nil, err
	}

	s.publish(events.PoolSettledEvent{Sequence: result.Pool.Sequence, Result: result})

	if failure.HasFailures() {
		return result, failure
	}
	return result, nil
}

// settlePool runs with the pool lock held
func (s *poolService) settlePool(ctx context.Context, pool *entities.Pool, winningOutcomeID string) (*entities.SettlementResult, *entities.PartialSettlementFailure, error) {
	switch {
	case pool.IsSettled():
		return nil, nil, fmt.Errorf("pool %s: %w", pool.ID, entities.ErrAlreadySettled)
	case pool.IsCancelled():
		return nil, nil, fmt.Errorf("pool %s: %w", pool.ID, entities.ErrPoolCancelled)
	}

	winningOutcome := pool.FindOutcome(winningOutcomeID)
	if winningOutcome == nil {
		return nil, nil, fmt.Errorf("outcome %s in pool %s: %w", winningOutcomeID, pool.ID, entities.ErrUnknownOutcome)
	}

	now := s.clock.Now()
	pool.Settle(winningOutcome.ID, now)
	pool.NextSequence()

	plan := CalculatePoolPayouts(pool, winningOutcome)

	lines := make([]entities.WagerPayout, 0, len(plan.Winners)+len(plan.Losers))
	for _, wager := range pool.Wagers {
		if !wager.IsActive() {
			continue
		}
		if payout, won := plan.Payouts[wager.ID]; won {
			wager.MarkWon(payout, now)
		} else {
			wager.MarkLost(now)
		}
		lines = append(lines, entities.WagerPayout{
			PoolID:    pool.ID,
			WagerID:   wager.ID,
			BettorRef: wager.BettorRef,
			OutcomeID: wager.OutcomeID,
			Principal: wager.Principal,
			Payout:    wager.Payout(),
			Status:    wager.Status,
		})
	}

	failure := s.creditAll(ctx, pool, lines, interfaces.LedgerEntryPayout)

	fields := log.Fields{
		"poolID":         pool.ID,
		"winningOutcome": winningOutcome.ID,
		"winners":        len(plan.Winners),
		"losers":         len(plan.Losers),
		"totalPot":       pool.TotalPot,
		"totalPaid":      plan.TotalPaid,
		"houseTake":      plan.HouseTake,
	}
	if plan.NoWinners {
		log.WithFields(fields).Warn("Pool settled with no stake on the winning outcome, pot retained by house")
	} else {
		log.WithFields(fields).Info("Pool settled")
	}

	result := &entities.SettlementResult{
		Pool:             pool.Clone(),
		WinningOutcomeID: winningOutcome.ID,
		Winners:          len(plan.Winners),
		TotalPaid:        plan.TotalPaid,
		HouseTake:        plan.HouseTake,
		NetPot:           plan.NetPot,
		NoWinners:        plan.NoWinners,
		Payouts:          lines,
		FailedCredits:    failure.FailedWagerIDs,
		SettledAt:        now,
	}

	return result, failure, nil
}
