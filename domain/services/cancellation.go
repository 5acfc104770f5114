package services

import (
	"context"
	"fmt"

	"parimutuel/domain/entities"
	"parimutuel/domain/events"
	"parimutuel/domain/interfaces"
	"parimutuel/domain/money"

	log "github.com/sirupsen/logrus"
)

// Cancel aborts the pool and refunds the full principal of every active
// wager. Credit failures are reported the same way as in Settle.
func (s *poolService) Cancel(ctx context.Context, poolID, reason string) (*entities.CancellationResult, error) {
	entry, err := s.acquire(ctx, poolID)
	if err != nil {
		return nil, err
	}

	result, failure, err := s.cancelPool(ctx, entry.pool, reason)
	entry.release()
	if err != nil {
		return nil, err
	}

	s.publish(events.PoolCancelledEvent{Sequence: result.Pool.Sequence, Result: result})

	if failure.HasFailures() {
		return result, failure
	}
	return result, nil
}

// cancelPool runs with the pool lock held
func (s *poolService) cancelPool(ctx context.Context, pool *entities.Pool, reason string) (*entities.CancellationResult, *entities.PartialSettlementFailure, error) {
	switch {
	case pool.IsSettled():
		return nil, nil, fmt.Errorf("pool %s: %w", pool.ID, entities.ErrAlreadySettled)
	case pool.IsCancelled():
		return nil, nil, fmt.Errorf("pool %s: %w", pool.ID, entities.ErrAlreadyCancelled)
	}

	now := s.clock.Now()
	pool.Cancel(reason, now)
	pool.NextSequence()

	var totalRefunded money.Amount
	lines := make([]entities.WagerPayout, 0, len(pool.Wagers))
	for _, wager := range pool.Wagers {
		if !wager.IsActive() {
			continue
		}
		wager.MarkRefunded(now)
		totalRefunded += wager.Payout()
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

	failure := s.creditAll(ctx, pool, lines, interfaces.LedgerEntryRefund)

	log.WithFields(log.Fields{
		"poolID":        pool.ID,
		"reason":        reason,
		"refundedCount": len(lines),
		"totalRefunded": totalRefunded,
		"failedCredits": len(failure.FailedWagerIDs),
	}).Info("Pool cancelled")

	result := &entities.CancellationResult{
		Pool:          pool.Clone(),
		Reason:        reason,
		RefundedCount: len(lines),
		TotalRefunded: totalRefunded,
		Refunds:       lines,
		FailedCredits: failure.FailedWagerIDs,
		CancelledAt:   now,
	}

	return result, failure, nil
}
