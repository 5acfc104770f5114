package services

import (
	"context"
	"errors"
	"fmt"

	"parimutuel/domain/entities"
	"parimutuel/domain/events"
	"parimutuel/domain/interfaces"
	"parimutuel/domain/money"

	log "github.com/sirupsen/logrus"
)

// PlaceWager debits the bettor and admits a wager on an outcome. Checks run
// in a fixed order so each rejection has one cause: the pool must exist, be
// open and before its lock time, the principal must be within bounds and
// the outcome must belong to the pool. A rejected or failed wager leaves the
// pool exactly as it was.
func (s *poolService) PlaceWager(ctx context.Context, poolID, outcomeID, bettorRef string, principal money.Amount) (*entities.Wager, error) {
	entry, err := s.acquire(ctx, poolID)
	if err != nil {
		return nil, err
	}

	wager, event, err := s.admitWager(ctx, entry.pool, outcomeID, bettorRef, principal)
	entry.release()
	if err != nil {
		return nil, err
	}

	s.publish(*event)
	return wager, nil
}

// admitWager runs with the pool lock held
func (s *poolService) admitWager(ctx context.Context, pool *entities.Pool, outcomeID, bettorRef string, principal money.Amount) (*entities.Wager, *events.WagerPlacedEvent, error) {
	now := s.clock.Now()

	if !pool.CanAcceptWagers(now) {
		return nil, nil, fmt.Errorf("pool %s is %s: %w", pool.ID, pool.ObservedStatus(now), entities.ErrPoolClosed)
	}

	if principal < pool.MinWager || principal > pool.MaxWager {
		return nil, nil, fmt.Errorf("principal %s outside [%s, %s]: %w",
			principal, pool.MinWager, pool.MaxWager, entities.ErrWagerOutOfBounds)
	}

	outcome := pool.FindOutcome(outcomeID)
	if outcome == nil {
		return nil, nil, fmt.Errorf("outcome %s in pool %s: %w", outcomeID, pool.ID, entities.ErrUnknownOutcome)
	}

	if bettorRef == "" {
		return nil, nil, fmt.Errorf("%w: bettor reference is required", entities.ErrInvalidWager)
	}

	// Check both aggregates before any money moves
	newPot, err := money.Add(pool.TotalPot, principal)
	if err != nil {
		return nil, nil, fmt.Errorf("pool %s cannot hold %s more: %w", pool.ID, principal, entities.ErrWagerOutOfBounds)
	}
	newOutcomeTotal, err := money.Add(outcome.TotalWagered, principal)
	if err != nil {
		return nil, nil, fmt.Errorf("outcome %s cannot hold %s more: %w", outcome.ID, principal, entities.ErrWagerOutOfBounds)
	}

	wagerID := s.ids.NewID()
	err = s.callLedger(ctx, s.ledger.Debit, interfaces.LedgerEntry{
		Account:   bettorRef,
		Amount:    principal,
		Reference: interfaces.LedgerReference(wagerID, interfaces.LedgerEntryStake),
		PoolID:    pool.ID,
		WagerID:   wagerID,
		Kind:      interfaces.LedgerEntryStake,
	})
	if err != nil {
		log.WithFields(log.Fields{
			"poolID":    pool.ID,
			"bettorRef": bettorRef,
			"principal": principal,
			"error":     err,
		}).Warn("Ledger debit failed, wager rejected")

		if errors.Is(err, entities.ErrOperationTimedOut) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: account %s: %w", entities.ErrLedgerDebitFailed, bettorRef, err)
	}

	wager := &entities.Wager{
		ID:        wagerID,
		PoolID:    pool.ID,
		OutcomeID: outcome.ID,
		BettorRef: bettorRef,
		Principal: principal,
		Status:    entities.WagerStatusActive,
		PlacedAt:  now,
	}

	pool.Wagers = append(pool.Wagers, wager)
	pool.TotalPot = newPot
	outcome.TotalWagered = newOutcomeTotal
	outcome.BackerCount++

	RecalculateOdds(pool, s.config.MultiplierPlaces)
	wager.OddsAtPlacement = outcome.CurrentMultiplier

	log.WithFields(log.Fields{
		"poolID":    pool.ID,
		"wagerID":   wager.ID,
		"outcomeID": outcome.ID,
		"principal": principal,
		"totalPot":  pool.TotalPot,
		"odds":      wager.OddsAtPlacement.String(),
	}).Debug("Wager accepted")

	event := &events.WagerPlacedEvent{
		PoolID:          pool.ID,
		Sequence:        pool.NextSequence(),
		WagerID:         wager.ID,
		OutcomeID:       outcome.ID,
		BettorRef:       bettorRef,
		Principal:       principal,
		OddsAtPlacement: wager.OddsAtPlacement,
		TotalPot:        pool.TotalPot,
		Multipliers:     Multipliers(pool),
		PlacedAt:        now,
	}

	return wager.Clone(), event, nil
}
