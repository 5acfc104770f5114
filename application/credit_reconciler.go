package application

import (
	"context"
	"fmt"

	"parimutuel/domain/entities"
	"parimutuel/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// CreditReconciler retries ledger credits that failed during settlement or
// cancellation. The ledger reference is the one the engine used, so a credit
// that did land but was reported as failed is not paid twice.
type CreditReconciler struct {
	records interfaces.SettlementRecordRepository
	ledger  interfaces.Ledger
}

// NewCreditReconciler creates a new credit reconciler
func NewCreditReconciler(records interfaces.SettlementRecordRepository, ledger interfaces.Ledger) *CreditReconciler {
	return &CreditReconciler{records: records, ledger: ledger}
}

// ReconcileReport summarises one reconciliation pass
type ReconcileReport struct {
	Attempted int
	Credited  int
	Failed    []string // Wager ids still uncredited
}

// Run makes one pass over every uncredited line
func (c *CreditReconciler) Run(ctx context.Context) (*ReconcileReport, error) {
	lines, err := c.records.ListUncredited(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list uncredited lines: %w", err)
	}

	report := &ReconcileReport{}
	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		report.Attempted++
		if err := c.credit(ctx, line); err != nil {
			log.WithFields(log.Fields{
				"poolID":  line.PoolID,
				"wagerID": line.WagerID,
				"amount":  line.Payout,
				"error":   err,
			}).Error("Reconciliation credit failed")
			report.Failed = append(report.Failed, line.WagerID)
			continue
		}
		report.Credited++
	}

	log.WithFields(log.Fields{
		"attempted": report.Attempted,
		"credited":  report.Credited,
		"failed":    len(report.Failed),
	}).Info("Completed credit reconciliation")

	return report, nil
}

func (c *CreditReconciler) credit(ctx context.Context, line entities.WagerPayout) error {
	kind := interfaces.LedgerEntryPayout
	if line.Status == entities.WagerStatusRefunded {
		kind = interfaces.LedgerEntryRefund
	}

	err := c.ledger.Credit(ctx, interfaces.LedgerEntry{
		Account:   line.BettorRef,
		Amount:    line.Payout,
		Reference: interfaces.LedgerReference(line.WagerID, kind),
		PoolID:    line.PoolID,
		WagerID:   line.WagerID,
		Kind:      kind,
	})
	if err != nil {
		return err
	}

	return c.records.MarkCredited(ctx, line.PoolID, line.WagerID)
}
