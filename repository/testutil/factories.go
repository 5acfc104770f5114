package testutil

import (
	"fmt"
	"time"

	"parimutuel/domain/entities"
	"parimutuel/domain/interfaces"
	"parimutuel/domain/money"
)

// CreateTestEntry builds a ledger movement with a reference unique to wagerID and kind
func CreateTestEntry(account, poolID, wagerID string, kind interfaces.LedgerEntryKind, amount money.Amount) interfaces.LedgerEntry {
	return interfaces.LedgerEntry{
		Account:   account,
		Amount:    amount,
		Reference: fmt.Sprintf("%s:%s", wagerID, kind),
		PoolID:    poolID,
		WagerID:   wagerID,
		Kind:      kind,
	}
}

// CreateTestSettledRecord builds a settled record with one winning and one
// losing line. The winning line is left uncredited.
func CreateTestSettledRecord(poolID string, closedAt time.Time) *entities.SettlementRecord {
	winner := "home"
	return &entities.SettlementRecord{
		PoolID:           poolID,
		Kind:             entities.SettlementRecordSettled,
		WinningOutcomeID: &winner,
		TotalPot:         150,
		HouseTake:        15,
		TotalPaid:        135,
		FailedCredits:    1,
		ClosedAt:         closedAt,
		Lines: []entities.WagerPayout{
			{
				PoolID:    poolID,
				WagerID:   poolID + "-w1",
				BettorRef: "acct-100",
				OutcomeID: "home",
				Principal: 100,
				Payout:    135,
				Status:    entities.WagerStatusWon,
			},
			{
				PoolID:    poolID,
				WagerID:   poolID + "-w2",
				BettorRef: "acct-200",
				OutcomeID: "away",
				Principal: 50,
				Status:    entities.WagerStatusLost,
			},
		},
	}
}

// CreateTestCancelledRecord builds a cancelled record whose refunds all reached the ledger
func CreateTestCancelledRecord(poolID string, closedAt time.Time) *entities.SettlementRecord {
	return &entities.SettlementRecord{
		PoolID:       poolID,
		Kind:         entities.SettlementRecordCancelled,
		CancelReason: "event postponed",
		TotalPot:     40,
		TotalPaid:    40,
		ClosedAt:     closedAt,
		Lines: []entities.WagerPayout{
			{
				PoolID:    poolID,
				WagerID:   poolID + "-w1",
				BettorRef: "acct-300",
				OutcomeID: "draw",
				Principal: 40,
				Payout:    40,
				Status:    entities.WagerStatusRefunded,
				Credited:  true,
			},
		},
	}
}
