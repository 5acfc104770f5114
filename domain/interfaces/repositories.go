package interfaces

import (
	"context"

	"parimutuel/domain/entities"
)

// SettlementRecordRepository persists terminal pool transitions
type SettlementRecordRepository interface {
	// Save stores a record and its lines. Saving the same pool twice is a
	// no-op.
	Save(ctx context.Context, record *entities.SettlementRecord) error

	// GetByPoolID returns the record for a pool, or nil if none was stored
	GetByPoolID(ctx context.Context, poolID string) (*entities.SettlementRecord, error)

	// ListUncredited returns every line with a payout that the ledger never
	// acknowledged, oldest pool first
	ListUncredited(ctx context.Context) ([]entities.WagerPayout, error)

	// MarkCredited flags a line as paid once reconciliation succeeds
	MarkCredited(ctx context.Context, poolID, wagerID string) error
}
