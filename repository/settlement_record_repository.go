package repository

import (
	"context"
	"errors"
	"fmt"

	"parimutuel/database"
	"parimutuel/domain/entities"
	"parimutuel/domain/interfaces"
	"parimutuel/domain/money"

	"github.com/jackc/pgx/v5"
)

// SettlementRecordRepository stores settled and cancelled pools with their
// payout lines
type SettlementRecordRepository struct {
	db *database.DB
	q  queryable
}

// NewSettlementRecordRepository creates a new settlement record repository
func NewSettlementRecordRepository(db *database.DB) *SettlementRecordRepository {
	return &SettlementRecordRepository{db: db, q: db.Pool}
}

var _ interfaces.SettlementRecordRepository = (*SettlementRecordRepository)(nil)

// Save writes the record and its lines in one transaction
func (r *SettlementRecordRepository) Save(ctx context.Context, record *entities.SettlementRecord) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO settlement_records (
				pool_id, outcome, winning_outcome_id, cancel_reason, total_pot,
				house_take, total_paid, no_winners, failed_credits, closed_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (pool_id) DO NOTHING
		`
		tag, err := tx.Exec(ctx, query,
			record.PoolID,
			string(record.Kind),
			record.WinningOutcomeID,
			record.CancelReason,
			int64(record.TotalPot),
			int64(record.HouseTake),
			int64(record.TotalPaid),
			record.NoWinners,
			record.FailedCredits,
			record.ClosedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert settlement record: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for i, line := range record.Lines {
			batch.Queue(`
				INSERT INTO settlement_lines (
					pool_id, wager_id, position, bettor_ref, outcome_id,
					principal, payout, status, credited
				)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`, record.PoolID, line.WagerID, i, line.BettorRef, line.OutcomeID,
				int64(line.Principal), int64(line.Payout), string(line.Status), line.Credited)
		}

		results := tx.SendBatch(ctx, batch)
		for range record.Lines {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("failed to insert settlement line: %w", err)
			}
		}
		return results.Close()
	})
}

// GetByPoolID returns nil if the pool has no stored record
func (r *SettlementRecordRepository) GetByPoolID(ctx context.Context, poolID string) (*entities.SettlementRecord, error) {
	query := `
		SELECT pool_id, outcome, winning_outcome_id, cancel_reason, total_pot,
		       house_take, total_paid, no_winners, failed_credits, closed_at, recorded_at
		FROM settlement_records
		WHERE pool_id = $1
	`

	var record entities.SettlementRecord
	var kind string
	var totalPot, houseTake, totalPaid int64
	err := r.q.QueryRow(ctx, query, poolID).Scan(
		&record.PoolID,
		&kind,
		&record.WinningOutcomeID,
		&record.CancelReason,
		&totalPot,
		&houseTake,
		&totalPaid,
		&record.NoWinners,
		&record.FailedCredits,
		&record.ClosedAt,
		&record.RecordedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement record: %w", err)
	}

	record.Kind = entities.SettlementRecordKind(kind)
	record.TotalPot = money.Amount(totalPot)
	record.HouseTake = money.Amount(houseTake)
	record.TotalPaid = money.Amount(totalPaid)

	lines, err := r.queryLines(ctx, `
		SELECT pool_id, wager_id, bettor_ref, outcome_id, principal, payout, status, credited
		FROM settlement_lines
		WHERE pool_id = $1
		ORDER BY position
	`, poolID)
	if err != nil {
		return nil, err
	}
	record.Lines = lines

	return &record, nil
}

// ListUncredited returns lines the ledger never acknowledged
func (r *SettlementRecordRepository) ListUncredited(ctx context.Context) ([]entities.WagerPayout, error) {
	return r.queryLines(ctx, `
		SELECT l.pool_id, l.wager_id, l.bettor_ref, l.outcome_id, l.principal, l.payout, l.status, l.credited
		FROM settlement_lines l
		JOIN settlement_records s ON s.pool_id = l.pool_id
		WHERE NOT l.credited AND l.payout > 0
		ORDER BY s.closed_at, l.pool_id, l.position
	`)
}

// MarkCredited flags a line as paid
func (r *SettlementRecordRepository) MarkCredited(ctx context.Context, poolID, wagerID string) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE settlement_lines SET credited = TRUE
		WHERE pool_id = $1 AND wager_id = $2
	`, poolID, wagerID)
	if err != nil {
		return fmt.Errorf("failed to mark line credited: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("settlement line %s/%s not found", poolID, wagerID)
	}
	return nil
}

func (r *SettlementRecordRepository) queryLines(ctx context.Context, query string, args ...any) ([]entities.WagerPayout, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query settlement lines: %w", err)
	}
	defer rows.Close()

	var lines []entities.WagerPayout
	for rows.Next() {
		var line entities.WagerPayout
		var principal, payout int64
		var status string
		if err := rows.Scan(
			&line.PoolID,
			&line.WagerID,
			&line.BettorRef,
			&line.OutcomeID,
			&principal,
			&payout,
			&status,
			&line.Credited,
		); err != nil {
			return nil, fmt.Errorf("failed to scan settlement line: %w", err)
		}
		line.Principal = money.Amount(principal)
		line.Payout = money.Amount(payout)
		line.Status = entities.WagerStatus(status)
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settlement lines: %w", err)
	}

	return lines, nil
}
