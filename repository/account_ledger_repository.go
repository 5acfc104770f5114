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
	"github.com/jackc/pgx/v5/pgconn"
)

const pgForeignKeyViolation = "23503"

// AccountLedgerRepository is a Postgres-backed Ledger. Every movement is
// stored under its reference, so a retried debit or credit is applied once.
type AccountLedgerRepository struct {
	db *database.DB
}

// NewAccountLedgerRepository creates a new ledger repository
func NewAccountLedgerRepository(db *database.DB) *AccountLedgerRepository {
	return &AccountLedgerRepository{db: db}
}

var _ interfaces.Ledger = (*AccountLedgerRepository)(nil)

// OpenAccount creates an account with an opening balance. Opening an account
// that already exists leaves it untouched.
func (r *AccountLedgerRepository) OpenAccount(ctx context.Context, account string, balance money.Amount) error {
	query := `
		INSERT INTO ledger_accounts (account, balance)
		VALUES ($1, $2)
		ON CONFLICT (account) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, account, int64(balance)); err != nil {
		return fmt.Errorf("failed to open account %s: %w", account, err)
	}
	return nil
}

// Balance returns the current balance of an account
func (r *AccountLedgerRepository) Balance(ctx context.Context, account string) (money.Amount, error) {
	var balance int64
	err := r.db.QueryRow(ctx, `SELECT balance FROM ledger_accounts WHERE account = $1`, account).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("account %s: %w", account, entities.ErrUnknownAccount)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return money.Amount(balance), nil
}

// Debit takes the stake from the bettor's account. It fails without side
// effects when the account is unknown or cannot cover the amount.
func (r *AccountLedgerRepository) Debit(ctx context.Context, entry interfaces.LedgerEntry) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		applied, err := r.recordEntry(ctx, tx, entry)
		if err != nil || !applied {
			return err
		}

		tag, err := tx.Exec(ctx, `
			UPDATE ledger_accounts
			SET balance = balance - $2, updated_at = NOW()
			WHERE account = $1 AND balance >= $2
		`, entry.Account, int64(entry.Amount))
		if err != nil {
			return fmt.Errorf("failed to debit account: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("account %s cannot cover %s: %w", entry.Account, entry.Amount, entities.ErrInsufficientFunds)
		}
		return nil
	})
}

// Credit pays into the bettor's account, opening it if needed
func (r *AccountLedgerRepository) Credit(ctx context.Context, entry interfaces.LedgerEntry) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO ledger_accounts (account) VALUES ($1)
			ON CONFLICT (account) DO NOTHING
		`, entry.Account); err != nil {
			return fmt.Errorf("failed to ensure account: %w", err)
		}

		applied, err := r.recordEntry(ctx, tx, entry)
		if err != nil || !applied {
			return err
		}

		if _, err := tx.Exec(ctx, `
			UPDATE ledger_accounts
			SET balance = balance + $2, updated_at = NOW()
			WHERE account = $1
		`, entry.Account, int64(entry.Amount)); err != nil {
			return fmt.Errorf("failed to credit account: %w", err)
		}
		return nil
	})
}

// EntriesForPool returns every movement made for a pool in insertion order
func (r *AccountLedgerRepository) EntriesForPool(ctx context.Context, poolID string) ([]interfaces.LedgerEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT reference, account, kind, amount, pool_id, wager_id
		FROM ledger_entries
		WHERE pool_id = $1
		ORDER BY created_at, reference
	`, poolID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []interfaces.LedgerEntry
	for rows.Next() {
		var entry interfaces.LedgerEntry
		var kind string
		var amount int64
		if err := rows.Scan(&entry.Reference, &entry.Account, &kind, &amount, &entry.PoolID, &entry.WagerID); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entry.Kind = interfaces.LedgerEntryKind(kind)
		entry.Amount = money.Amount(amount)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}

	return entries, nil
}

// recordEntry stores the movement and reports whether it is new
func (r *AccountLedgerRepository) recordEntry(ctx context.Context, q queryable, entry interfaces.LedgerEntry) (bool, error) {
	if !entry.Amount.IsPositive() {
		return false, fmt.Errorf("ledger amount must be positive, got %s", entry.Amount)
	}

	tag, err := q.Exec(ctx, `
		INSERT INTO ledger_entries (reference, account, kind, amount, pool_id, wager_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (reference) DO NOTHING
	`, entry.Reference, entry.Account, string(entry.Kind), int64(entry.Amount), entry.PoolID, entry.WagerID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return false, fmt.Errorf("account %s: %w", entry.Account, entities.ErrUnknownAccount)
		}
		return false, fmt.Errorf("failed to record ledger entry: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}
