package interfaces

import (
	"context"

	"parimutuel/domain/entities"
	"parimutuel/domain/money"
)

// PoolService defines the parimutuel engine operations
type PoolService interface {
	// CreatePool opens a new pool with a fixed set of outcomes
	CreatePool(ctx context.Context, params entities.PoolParams) (*entities.Pool, error)

	// GetPool returns a consistent copy of a pool, wagers included
	GetPool(ctx context.Context, poolID string) (*entities.Pool, error)

	// ListOpenPools returns summaries of every pool not yet settled or
	// cancelled, ordered by lock time. The view is eventually consistent.
	ListOpenPools() []*entities.Pool

	// PlaceWager debits the bettor and admits a wager on an outcome
	PlaceWager(ctx context.Context, poolID, outcomeID, bettorRef string, principal money.Amount) (*entities.Wager, error)

	// Settle declares the winning outcome and pays out the net pot.
	// A *entities.PartialSettlementFailure is returned alongside a non-nil
	// result when some credits failed.
	Settle(ctx context.Context, poolID, winningOutcomeID string) (*entities.SettlementResult, error)

	// Cancel aborts the pool and refunds every active wager. Credit failures
	// are reported the same way as in Settle.
	Cancel(ctx context.Context, poolID, reason string) (*entities.CancellationResult, error)
}
