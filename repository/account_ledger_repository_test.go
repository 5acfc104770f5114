package repository

import (
	"context"
	"testing"

	"parimutuel/domain/entities"
	"parimutuel/domain/interfaces"
	"parimutuel/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountLedgerRepository_Debit(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewAccountLedgerRepository(testDB.DB)
	ctx := context.Background()

	require.NoError(t, repo.OpenAccount(ctx, "acct-100", 500))

	t.Run("debits the balance", func(t *testing.T) {
		entry := testutil.CreateTestEntry("acct-100", "pool-1", "w-1", interfaces.LedgerEntryStake, 200)
		require.NoError(t, repo.Debit(ctx, entry))

		balance, err := repo.Balance(ctx, "acct-100")
		require.NoError(t, err)
		assert.EqualValues(t, 300, balance)
	})

	t.Run("repeated reference is applied once", func(t *testing.T) {
		entry := testutil.CreateTestEntry("acct-100", "pool-1", "w-1", interfaces.LedgerEntryStake, 200)
		require.NoError(t, repo.Debit(ctx, entry))

		balance, err := repo.Balance(ctx, "acct-100")
		require.NoError(t, err)
		assert.EqualValues(t, 300, balance)
	})

	t.Run("insufficient funds leaves no trace", func(t *testing.T) {
		entry := testutil.CreateTestEntry("acct-100", "pool-1", "w-2", interfaces.LedgerEntryStake, 301)
		err := repo.Debit(ctx, entry)
		assert.ErrorIs(t, err, entities.ErrInsufficientFunds)

		balance, err := repo.Balance(ctx, "acct-100")
		require.NoError(t, err)
		assert.EqualValues(t, 300, balance)

		entries, err := repo.EntriesForPool(ctx, "pool-1")
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("unknown account", func(t *testing.T) {
		entry := testutil.CreateTestEntry("acct-missing", "pool-1", "w-3", interfaces.LedgerEntryStake, 10)
		err := repo.Debit(ctx, entry)
		assert.ErrorIs(t, err, entities.ErrUnknownAccount)
	})
}

func TestAccountLedgerRepository_Credit(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewAccountLedgerRepository(testDB.DB)
	ctx := context.Background()

	t.Run("opens the account on first credit", func(t *testing.T) {
		entry := testutil.CreateTestEntry("acct-200", "pool-2", "w-1", interfaces.LedgerEntryPayout, 135)
		require.NoError(t, repo.Credit(ctx, entry))
		require.NoError(t, repo.Credit(ctx, entry))

		balance, err := repo.Balance(ctx, "acct-200")
		require.NoError(t, err)
		assert.EqualValues(t, 135, balance)
	})

	t.Run("entries keep their kind", func(t *testing.T) {
		refund := testutil.CreateTestEntry("acct-200", "pool-2", "w-2", interfaces.LedgerEntryRefund, 20)
		require.NoError(t, repo.Credit(ctx, refund))

		entries, err := repo.EntriesForPool(ctx, "pool-2")
		require.NoError(t, err)
		require.Len(t, entries, 2)

		kinds := []interfaces.LedgerEntryKind{entries[0].Kind, entries[1].Kind}
		assert.ElementsMatch(t, []interfaces.LedgerEntryKind{interfaces.LedgerEntryPayout, interfaces.LedgerEntryRefund}, kinds)
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		entry := testutil.CreateTestEntry("acct-200", "pool-2", "w-3", interfaces.LedgerEntryPayout, 0)
		assert.Error(t, repo.Credit(ctx, entry))
	})
}
