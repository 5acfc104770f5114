package services

import (
	"context"
	"fmt"
	"testing"

	"parimutuel/domain/entities"
	"parimutuel/domain/events"
	"parimutuel/domain/interfaces"
	"parimutuel/domain/money"
	"parimutuel/domain/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newConcurrentFixture(t *testing.T, balances map[string]money.Amount) (interfaces.PoolService, *testhelpers.InMemoryLedger, *testhelpers.RecordingPublisher) {
	t.Helper()
	ledger := testhelpers.NewInMemoryLedger(balances)
	publisher := &testhelpers.RecordingPublisher{}
	clock := testhelpers.NewFixedClock(TestStart)
	ids := testhelpers.NewSequentialIDGenerator("c")
	return NewPoolService(ledger, publisher, clock, ids, DefaultPoolServiceConfig()), ledger, publisher
}

func TestPoolService_ConcurrentWagersOnOneOutcome(t *testing.T) {
	const n = 1000

	service, ledger, publisher := newConcurrentFixture(t, map[string]money.Amount{TestBettor1: n})
	ctx := context.Background()

	pool, err := service.CreatePool(ctx, TwoOutcomeParams("0.05"))
	require.NoError(t, err)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := service.PlaceWager(ctx, pool.ID, TestOutcomeA, TestBettor1, 1)
			return err
		})
	}
	require.NoError(t, g.Wait())

	current, err := service.GetPool(ctx, pool.ID)
	require.NoError(t, err)
	assert.EqualValues(t, n, current.TotalPot)
	assert.EqualValues(t, n, current.Outcomes[0].TotalWagered)
	assert.Equal(t, n, current.Outcomes[0].BackerCount)
	assert.Len(t, current.Wagers, n)

	assert.EqualValues(t, 0, ledger.Balance(TestBettor1))
	assert.Len(t, publisher.OfType(events.EventTypeWagerPlaced), n)

	ids := make(map[string]bool, n)
	for _, w := range current.Wagers {
		ids[w.ID] = true
	}
	assert.Len(t, ids, n)
}

func TestPoolService_ConcurrentSettleAndWagers(t *testing.T) {
	const bettors = 50

	balances := make(map[string]money.Amount, bettors)
	for i := 0; i < bettors; i++ {
		balances[fmt.Sprintf("acct-%d", i)] = 100
	}
	service, ledger, _ := newConcurrentFixture(t, balances)
	ctx := context.Background()

	pool, err := service.CreatePool(ctx, TwoOutcomeParams("0.1"))
	require.NoError(t, err)

	var g errgroup.Group
	for i := 0; i < bettors; i++ {
		account := fmt.Sprintf("acct-%d", i)
		outcome := TestOutcomeA
		if i%3 == 0 {
			outcome = TestOutcomeB
		}
		g.Go(func() error {
			_, err := service.PlaceWager(ctx, pool.ID, outcome, account, 10)
			if err != nil && !assert.ErrorIs(t, err, entities.ErrPoolClosed) {
				return err
			}
			return nil
		})
	}

	settled := make(chan *entities.SettlementResult, 1)
	g.Go(func() error {
		result, err := service.Settle(ctx, pool.ID, TestOutcomeA)
		settled <- result
		return err
	})
	require.NoError(t, g.Wait())

	result := <-settled
	require.NotNil(t, result)

	// Whatever got in before the settlement is fully accounted for
	assert.Equal(t, result.Pool.TotalPot, result.TotalPaid+result.HouseTake)
	assert.EqualValues(t, 10*len(result.Pool.Wagers), result.Pool.TotalPot)

	var total money.Amount
	for i := 0; i < bettors; i++ {
		total += ledger.Balance(fmt.Sprintf("acct-%d", i))
	}
	assert.Equal(t, money.Amount(100*bettors)-result.HouseTake, total)

	final, err := service.GetPool(ctx, pool.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Pool, final)
}

func TestPoolService_PoolsDoNotBlockEachOther(t *testing.T) {
	service, _, _ := newConcurrentFixture(t, map[string]money.Amount{TestBettor1: 1000, TestBettor2: 1000})
	ctx := context.Background()

	first, err := service.CreatePool(ctx, TwoOutcomeParams("0.05"))
	require.NoError(t, err)
	second, err := service.CreatePool(ctx, TwoOutcomeParams("0.05"))
	require.NoError(t, err)

	var g errgroup.Group
	for i := 0; i < 200; i++ {
		g.Go(func() error {
			_, err := service.PlaceWager(ctx, first.ID, TestOutcomeA, TestBettor1, 5)
			return err
		})
		g.Go(func() error {
			_, err := service.PlaceWager(ctx, second.ID, TestOutcomeB, TestBettor2, 5)
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, id := range []string{first.ID, second.ID} {
		pool, err := service.GetPool(ctx, id)
		require.NoError(t, err)
		assert.EqualValues(t, 1000, pool.TotalPot)
	}
}

func sequenceOf(t *testing.T, event events.Event) (string, uint64) {
	t.Helper()
	switch e := event.(type) {
	case events.PoolCreatedEvent:
		return e.PoolID, e.Sequence
	case events.WagerPlacedEvent:
		return e.PoolID, e.Sequence
	case events.PoolSettledEvent:
		return e.Result.Pool.ID, e.Sequence
	case events.PoolCancelledEvent:
		return e.Result.Pool.ID, e.Sequence
	}
	t.Fatalf("unexpected event %T", event)
	return "", 0
}

func TestPoolService_EventSequence(t *testing.T) {
	service, _, publisher := newConcurrentFixture(t, map[string]money.Amount{TestBettor1: 1000, TestBettor2: 1000})
	ctx := context.Background()

	first, err := service.CreatePool(ctx, TwoOutcomeParams("0.05"))
	require.NoError(t, err)
	second, err := service.CreatePool(ctx, TwoOutcomeParams("0.05"))
	require.NoError(t, err)

	_, err = service.PlaceWager(ctx, first.ID, TestOutcomeA, TestBettor1, 10)
	require.NoError(t, err)
	_, err = service.PlaceWager(ctx, second.ID, TestOutcomeA, TestBettor2, 10)
	require.NoError(t, err)
	_, err = service.PlaceWager(ctx, first.ID, TestOutcomeB, TestBettor2, 20)
	require.NoError(t, err)

	// A rejected wager does not take a number
	_, err = service.PlaceWager(ctx, first.ID, "missing", TestBettor1, 10)
	require.ErrorIs(t, err, entities.ErrUnknownOutcome)

	_, err = service.Settle(ctx, first.ID, TestOutcomeA)
	require.NoError(t, err)
	_, err = service.Cancel(ctx, second.ID, "abandoned")
	require.NoError(t, err)

	got := map[string][]uint64{}
	for _, event := range publisher.Events() {
		poolID, sequence := sequenceOf(t, event)
		got[poolID] = append(got[poolID], sequence)
	}
	assert.Equal(t, []uint64{1, 2, 3, 4}, got[first.ID])
	assert.Equal(t, []uint64{1, 2, 3}, got[second.ID])

	current, err := service.GetPool(ctx, first.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, current.Sequence)
}

func TestPoolService_EventSequenceUnderContention(t *testing.T) {
	const bettors = 100

	balances := make(map[string]money.Amount, bettors)
	for i := 0; i < bettors; i++ {
		balances[fmt.Sprintf("acct-%d", i)] = 100
	}
	service, _, publisher := newConcurrentFixture(t, balances)
	ctx := context.Background()

	pool, err := service.CreatePool(ctx, TwoOutcomeParams("0.1"))
	require.NoError(t, err)

	var g errgroup.Group
	for i := 0; i < bettors; i++ {
		account := fmt.Sprintf("acct-%d", i)
		g.Go(func() error {
			_, err := service.PlaceWager(ctx, pool.ID, TestOutcomeA, account, 10)
			if err != nil && !assert.ErrorIs(t, err, entities.ErrPoolClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		_, err := service.Settle(ctx, pool.ID, TestOutcomeA)
		return err
	})
	require.NoError(t, g.Wait())

	var settledSequence uint64
	seen := map[uint64]bool{}
	for _, event := range publisher.Events() {
		_, sequence := sequenceOf(t, event)
		assert.False(t, seen[sequence], "sequence %d issued twice", sequence)
		seen[sequence] = true
		if settled, ok := event.(events.PoolSettledEvent); ok {
			settledSequence = settled.Sequence
		}
	}

	// Numbers are contiguous and the settlement holds the last one, whatever
	// order the events were delivered in
	assert.Len(t, seen, len(publisher.Events()))
	assert.EqualValues(t, len(seen), settledSequence)
	for i := uint64(1); i <= settledSequence; i++ {
		assert.True(t, seen[i], "sequence %d missing", i)
	}
}
