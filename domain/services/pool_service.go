package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"parimutuel/domain/entities"
	"parimutuel/domain/events"
	"parimutuel/domain/interfaces"
	"parimutuel/domain/money"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

// PoolServiceConfig tunes the engine
type PoolServiceConfig struct {
	// LedgerCallTimeout bounds every debit/credit made while a pool is
	// locked. Zero leaves the caller's context as the only bound.
	LedgerCallTimeout time.Duration

	// MultiplierPlaces is the precision odds multipliers are truncated to
	MultiplierPlaces int32
}

// DefaultPoolServiceConfig returns the engine defaults
func DefaultPoolServiceConfig() PoolServiceConfig {
	return PoolServiceConfig{
		LedgerCallTimeout: 5 * time.Second,
		MultiplierPlaces:  money.DefaultMultiplierPlaces,
	}
}

// poolEntry owns one pool. pool is only touched while lock is held;
// snapshot is a wager-less copy refreshed on every release.
type poolEntry struct {
	lock     *poolLock
	pool     *entities.Pool
	snapshot atomic.Pointer[entities.Pool]
}

func (e *poolEntry) release() {
	e.snapshot.Store(e.pool.Summary())
	e.lock.Release()
}

type poolService struct {
	ledger    interfaces.Ledger
	publisher interfaces.EventPublisher
	clock     interfaces.Clock
	ids       interfaces.IDGenerator
	config    PoolServiceConfig
	validate  *validator.Validate

	mu    sync.RWMutex
	pools map[string]*poolEntry
}

// NewPoolService creates a new pool registry and engine. The registry lives
// as long as the returned value; nothing is shared between instances.
func NewPoolService(
	ledger interfaces.Ledger,
	publisher interfaces.EventPublisher,
	clock interfaces.Clock,
	ids interfaces.IDGenerator,
	cfg PoolServiceConfig,
) interfaces.PoolService {
	if cfg.MultiplierPlaces <= 0 {
		cfg.MultiplierPlaces = money.DefaultMultiplierPlaces
	}

	return &poolService{
		ledger:    ledger,
		publisher: publisher,
		clock:     clock,
		ids:       ids,
		config:    cfg,
		validate:  validator.New(),
		pools:     make(map[string]*poolEntry),
	}
}

// CreatePool opens a new pool with a fixed set of outcomes
func (s *poolService) CreatePool(ctx context.Context, params entities.PoolParams) (*entities.Pool, error) {
	if err := s.validatePoolParams(params); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	pool := &entities.Pool{
		ID:               s.ids.NewID(),
		Descriptor:       params.Descriptor,
		Status:           entities.PoolStatusOpen,
		HouseFeeFraction: params.HouseFeeFraction,
		MinWager:         params.MinWager,
		MaxWager:         params.MaxWager,
		LockTime:         params.LockTime,
		CreatedAt:        now,
	}

	outcomeIDs := make([]string, len(params.Outcomes))
	for i, spec := range params.Outcomes {
		pool.Outcomes = append(pool.Outcomes, &entities.Outcome{
			ID:                spec.ID,
			Description:       spec.Description,
			InitialOdds:       spec.InitialOdds,
			CurrentMultiplier: spec.InitialOdds,
		})
		outcomeIDs[i] = spec.ID
	}

	sequence := pool.NextSequence()
	entry := &poolEntry{lock: newPoolLock(), pool: pool}
	entry.snapshot.Store(pool.Summary())

	s.mu.Lock()
	if _, exists := s.pools[pool.ID]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("pool %s: %w", pool.ID, entities.ErrDuplicatePoolID)
	}
	s.pools[pool.ID] = entry
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"poolID":   pool.ID,
		"outcomes": len(pool.Outcomes),
		"houseFee": pool.HouseFeeFraction.String(),
		"lockTime": pool.LockTime,
	}).Info("Pool created")

	s.publish(events.PoolCreatedEvent{
		PoolID:     pool.ID,
		Sequence:   sequence,
		OutcomeIDs: outcomeIDs,
		LockTime:   pool.LockTime,
		CreatedAt:  now,
	})

	return pool.Clone(), nil
}

// GetPool returns a consistent copy of a pool, wagers included
func (s *poolService) GetPool(ctx context.Context, poolID string) (*entities.Pool, error) {
	entry, err := s.acquire(ctx, poolID)
	if err != nil {
		return nil, err
	}
	defer entry.release()

	return entry.pool.Clone(), nil
}

// ListOpenPools returns summaries of every pool still open, ordered by lock
// time. It reads snapshots and never waits on a pool lock.
func (s *poolService) ListOpenPools() []*entities.Pool {
	s.mu.RLock()
	pools := make([]*entities.Pool, 0, len(s.pools))
	for _, entry := range s.pools {
		snapshot := entry.snapshot.Load()
		if snapshot != nil && snapshot.IsOpen() {
			pools = append(pools, snapshot.Summary())
		}
	}
	s.mu.RUnlock()

	sort.Slice(pools, func(i, j int) bool {
		if !pools[i].LockTime.Equal(pools[j].LockTime) {
			return pools[i].LockTime.Before(pools[j].LockTime)
		}
		if !pools[i].CreatedAt.Equal(pools[j].CreatedAt) {
			return pools[i].CreatedAt.Before(pools[j].CreatedAt)
		}
		return pools[i].ID < pools[j].ID
	})

	return pools
}

// lookup finds a pool entry without locking it
func (s *poolService) lookup(poolID string) (*poolEntry, error) {
	s.mu.RLock()
	entry, ok := s.pools[poolID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("pool %s: %w", poolID, entities.ErrPoolNotFound)
	}
	return entry, nil
}

// acquire finds a pool and takes its lock. The caller must release it.
func (s *poolService) acquire(ctx context.Context, poolID string) (*poolEntry, error) {
	entry, err := s.lookup(poolID)
	if err != nil {
		return nil, err
	}
	if err := entry.lock.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("pool %s: %w", poolID, err)
	}
	return entry, nil
}

// callLedger runs a ledger operation under the configured deadline
func (s *poolService) callLedger(
	ctx context.Context,
	op func(context.Context, interfaces.LedgerEntry) error,
	entry interfaces.LedgerEntry,
) error {
	if s.config.LedgerCallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.LedgerCallTimeout)
		defer cancel()
	}

	err := op(ctx, entry)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return fmt.Errorf("%w: ledger %s %s: %w", entities.ErrOperationTimedOut, entry.Kind, entry.Reference, err)
	}
	return err
}

// creditAll pays every line with a positive amount and records failures.
// Nothing already credited is undone.
func (s *poolService) creditAll(ctx context.Context, pool *entities.Pool, lines []entities.WagerPayout, kind interfaces.LedgerEntryKind) *entities.PartialSettlementFailure {
	failure := entities.NewPartialSettlementFailure(pool.ID)

	for i := range lines {
		line := &lines[i]
		if line.Payout <= 0 {
			continue
		}

		err := s.callLedger(ctx, s.ledger.Credit, interfaces.LedgerEntry{
			Account:   line.BettorRef,
			Amount:    line.Payout,
			Reference: interfaces.LedgerReference(line.WagerID, kind),
			PoolID:    pool.ID,
			WagerID:   line.WagerID,
			Kind:      kind,
		})
		if err != nil {
			log.WithFields(log.Fields{
				"poolID":    pool.ID,
				"wagerID":   line.WagerID,
				"bettorRef": line.BettorRef,
				"amount":    line.Payout,
				"kind":      kind,
				"error":     err,
			}).Error("Ledger credit failed, wager needs reconciliation")
			failure.Add(line.WagerID, err)
			continue
		}
		line.Credited = true
	}

	return failure
}

// publish emits an event; delivery problems never fail the operation
func (s *poolService) publish(event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(event); err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"error":     err,
		}).Error("Failed to publish pool event")
	}
}

// validatePoolParams checks creation parameters
func (s *poolService) validatePoolParams(params entities.PoolParams) error {
	if err := s.validate.Struct(params); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return fmt.Errorf("%w: %s", entities.ErrInvalidConfiguration, formatValidationErrors(validationErrors))
		}
		return fmt.Errorf("%w: %v", entities.ErrInvalidConfiguration, err)
	}

	if !money.ValidFraction(params.HouseFeeFraction) {
		return fmt.Errorf("%w: house fee fraction %s must be in [0, 1)", entities.ErrInvalidConfiguration, params.HouseFeeFraction)
	}

	for _, spec := range params.Outcomes {
		if spec.InitialOdds.IsNegative() {
			return fmt.Errorf("%w: outcome %s has negative initial odds", entities.ErrInvalidConfiguration, spec.ID)
		}
	}

	return nil
}

// formatValidationErrors renders validator errors as one readable line
func formatValidationErrors(validationErrors validator.ValidationErrors) string {
	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", fe.Namespace()))
		case "min":
			messages = append(messages, fmt.Sprintf("%s needs at least %s entries", fe.Namespace(), fe.Param()))
		case "unique":
			messages = append(messages, fmt.Sprintf("%s contains duplicate %s values", fe.Namespace(), fe.Param()))
		case "ltefield":
			messages = append(messages, fmt.Sprintf("%s must not exceed %s", fe.Namespace(), fe.Param()))
		case "gte":
			messages = append(messages, fmt.Sprintf("%s must be at least %s", fe.Namespace(), fe.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
		}
	}
	return strings.Join(messages, "; ")
}
