package application

import (
	"context"
	"sync"
	"time"

	"parimutuel/domain/events"
	"parimutuel/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// LockWatchWorker announces pools that have passed their lock time. It only
// reads the registry; a pool is locked by the clock, not by this worker.
type LockWatchWorker struct {
	pools     interfaces.PoolService
	publisher interfaces.EventPublisher
	clock     interfaces.Clock

	mu        sync.Mutex
	announced map[string]struct{}
}

// NewLockWatchWorker creates a new lock watch worker
func NewLockWatchWorker(pools interfaces.PoolService, publisher interfaces.EventPublisher, clock interfaces.Clock) *LockWatchWorker {
	return &LockWatchWorker{
		pools:     pools,
		publisher: publisher,
		clock:     clock,
		announced: make(map[string]struct{}),
	}
}

// Start scans every interval until ctx is cancelled or the returned stop
// function is called
func (w *LockWatchWorker) Start(ctx context.Context, interval time.Duration) func() {
	stopChan := make(chan struct{})
	var once sync.Once

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.WithField("interval", interval).Info("Lock watch worker started")

		for {
			select {
			case <-ctx.Done():
				log.Info("Lock watch worker shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Lock watch worker shutting down (stop requested)...")
				return
			case <-ticker.C:
				w.Scan()
			}
		}
	}()

	return func() {
		once.Do(func() { close(stopChan) })
	}
}

// Scan publishes a PoolLockedEvent for each open pool seen past its lock
// time for the first time and returns how many were published
func (w *LockWatchWorker) Scan() int {
	now := w.clock.Now()
	open := w.pools.ListOpenPools()

	w.mu.Lock()
	defer w.mu.Unlock()

	listed := make(map[string]struct{}, len(open))
	published := 0
	for _, pool := range open {
		listed[pool.ID] = struct{}{}

		if now.Before(pool.LockTime) {
			continue
		}
		if _, seen := w.announced[pool.ID]; seen {
			continue
		}

		err := w.publisher.Publish(events.PoolLockedEvent{
			PoolID:   pool.ID,
			Sequence: pool.Sequence,
			TotalPot: pool.TotalPot,
			LockTime: pool.LockTime,
		})
		if err != nil {
			log.WithFields(log.Fields{
				"poolID": pool.ID,
				"error":  err,
			}).Error("Failed to publish pool locked event, will retry next scan")
			continue
		}

		w.announced[pool.ID] = struct{}{}
		published++
		log.WithFields(log.Fields{
			"poolID":   pool.ID,
			"lockTime": pool.LockTime,
			"totalPot": pool.TotalPot,
		}).Info("Pool locked")
	}

	// Settled and cancelled pools drop out of the listing
	for id := range w.announced {
		if _, ok := listed[id]; !ok {
			delete(w.announced, id)
		}
	}

	return published
}
