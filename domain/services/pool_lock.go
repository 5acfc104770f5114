package services

import (
	"context"
	"fmt"

	"parimutuel/domain/entities"

	"golang.org/x/sync/semaphore"
)

// poolLock serializes every operation on one pool. Unlike sync.Mutex,
// waiting for it can be abandoned through the caller's context.
type poolLock struct {
	sem *semaphore.Weighted
}

func newPoolLock() *poolLock {
	return &poolLock{sem: semaphore.NewWeighted(1)}
}

// Acquire blocks until the lock is held or ctx is done
func (l *poolLock) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: waiting for pool lock: %w", entities.ErrOperationTimedOut, err)
	}
	return nil
}

// Release gives the lock back. Must only be called by the holder.
func (l *poolLock) Release() {
	l.sem.Release(1)
}
