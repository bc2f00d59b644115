// Package lock guards against overlapping capture cycles.
package lock

import (
	"context"
	"sync"
)

// Locker is a non-blocking mutual exclusion guard
type Locker interface {
	// TryLock acquires the lock if it is free and reports whether it did
	TryLock(ctx context.Context) (bool, error)
	// Unlock releases a lock held by this locker
	Unlock(ctx context.Context) error
}

// Local is an in-process Locker
type Local struct {
	mu sync.Mutex
}

// NewLocal creates an in-process lock
func NewLocal() *Local {
	return &Local{}
}

// TryLock acquires the mutex without waiting
func (l *Local) TryLock(context.Context) (bool, error) {
	return l.mu.TryLock(), nil
}

// Unlock releases the mutex
func (l *Local) Unlock(context.Context) error {
	l.mu.Unlock()
	return nil
}
