// Package lock provides short-lived named leases used to keep at most one
// rollup cycle running at a time.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotAcquired is returned by TryLock when the key is already held.
	ErrNotAcquired = errors.New("lock not acquired")
	// ErrLeaseLost is returned by Release when the lease expired or was taken over.
	ErrLeaseLost = errors.New("lease no longer held")
)

// Lease is a held lock.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker hands out leases on named keys. A lease expires after ttl even if it
// is never released.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

type localEntry struct {
	token   string
	expires time.Time
}

// Local is an in-process Locker.
type Local struct {
	mu   sync.Mutex
	held map[string]localEntry
	now  func() time.Time
}

var _ Locker = (*Local)(nil)

// NewLocal creates an in-process Locker.
func NewLocal() *Local {
	return &Local{
		held: make(map[string]localEntry),
		now:  time.Now,
	}
}

// TryLock acquires key unless a live lease already holds it.
func (l *Local) TryLock(_ context.Context, key string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if entry, ok := l.held[key]; ok && now.Before(entry.expires) {
		return nil, ErrNotAcquired
	}
	token := uuid.NewString()
	l.held[key] = localEntry{token: token, expires: now.Add(ttl)}
	return &localLease{locker: l, key: key, token: token}, nil
}

type localLease struct {
	locker *Local
	key    string
	token  string
}

func (ll *localLease) Release(context.Context) error {
	l := ll.locker
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.held[ll.key]
	if !ok || entry.token != ll.token {
		return ErrLeaseLost
	}
	delete(l.held, ll.key)
	return nil
}
