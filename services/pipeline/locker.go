package pipeline

import (
	// Go Internal Packages
	"context"
	"sync"

	// Local Packages
	errors "tx-pipeline/errors"
)

// LocalLocker serialises runs per day within one process.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

// Lock claims day, failing with a Conflict error when it is already claimed.
func (l *LocalLocker) Lock(_ context.Context, day string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[day]; ok {
		return nil, errors.RunInProgressErr(day)
	}
	l.held[day] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, day)
			l.mu.Unlock()
		})
	}, nil
}
