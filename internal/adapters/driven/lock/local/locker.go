// Package local provides an in-process session locker.
package local

import (
	"context"
	"sync"

	"github.com/custodia-labs/docuchat/internal/core/ports/driven"
)

// Ensure Locker implements the interface.
var _ driven.SessionLocker = (*Locker)(nil)

// Locker serialises turns per session inside one process.
// Each session gets a one-slot channel; entries are dropped once unused.
type Locker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocker creates a new in-process locker.
func NewLocker() *Locker {
	return &Locker{slots: make(map[string]*slot)}
}

// Lock blocks until the session is free or ctx is done.
func (l *Locker) Lock(ctx context.Context, sessionID string) (func(), error) {
	s := l.acquireSlot(sessionID)

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.releaseSlot(sessionID)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.releaseSlot(sessionID)
		})
	}, nil
}

// Held returns the number of sessions currently locked or awaited.
func (l *Locker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

// Close releases resources.
func (l *Locker) Close() error {
	return nil
}

func (l *Locker) acquireSlot(sessionID string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[sessionID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[sessionID] = s
	}
	s.refs++
	return s
}

func (l *Locker) releaseSlot(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[sessionID]
	if !ok {
		return
	}
	s.refs--
	if s.refs == 0 {
		delete(l.slots, sessionID)
	}
}
