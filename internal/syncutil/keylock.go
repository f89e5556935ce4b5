// Package syncutil holds the in-process per-key locking used when no
// database row lock is available.
package syncutil

import (
	"context"
	"sync"
)

type keyLock struct {
	ch   chan struct{}
	refs int
}

// KeyedMutex hands out one channel mutex per key. Entries are refcounted by
// holders and waiters and dropped when the last one leaves, so distinct keys
// never wait on each other.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

// NewKeyedMutex returns a ready KeyedMutex. The zero value is usable too.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyLock)}
}

// Lock blocks until key is held or ctx is done. On success the caller must
// invoke the returned unlock func; extra calls are ignored.
func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	l := m.acquire(key)
	select {
	case <-l.ch:
		var once sync.Once
		return func() {
			once.Do(func() {
				l.ch <- struct{}{}
				m.release(key, l)
			})
		}, nil
	case <-ctx.Done():
		m.release(key, l)
		return nil, ctx.Err()
	}
}

func (m *KeyedMutex) acquire(key string) *keyLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks == nil {
		m.locks = make(map[string]*keyLock)
	}
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		l.ch <- struct{}{}
		m.locks[key] = l
	}
	l.refs++
	return l
}

func (m *KeyedMutex) release(key string, l *keyLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}

func (m *KeyedMutex) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
