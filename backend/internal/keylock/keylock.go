// Package keylock serializes work per key inside one process.
package keylock

import (
	"strconv"
	"sync"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// Locker hands out one mutex per key and forgets keys nobody holds or waits on
type Locker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty Locker
func New() *Locker {
	return &Locker{entries: make(map[string]*entry)}
}

// Lock blocks until key is free and returns the matching unlock func
func (l *Locker) Lock(key string) (unlock func()) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()

			l.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(l.entries, key)
			}
			l.mu.Unlock()
		})
	}
}

// Len reports how many keys are currently held or awaited
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// PairKey is the canonical key for an unordered pair of identifiers.
// The lower identifier is length-prefixed so no two pairs share a key.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return strconv.Itoa(len(a)) + ":" + a + ":" + b
}
