package usecase

import "sync"

// keyedLock hands out one mutex per key and forgets it once nobody holds or waits for it.
type keyedLock struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedLock() *keyedLock {
	return &keyedLock{
		locks: make(map[string]*refMutex),
	}
}

// Lock blocks until key is free and returns the matching unlock func.
func (that *keyedLock) Lock(key string) func() {
	that.mu.Lock()
	m, ok := that.locks[key]
	if !ok {
		m = &refMutex{}
		that.locks[key] = m
	}
	m.refs++
	that.mu.Unlock()

	m.Lock()

	return func() {
		m.Unlock()

		that.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(that.locks, key)
		}
		that.mu.Unlock()
	}
}

func (that *keyedLock) size() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.locks)
}
