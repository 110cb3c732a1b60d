package utils

import (
	"sync"
)

// OptionalRWMutex is a read-write mutex that does nothing unless UseMutex is set. Objects
// created with the externally-synchronized flag leave it unset.
type OptionalRWMutex struct {
	Mutex    sync.RWMutex
	UseMutex bool
}

func (m *OptionalRWMutex) Lock() {
	if m.UseMutex {
		m.Mutex.Lock()
	}
}

func (m *OptionalRWMutex) Unlock() {
	if m.UseMutex {
		m.Mutex.Unlock()
	}
}

func (m *OptionalRWMutex) RLock() {
	if m.UseMutex {
		m.Mutex.RLock()
	}
}

func (m *OptionalRWMutex) RUnlock() {
	if m.UseMutex {
		m.Mutex.RUnlock()
	}
}

// Locked runs fn while holding the write lock
func (m *OptionalRWMutex) Locked(fn func() error) error {
	m.Lock()
	defer m.Unlock()

	return fn()
}
