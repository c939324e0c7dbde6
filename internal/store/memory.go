package store

import (
	"context"
	"sync"
)

// MemoryMirror keeps entries in process memory. It backs tests and
// MIRROR_BACKEND=memory for local development.
type MemoryMirror struct {
	mu      sync.Mutex
	entries map[string][]byte

	// FailWrites makes every write return the error, for failure-path tests.
	FailWrites error
}

func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{entries: make(map[string][]byte)}
}

func entryKey(scope, key string) string {
	return scope + "\x00" + key
}

func (m *MemoryMirror) Get(_ context.Context, scope, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.entries[entryKey(scope, key)]), nil
}

func (m *MemoryMirror) Put(_ context.Context, scope, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.entries[entryKey(scope, key)] = clone(value)
	return nil
}

func (m *MemoryMirror) Delete(_ context.Context, scope, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	delete(m.entries, entryKey(scope, key))
	return nil
}

func (m *MemoryMirror) Take(_ context.Context, scope, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return nil, m.FailWrites
	}
	k := entryKey(scope, key)
	value := m.entries[k]
	delete(m.entries, k)
	return value, nil
}

func (m *MemoryMirror) Mutate(_ context.Context, scope, key string, fn func(current []byte) ([]byte, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}

	k := entryKey(scope, key)
	next, err := fn(clone(m.entries[k]))
	if err != nil {
		return err
	}
	if next == nil {
		delete(m.entries, k)
		return nil
	}
	m.entries[k] = clone(next)
	return nil
}

// Len reports the number of stored entries.
func (m *MemoryMirror) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
