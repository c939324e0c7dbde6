// Package memory is an in-process catalog document store with failure
// injection, used by tests and by CATALOG_BACKEND=memory.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/safar/go-storefront/internal/docstore"
	"github.com/safar/go-storefront/internal/models"
)

var ErrUnavailable = errors.New("document store unavailable")

type Store struct {
	mu         sync.Mutex
	products   map[string]models.Product
	tombstones map[string]time.Time

	// Failure switches.
	FailReads          bool
	FailWrites         bool
	FailTombstoneReads bool
	FailTombstoneWrite bool

	// Counters let tests assert on round-trips.
	ListCalls          int
	GetCalls           int
	WriteCalls         int
	ListTombstoneCalls int
}

func New(seed ...models.Product) *Store {
	s := &Store{
		products:   make(map[string]models.Product),
		tombstones: make(map[string]time.Time),
	}
	for _, p := range seed {
		s.products[p.ID] = p.Clone()
	}
	return s
}

func (s *Store) ListProducts(_ context.Context) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ListCalls++
	if s.FailReads {
		return nil, ErrUnavailable
	}

	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetCalls++
	if s.FailReads {
		return models.Product{}, ErrUnavailable
	}

	p, ok := s.products[id]
	if !ok {
		return models.Product{}, docstore.ErrProductNotFound
	}
	return p.Clone(), nil
}

func (s *Store) PutProduct(_ context.Context, p models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return ErrUnavailable
	}
	s.WriteCalls++
	s.products[p.ID] = p.Clone()
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return ErrUnavailable
	}
	s.WriteCalls++
	delete(s.products, id)
	return nil
}

func (s *Store) ClearProducts(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return ErrUnavailable
	}
	s.WriteCalls++
	s.products = make(map[string]models.Product)
	return nil
}

func (s *Store) ListTombstones(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ListTombstoneCalls++
	if s.FailTombstoneReads {
		return nil, ErrUnavailable
	}

	ids := make([]string, 0, len(s.tombstones))
	for id := range s.tombstones {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) PutTombstone(_ context.Context, id string, deletedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailTombstoneWrite {
		return ErrUnavailable
	}
	s.tombstones[id] = deletedAt
	return nil
}

func (s *Store) DeleteTombstone(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailTombstoneWrite {
		return ErrUnavailable
	}
	delete(s.tombstones, id)
	return nil
}

func (s *Store) ClearTombstones(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailTombstoneWrite {
		return ErrUnavailable
	}
	s.tombstones = make(map[string]time.Time)
	return nil
}

// SetFailure flips a failure switch under the store's lock.
func (s *Store) SetFailure(fn func(s *Store)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// Has reports whether the active collection holds id.
func (s *Store) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.products[id]
	return ok
}

// HasTombstone reports whether the remote tombstone collection holds id.
func (s *Store) HasTombstone(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tombstones[id]
	return ok
}

// Writes returns the number of successful product writes.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.WriteCalls
}
