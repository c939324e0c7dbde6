package cart

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
)

// Manager loads, mutates and persists session carts.
type Manager struct {
	mirror  store.Mirror
	catalog Catalog
	locks   keyedMutex
}

func NewManager(mirror store.Mirror, catalog Catalog) *Manager {
	return &Manager{mirror: mirror, catalog: catalog}
}

// Open loads the session's cart. A missing cart is empty.
func (m *Manager) Open(ctx context.Context, session string) (*Ledger, error) {
	var lines []models.CartLine
	if _, err := store.GetJSON(ctx, m.mirror, session, store.KeyCart, &lines); err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return NewLedger(lines), nil
}

func (m *Manager) save(ctx context.Context, session string, l *Ledger) error {
	if l.Len() == 0 {
		if err := m.mirror.Delete(ctx, session, store.KeyCart); err != nil {
			return fmt.Errorf("save cart: %w", err)
		}
		return nil
	}
	if err := store.PutJSON(ctx, m.mirror, session, store.KeyCart, l.Lines()); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// update runs fn on the session's ledger under the session lock and
// persists the result when fn succeeds.
func (m *Manager) update(ctx context.Context, session string, fn func(l *Ledger) error) (Summary, error) {
	unlock := m.locks.Lock(session)
	defer unlock()

	l, err := m.Open(ctx, session)
	if err != nil {
		return Summary{}, err
	}
	if err := fn(l); err != nil {
		return Summary{}, err
	}
	if err := m.save(ctx, session, l); err != nil {
		return Summary{}, err
	}
	return l.Summarize(ctx, m.catalog), nil
}

func (m *Manager) product(ctx context.Context, productID string) (models.Product, error) {
	p, ok := m.catalog.GetByID(ctx, strings.TrimSpace(productID))
	if !ok {
		return models.Product{}, fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}
	return p, nil
}

func (m *Manager) AddItem(ctx context.Context, session, productID string, quantity int) (Summary, error) {
	p, err := m.product(ctx, productID)
	if err != nil {
		return Summary{}, err
	}
	return m.update(ctx, session, func(l *Ledger) error {
		_, err := l.AddItem(p, quantity)
		return err
	})
}

func (m *Manager) SetQuantity(ctx context.Context, session, productID string, quantity int) (Summary, error) {
	if quantity == 0 {
		return m.RemoveItem(ctx, session, productID)
	}
	if quantity < 0 {
		return Summary{}, ErrInvalidQuantity
	}

	p, err := m.product(ctx, productID)
	if err != nil {
		return Summary{}, err
	}
	return m.update(ctx, session, func(l *Ledger) error {
		return l.SetQuantity(p, quantity)
	})
}

func (m *Manager) RemoveItem(ctx context.Context, session, productID string) (Summary, error) {
	return m.update(ctx, session, func(l *Ledger) error {
		if !l.RemoveItem(productID) {
			return ErrNotInCart
		}
		return nil
	})
}

func (m *Manager) Clear(ctx context.Context, session string) error {
	unlock := m.locks.Lock(session)
	defer unlock()

	if err := m.mirror.Delete(ctx, session, store.KeyCart); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	log.Printf("[cart] cleared cart for session %s", session)
	return nil
}

// Summary prices the session's cart at current catalog prices.
func (m *Manager) Summary(ctx context.Context, session string) (Summary, error) {
	l, err := m.Open(ctx, session)
	if err != nil {
		return Summary{}, err
	}
	return l.Summarize(ctx, m.catalog), nil
}
