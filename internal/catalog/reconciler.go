// Package catalog serves product reads from an in-memory cache backed by the
// catalog document store, and filters every result through the tombstone set.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/safar/go-storefront/internal/docstore"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
	"github.com/safar/go-storefront/internal/tombstone"
)

var (
	ErrNotFound         = errors.New("catalog: product not found")
	ErrUnauthenticated  = errors.New("catalog: sign-in required")
	ErrForbidden        = errors.New("catalog: admin role required")
	ErrTombstonePending = errors.New("catalog: product removed but tombstone not recorded")
	ErrResetIncomplete  = errors.New("catalog: reset did not finish, re-run it")
)

// Store is the catalog document store's active product collection.
type Store interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	// GetProduct returns docstore.ErrProductNotFound for unknown ids.
	GetProduct(ctx context.Context, id string) (models.Product, error)
	PutProduct(ctx context.Context, p models.Product) error
	DeleteProduct(ctx context.Context, id string) error
	ClearProducts(ctx context.Context) error
}

type Options struct {
	CacheTTL time.Duration
	Defaults []models.Product
	Now      func() time.Time
}

type Reconciler struct {
	store    Store
	tracker  *tombstone.Tracker
	mirror   store.Mirror
	defaults []models.Product
	ttl      time.Duration
	now      func() time.Time

	// writeMu serializes mutations issued by this process.
	writeMu sync.Mutex

	mu         sync.Mutex
	cache      []models.Product
	cachedAt   time.Time
	generation uint64
}

func NewReconciler(s Store, tracker *tombstone.Tracker, mirror store.Mirror, opts Options) *Reconciler {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	defaults := make([]models.Product, len(opts.Defaults))
	for i, p := range opts.Defaults {
		defaults[i] = p.Clone()
	}

	return &Reconciler{
		store:    s,
		tracker:  tracker,
		mirror:   mirror,
		defaults: defaults,
		ttl:      opts.CacheTTL,
		now:      opts.Now,
	}
}

// GetAll returns every visible product. Store failures degrade to an empty
// list.
func (r *Reconciler) GetAll(ctx context.Context) []models.Product {
	products, _ := r.GetAllStatus(ctx)
	return products
}

// GetAllStatus is GetAll plus a flag telling whether the store could not be
// reached and the result is degraded.
func (r *Reconciler) GetAllStatus(ctx context.Context) ([]models.Product, bool) {
	cached, ok := r.cached()
	if !ok {
		gen := r.currentGeneration()

		fetched, err := r.store.ListProducts(ctx)
		if err != nil {
			log.Printf("[catalog] WARN: list products failed, serving empty catalog: %v", err)
			return []models.Product{}, true
		}

		r.populate(gen, fetched)
		cached = fetched
	}

	deleted := r.tracker.DeletedIDs(ctx)
	return visible(cached, deleted), false
}

// GetByID returns the product unless it is tombstoned, missing, or the store
// cannot be reached.
func (r *Reconciler) GetByID(ctx context.Context, id string) (models.Product, bool) {
	p, err := r.Find(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Printf("[catalog] WARN: get product %s failed: %v", id, err)
		}
		return models.Product{}, false
	}
	return p, true
}

// Find is GetByID with the failure reason: ErrNotFound for missing or
// tombstoned ids, a wrapped store error otherwise.
func (r *Reconciler) Find(ctx context.Context, id string) (models.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Product{}, ErrNotFound
	}

	return r.lookup(ctx, id, r.tracker.DeletedIDs(ctx))
}

// GetMany resolves several ids against one tombstone read. Ids that are
// tombstoned, missing or unreadable are left out of the result.
func (r *Reconciler) GetMany(ctx context.Context, ids []string) map[string]models.Product {
	out := make(map[string]models.Product, len(ids))
	if len(ids) == 0 {
		return out
	}

	deleted := r.tracker.DeletedIDs(ctx)
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, seen := out[id]; seen || id == "" {
			continue
		}
		p, err := r.lookup(ctx, id, deleted)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				log.Printf("[catalog] WARN: get product %s failed: %v", id, err)
			}
			continue
		}
		out[id] = p
	}
	return out
}

func (r *Reconciler) lookup(ctx context.Context, id string, deleted tombstone.Set) (models.Product, error) {
	if deleted.Has(id) {
		return models.Product{}, ErrNotFound
	}

	if cached, ok := r.cached(); ok {
		for _, p := range cached {
			if p.ID == id {
				return p.Clone(), nil
			}
		}
	}

	p, err := r.store.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, docstore.ErrProductNotFound) {
			return models.Product{}, ErrNotFound
		}
		return models.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

type Query struct {
	Category models.Category
	Text     string
}

// Search filters the visible catalog by category and a case-insensitive
// substring of name or description.
func (r *Reconciler) Search(ctx context.Context, q Query) ([]models.Product, bool) {
	products, degraded := r.GetAllStatus(ctx)
	text := strings.ToLower(strings.TrimSpace(q.Text))

	out := products[:0]
	for _, p := range products {
		if q.Category != "" && p.Category != q.Category {
			continue
		}
		if text != "" &&
			!strings.Contains(strings.ToLower(p.Name), text) &&
			!strings.Contains(strings.ToLower(p.Description), text) {
			continue
		}
		out = append(out, p)
	}
	return out, degraded
}

// Invalidate drops the cached product list.
func (r *Reconciler) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = nil
	r.cachedAt = time.Time{}
	r.generation++
}

func (r *Reconciler) cached() ([]models.Product, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cache == nil || r.now().Sub(r.cachedAt) >= r.ttl {
		return nil, false
	}
	return r.cache, true
}

func (r *Reconciler) currentGeneration() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// populate stores a fetched list unless a mutation invalidated the cache
// while the fetch was in flight.
func (r *Reconciler) populate(gen uint64, products []models.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.generation {
		return
	}
	r.cache = products
	r.cachedAt = r.now()
}

func visible(products []models.Product, deleted tombstone.Set) []models.Product {
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if deleted.Has(p.ID) {
			continue
		}
		out = append(out, p.Clone())
	}
	return out
}
