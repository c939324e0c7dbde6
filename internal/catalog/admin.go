package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/safar/go-storefront/internal/auth"
	"github.com/safar/go-storefront/internal/docstore"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/tombstone"
)

// Admin is the capability to mutate the catalog. The only way to obtain one
// is Reconciler.Admin with an admin principal.
type Admin struct {
	r      *Reconciler
	caller auth.Principal
}

func (r *Reconciler) Admin(caller auth.Principal) (*Admin, error) {
	if !caller.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if !caller.Admin {
		return nil, ErrForbidden
	}
	return &Admin{r: r, caller: caller}, nil
}

// Save upserts a product. It assigns an id when none is set, strips
// cache-busting parameters from the image reference, and clears any
// tombstone for the id. Reviews in p are ignored; the stored ones are kept.
func (a *Admin) Save(ctx context.Context, p models.Product) (models.Product, error) {
	r := a.r

	p.ID = strings.TrimSpace(p.ID)
	p.Name = strings.TrimSpace(p.Name)
	p.Reviews = nil
	if err := ValidateProduct(p); err != nil {
		return models.Product{}, err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	defer r.Invalidate()

	now := r.now()
	if p.ID == "" {
		p.ID = NewProductID(now)
	}
	p.Image = NormalizeImage(p.Image)
	p.UpdatedAt = now

	existing, err := r.store.GetProduct(ctx, p.ID)
	switch {
	case err == nil:
		p.Reviews = existing.Reviews
	case errors.Is(err, docstore.ErrProductNotFound):
	default:
		return models.Product{}, fmt.Errorf("load product %s: %w", p.ID, err)
	}

	// A queued delete for this id would otherwise remove it again on replay.
	if err := r.dequeueTombstone(ctx, p.ID); err != nil {
		return models.Product{}, fmt.Errorf("cancel pending delete of %s: %w", p.ID, err)
	}

	if err := r.store.PutProduct(ctx, p); err != nil {
		return models.Product{}, fmt.Errorf("save product: %w", err)
	}

	if r.tracker.DeletedIDs(ctx).Has(p.ID) {
		if err := r.tracker.Remove(ctx, p.ID); err != nil {
			log.Printf("[catalog] WARN: product %s saved but still tombstoned: %v", p.ID, err)
			return p, fmt.Errorf("undelete product %s: %w", p.ID, err)
		}
		log.Printf("[catalog] product %s restored by %s", p.ID, a.caller.UserID)
	}

	log.Printf("[catalog] product %s saved by %s", p.ID, a.caller.UserID)
	return p, nil
}

// Delete removes a product from the active collection and tombstones it.
// The id is queued before the store call so an interrupted delete is
// completed by ResumePending.
func (a *Admin) Delete(ctx context.Context, id string) error {
	r := a.r

	id = strings.TrimSpace(id)
	if id == "" {
		return &ValidationError{Field: "id", Message: "must not be empty"}
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if err := r.enqueueTombstone(ctx, id); err != nil {
		return fmt.Errorf("queue tombstone for %s: %w", id, err)
	}

	if err := r.store.DeleteProduct(ctx, id); err != nil {
		if dqErr := r.dequeueTombstone(ctx, id); dqErr != nil {
			log.Printf("[catalog] WARN: could not unqueue %s after failed delete: %v", id, dqErr)
		}
		return fmt.Errorf("delete product: %w", err)
	}
	r.Invalidate()

	if err := r.completeTombstone(ctx, id); err != nil {
		return err
	}

	log.Printf("[catalog] product %s deleted by %s", id, a.caller.UserID)
	return nil
}

// completeTombstone runs the second phase of a delete. A remote-only failure
// leaves the id queued and is not reported: the local mirror already hides
// the product.
func (r *Reconciler) completeTombstone(ctx context.Context, id string) error {
	err := r.tracker.Add(ctx, id)
	switch {
	case err == nil:
		if dqErr := r.dequeueTombstone(ctx, id); dqErr != nil {
			log.Printf("[catalog] WARN: tombstone for %s recorded but still queued: %v", id, dqErr)
		}
		return nil
	case errors.Is(err, tombstone.ErrRemoteWrite):
		log.Printf("[catalog] WARN: tombstone for %s recorded locally only, queued for retry: %v", id, err)
		return nil
	default:
		log.Printf("[catalog] ERROR: product %s removed but tombstone not recorded, queued for retry: %v", id, err)
		return fmt.Errorf("%w: %s: %v", ErrTombstonePending, id, err)
	}
}

type RefreshOptions struct {
	ForceReset bool
}

type RefreshResult struct {
	Added []string `json:"added"`
	Reset bool     `json:"reset"`
}

// NothingToAdd reports a non-forced refresh that found every default present.
func (res RefreshResult) NothingToAdd() bool {
	return !res.Reset && len(res.Added) == 0
}

// Refresh adds default products missing from the store. Tombstoned defaults
// are never brought back. ForceReset wipes the catalog and all tombstones and
// reseeds every default.
func (a *Admin) Refresh(ctx context.Context, opts RefreshOptions) (RefreshResult, error) {
	r := a.r

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	defer r.Invalidate()

	if opts.ForceReset {
		log.Printf("[catalog] force reset requested by %s", a.caller.UserID)
		return r.reset(ctx)
	}

	if _, err := r.resumePendingLocked(ctx); err != nil {
		log.Printf("[catalog] WARN: pending tombstones not fully replayed: %v", err)
	}

	existing, err := r.store.ListProducts(ctx)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("list products: %w", err)
	}
	present := make(map[string]bool, len(existing))
	for _, p := range existing {
		present[p.ID] = true
	}

	deleted, err := r.tracker.Repair(ctx)
	if errors.Is(err, tombstone.ErrRemoteRead) || errors.Is(err, tombstone.ErrLocalRead) {
		return RefreshResult{}, fmt.Errorf("read tombstones: %w", err)
	}

	result := RefreshResult{Added: []string{}}
	for _, p := range r.defaults {
		if present[p.ID] || deleted.Has(p.ID) {
			continue
		}
		p = p.Clone()
		p.UpdatedAt = r.now()
		if err := r.store.PutProduct(ctx, p); err != nil {
			return result, fmt.Errorf("seed product %s: %w", p.ID, err)
		}
		result.Added = append(result.Added, p.ID)
	}

	if result.NothingToAdd() {
		log.Printf("[catalog] refresh: nothing to add")
	} else {
		log.Printf("[catalog] refresh: added %d default product(s)", len(result.Added))
	}
	return result, nil
}

func (r *Reconciler) reset(ctx context.Context) (RefreshResult, error) {
	if err := r.store.ClearProducts(ctx); err != nil {
		return RefreshResult{}, fmt.Errorf("%w: clear products: %v", ErrResetIncomplete, err)
	}

	if err := r.tracker.ClearAll(ctx); err != nil {
		return RefreshResult{}, fmt.Errorf("%w: clear tombstones: %v", ErrResetIncomplete, err)
	}

	if err := r.clearTombstoneQueue(ctx); err != nil {
		return RefreshResult{}, fmt.Errorf("%w: clear pending tombstones: %v", ErrResetIncomplete, err)
	}

	result := RefreshResult{Added: []string{}, Reset: true}
	for _, p := range r.defaults {
		p = p.Clone()
		p.UpdatedAt = r.now()
		if err := r.store.PutProduct(ctx, p); err != nil {
			return result, fmt.Errorf("%w: seed product %s: %v", ErrResetIncomplete, p.ID, err)
		}
		result.Added = append(result.Added, p.ID)
	}

	log.Printf("[catalog] reset complete: %d default product(s) seeded", len(result.Added))
	return result, nil
}
