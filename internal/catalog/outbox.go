package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"

	"github.com/safar/go-storefront/internal/store"
)

// The tombstone outbox lists ids whose delete started but whose tombstone
// is not yet recorded in both places.

func (r *Reconciler) enqueueTombstone(ctx context.Context, id string) error {
	return store.MutateJSON(ctx, r.mirror, store.GlobalScope, store.KeyPendingTombstones,
		func(ids *[]string, _ bool) (bool, error) {
			if !slices.Contains(*ids, id) {
				*ids = append(*ids, id)
			}
			return true, nil
		})
}

func (r *Reconciler) dequeueTombstone(ctx context.Context, id string) error {
	return store.MutateJSON(ctx, r.mirror, store.GlobalScope, store.KeyPendingTombstones,
		func(ids *[]string, exists bool) (bool, error) {
			if !exists {
				return false, nil
			}
			*ids = slices.DeleteFunc(*ids, func(v string) bool { return v == id })
			return len(*ids) > 0, nil
		})
}

func (r *Reconciler) clearTombstoneQueue(ctx context.Context) error {
	return r.mirror.Delete(ctx, store.GlobalScope, store.KeyPendingTombstones)
}

// PendingTombstones lists ids with an unfinished delete.
func (r *Reconciler) PendingTombstones(ctx context.Context) ([]string, error) {
	var ids []string
	if _, err := store.GetJSON(ctx, r.mirror, store.GlobalScope, store.KeyPendingTombstones, &ids); err != nil {
		return nil, fmt.Errorf("read pending tombstones: %w", err)
	}
	return ids, nil
}

// ResumePending finishes every interrupted delete: the product is removed
// from the store again and its tombstone written. It returns the ids that
// completed.
func (r *Reconciler) ResumePending(ctx context.Context) ([]string, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.resumePendingLocked(ctx)
}

func (r *Reconciler) resumePendingLocked(ctx context.Context) ([]string, error) {
	ids, err := r.PendingTombstones(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	log.Printf("[catalog] replaying %d pending tombstone(s)", len(ids))

	var done []string
	var errs []error
	for _, id := range ids {
		if err := r.store.DeleteProduct(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("delete product %s: %w", id, err))
			continue
		}
		r.Invalidate()

		if err := r.tracker.Add(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("tombstone %s: %w", id, err))
			continue
		}
		if err := r.dequeueTombstone(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("unqueue %s: %w", id, err))
			continue
		}
		done = append(done, id)
	}

	return done, errors.Join(errs...)
}
