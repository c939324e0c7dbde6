// Package tombstone tracks ids of logically deleted products.
//
// The set lives in two places: the local durable mirror and the remote
// document store. Reads return the union of both and repair the local copy
// from it. Writes go to the local mirror first; the remote copy is eventually
// consistent.
package tombstone

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/safar/go-storefront/internal/store"
)

var (
	ErrLocalWrite  = errors.New("tombstone: local mirror write failed")
	ErrRemoteWrite = errors.New("tombstone: remote store write failed")
	ErrRemoteRead  = errors.New("tombstone: remote store read failed")
	ErrLocalRead   = errors.New("tombstone: local mirror read failed")
)

type Set map[string]struct{}

func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		if id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}

func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s Set) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Remote is the tombstone collection of the catalog document store.
type Remote interface {
	ListTombstones(ctx context.Context) ([]string, error)
	PutTombstone(ctx context.Context, id string, deletedAt time.Time) error
	DeleteTombstone(ctx context.Context, id string) error
	ClearTombstones(ctx context.Context) error
}

type Tracker struct {
	local  store.Mirror
	remote Remote
	now    func() time.Time
}

// NewTracker builds a tracker over the local mirror and the remote store.
// A nil remote makes the tracker local-only.
func NewTracker(local store.Mirror, remote Remote) *Tracker {
	return &Tracker{
		local:  local,
		remote: remote,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// DeletedIDs returns the union of the local and remote tombstones. It never
// fails: an unreachable source is logged and skipped.
func (t *Tracker) DeletedIDs(ctx context.Context) Set {
	set, err := t.Repair(ctx)
	if err != nil {
		log.Printf("[tombstone] WARN: serving partial tombstone set (%d ids): %v", len(set), err)
	}
	return set
}

// Repair reads both sources independently, rewrites the local mirror to hold
// their union, and returns the union. The returned error reports which source
// could not be read or written; the set is still the best available answer.
func (t *Tracker) Repair(ctx context.Context) (Set, error) {
	var errs []error

	var localIDs []string
	_, localErr := store.GetJSON(ctx, t.local, store.GlobalScope, store.KeyDeletedProductIDs, &localIDs)
	if localErr != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrLocalRead, localErr))
		localIDs = nil
	}

	union := NewSet(localIDs...)

	if t.remote == nil {
		return union, errors.Join(errs...)
	}

	remoteIDs, err := t.remote.ListTombstones(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrRemoteRead, err))
		return union, errors.Join(errs...)
	}

	missing := 0
	for _, id := range remoteIDs {
		if id == "" || union.Has(id) {
			continue
		}
		union[id] = struct{}{}
		missing++
	}

	switch {
	case localErr != nil:
		// Unreadable local copy: replace it with what the remote store knows.
		if err := store.PutJSON(ctx, t.local, store.GlobalScope, store.KeyDeletedProductIDs, union.IDs()); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrLocalWrite, err))
		}
	case missing > 0:
		err := store.MutateJSON(ctx, t.local, store.GlobalScope, store.KeyDeletedProductIDs, func(ids *[]string, _ bool) (bool, error) {
			// Ids added locally since the read above are kept and returned.
			for _, id := range *ids {
				union[id] = struct{}{}
			}
			*ids = union.IDs()
			return true, nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrLocalWrite, err))
		} else {
			log.Printf("[tombstone] repaired local mirror with %d remote id(s)", missing)
		}
	}

	return union, errors.Join(errs...)
}

// Add records id as deleted. The local mirror is written first; if only the
// remote write fails the returned error wraps ErrRemoteWrite and the local
// mirror already reflects the deletion.
func (t *Tracker) Add(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("tombstone: empty id")
	}

	err := store.MutateJSON(ctx, t.local, store.GlobalScope, store.KeyDeletedProductIDs, func(ids *[]string, _ bool) (bool, error) {
		for _, existing := range *ids {
			if existing == id {
				return true, nil
			}
		}
		*ids = append(*ids, id)
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLocalWrite, err)
	}

	if t.remote == nil {
		return nil
	}

	if err := t.remote.PutTombstone(ctx, id, t.now()); err != nil {
		return fmt.Errorf("%w: %w", ErrRemoteWrite, err)
	}
	return nil
}

// Remove drops id from both locations. The remote copy goes first so that a
// failure leaves the product hidden rather than half-restored.
func (t *Tracker) Remove(ctx context.Context, id string) error {
	if t.remote != nil {
		if err := t.remote.DeleteTombstone(ctx, id); err != nil {
			return fmt.Errorf("%w: %w", ErrRemoteWrite, err)
		}
	}

	err := store.MutateJSON(ctx, t.local, store.GlobalScope, store.KeyDeletedProductIDs, func(ids *[]string, exists bool) (bool, error) {
		if !exists {
			return false, nil
		}
		kept := (*ids)[:0]
		for _, existing := range *ids {
			if existing != id {
				kept = append(kept, existing)
			}
		}
		*ids = kept
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLocalWrite, err)
	}
	return nil
}

// ClearAll empties both the local mirror and every remote tombstone. Only the
// explicit catalog reset calls it.
func (t *Tracker) ClearAll(ctx context.Context) error {
	var errs []error

	if err := t.local.Delete(ctx, store.GlobalScope, store.KeyDeletedProductIDs); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrLocalWrite, err))
	}

	if t.remote != nil {
		if err := t.remote.ClearTombstones(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrRemoteWrite, err))
		}
	}

	if len(errs) == 0 {
		log.Printf("[tombstone] cleared all tombstones")
	}
	return errors.Join(errs...)
}
