package cart

import (
	"context"
	"fmt"
	"slices"

	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
)

// Wishlist is a per-session set of saved product ids.
type Wishlist struct {
	mirror  store.Mirror
	catalog Catalog
}

func NewWishlist(mirror store.Mirror, catalog Catalog) *Wishlist {
	return &Wishlist{mirror: mirror, catalog: catalog}
}

func (w *Wishlist) Add(ctx context.Context, session, productID string) error {
	if _, ok := w.catalog.GetByID(ctx, productID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}

	err := store.MutateJSON(ctx, w.mirror, session, store.KeyWishlist, func(ids *[]string, _ bool) (bool, error) {
		if !slices.Contains(*ids, productID) {
			*ids = append(*ids, productID)
		}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("save wishlist: %w", err)
	}
	return nil
}

func (w *Wishlist) Remove(ctx context.Context, session, productID string) error {
	err := store.MutateJSON(ctx, w.mirror, session, store.KeyWishlist, func(ids *[]string, exists bool) (bool, error) {
		*ids = slices.DeleteFunc(*ids, func(id string) bool { return id == productID })
		return exists && len(*ids) > 0, nil
	})
	if err != nil {
		return fmt.Errorf("save wishlist: %w", err)
	}
	return nil
}

// Products returns the saved products that are still in the catalog.
func (w *Wishlist) Products(ctx context.Context, session string) ([]models.Product, error) {
	var ids []string
	if _, err := store.GetJSON(ctx, w.mirror, session, store.KeyWishlist, &ids); err != nil {
		return nil, fmt.Errorf("load wishlist: %w", err)
	}

	found := w.catalog.GetMany(ctx, ids)
	products := make([]models.Product, 0, len(found))
	for _, id := range ids {
		if p, ok := found[id]; ok {
			products = append(products, p)
		}
	}
	return products, nil
}
