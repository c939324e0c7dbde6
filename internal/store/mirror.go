package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// GlobalScope holds entries shared by every session, such as the tombstone mirror.
const GlobalScope = "global"

const (
	KeyDeletedProductIDs = "deleted_product_ids"
	KeyPendingTombstones = "pending_tombstones"
	KeyCart              = "cart"
	KeyWishlist          = "wishlist"
	KeyLocale            = "locale"
	KeyLastOrder         = "last_order"
	KeySavedCustomer     = "saved_customer"
)

func CheckoutKey(orderID string) string {
	return "checkout:" + orderID
}

func IdempotencyKey(key string) string {
	return "checkout_key:" + key
}

// Mirror is the local durable key/value store. Values are JSON documents.
// Get and Take return nil when the entry does not exist.
type Mirror interface {
	Get(ctx context.Context, scope, key string) ([]byte, error)
	Put(ctx context.Context, scope, key string, value []byte) error
	Delete(ctx context.Context, scope, key string) error
	// Take reads and removes an entry in one step.
	Take(ctx context.Context, scope, key string) ([]byte, error)
	// Mutate replaces an entry with fn's result atomically. fn receives nil
	// when the entry is absent; returning nil deletes it.
	Mutate(ctx context.Context, scope, key string, fn func(current []byte) ([]byte, error)) error
}

func GetJSON(ctx context.Context, m Mirror, scope, key string, dst any) (bool, error) {
	raw, err := m.Get(ctx, scope, key)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", scope, key, err)
	}
	return true, nil
}

func PutJSON(ctx context.Context, m Mirror, scope, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", scope, key, err)
	}
	return m.Put(ctx, scope, key, raw)
}

func TakeJSON(ctx context.Context, m Mirror, scope, key string, dst any) (bool, error) {
	raw, err := m.Take(ctx, scope, key)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", scope, key, err)
	}
	return true, nil
}

// MutateJSON decodes the entry into a T, lets fn edit it, and writes it back.
// fn returns keep=false to delete the entry instead.
func MutateJSON[T any](ctx context.Context, m Mirror, scope, key string, fn func(v *T, exists bool) (keep bool, err error)) error {
	return m.Mutate(ctx, scope, key, func(current []byte) ([]byte, error) {
		var v T
		exists := current != nil
		if exists {
			if err := json.Unmarshal(current, &v); err != nil {
				return nil, fmt.Errorf("decode %s/%s: %w", scope, key, err)
			}
		}

		keep, err := fn(&v, exists)
		if err != nil {
			return nil, err
		}
		if !keep {
			return nil, nil
		}

		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s/%s: %w", scope, key, err)
		}
		return raw, nil
	})
}
