// Package docstore holds what the catalog document store adapters share.
package docstore

import "errors"

var (
	ErrProductNotFound = errors.New("product not found")
)
