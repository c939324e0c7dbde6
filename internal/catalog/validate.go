package catalog

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/safar/go-storefront/internal/models"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func ValidateProduct(p models.Product) error {
	if p.Name == "" {
		return &ValidationError{Field: "name", Message: "must not be empty"}
	}
	if !p.Price.IsPositive() {
		return &ValidationError{Field: "price", Message: "must be greater than zero"}
	}
	if !p.Price.Equal(p.Price.Round(2)) {
		return &ValidationError{Field: "price", Message: "must have at most 2 decimal places"}
	}
	if p.Stock < 0 {
		return &ValidationError{Field: "stock", Message: "must not be negative"}
	}
	if !p.Category.Valid() {
		return &ValidationError{Field: "category", Message: fmt.Sprintf("unknown category %q", p.Category)}
	}
	return nil
}

func validateReview(rating int, photos []string) *ValidationError {
	if rating < 1 || rating > 5 {
		return &ValidationError{Field: "rating", Message: "must be between 1 and 5"}
	}
	if len(photos) > models.MaxReviewPhotos {
		return &ValidationError{Field: "photos", Message: fmt.Sprintf("at most %d allowed", models.MaxReviewPhotos)}
	}
	return nil
}

// NewProductID returns a client-generated id in the PROD-<unix nanos> form.
func NewProductID(now time.Time) string {
	return fmt.Sprintf("PROD-%d", now.UnixNano())
}

var cacheBustParams = []string{"t", "v", "ts", "_", "cb", "cachebust"}

// NormalizeImage removes display-time cache-busting query parameters from an
// image reference. Other parameters, such as signed URL fields, are kept.
func NormalizeImage(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || !strings.Contains(ref, "?") {
		return ref
	}

	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}

	q := u.Query()
	for _, name := range cacheBustParams {
		q.Del(name)
	}
	u.RawQuery = q.Encode()
	u.ForceQuery = false
	return u.String()
}
