package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/safar/go-storefront/internal/auth"
	"github.com/safar/go-storefront/internal/docstore"
	"github.com/safar/go-storefront/internal/models"
)

type ReviewInput struct {
	Rating  int      `json:"rating"`
	Comment string   `json:"comment"`
	Photos  []string `json:"photos,omitempty"`
}

// AddReview appends a review by an authenticated caller. Reviews are never
// edited after creation.
func (r *Reconciler) AddReview(ctx context.Context, caller auth.Principal, productID string, in ReviewInput) (models.Review, error) {
	if !caller.Authenticated() {
		return models.Review{}, ErrUnauthenticated
	}
	if err := validateReview(in.Rating, in.Photos); err != nil {
		return models.Review{}, err
	}

	productID = strings.TrimSpace(productID)
	if r.tracker.DeletedIDs(ctx).Has(productID) {
		return models.Review{}, ErrNotFound
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	p, err := r.store.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, docstore.ErrProductNotFound) {
			return models.Review{}, ErrNotFound
		}
		return models.Review{}, fmt.Errorf("load product %s: %w", productID, err)
	}

	userName := caller.Name
	if userName == "" {
		userName = caller.Email
	}

	review := models.Review{
		ID:        uuid.NewString(),
		ProductID: productID,
		UserID:    caller.UserID,
		UserName:  userName,
		Rating:    in.Rating,
		Comment:   strings.TrimSpace(in.Comment),
		Date:      r.now(),
		Photos:    append([]string(nil), in.Photos...),
	}
	p.Reviews = append(p.Reviews, review)

	if err := r.store.PutProduct(ctx, p); err != nil {
		return models.Review{}, fmt.Errorf("save review: %w", err)
	}
	r.Invalidate()

	log.Printf("[catalog] review %s added to %s by %s", review.ID, productID, caller.UserID)
	return review, nil
}
