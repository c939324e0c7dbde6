package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/safar/go-storefront/internal/auth"
	"github.com/safar/go-storefront/internal/cart"
	"github.com/safar/go-storefront/internal/catalog"
	"github.com/safar/go-storefront/internal/checkout"
	"github.com/safar/go-storefront/internal/payment/razorpay"
	"github.com/safar/go-storefront/internal/pricing"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondErr maps a core error to its HTTP status. Unknown errors are logged
// and reported as 500 without their text.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[api] ERROR: %s %s: %v", r.Method, r.URL.Path, err)
		respondError(w, status, "internal error")
		return
	}
	respondError(w, status, err.Error())
}

func statusFor(err error) int {
	var catalogInvalid *catalog.ValidationError
	var checkoutInvalid *checkout.ValidationError

	switch {
	case errors.As(err, &catalogInvalid),
		errors.As(err, &checkoutInvalid),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, pricing.ErrUnsupportedCurrency),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, razorpay.ErrInvalidSignature),
		errors.Is(err, razorpay.ErrPaymentMismatch):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, catalog.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, cart.ErrNotInCart),
		errors.Is(err, cart.ErrUnknownProduct),
		errors.Is(err, checkout.ErrUnknownProvider),
		errors.Is(err, checkout.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, cart.ErrOutOfStock), errors.Is(err, checkout.ErrCancelled):
		return http.StatusConflict
	case errors.Is(err, checkout.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, checkout.ErrCreateFailed),
		errors.Is(err, checkout.ErrCaptureFailed),
		errors.Is(err, catalog.ErrTombstonePending),
		errors.Is(err, catalog.ErrResetIncomplete):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
