package main

import (
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/safar/go-storefront/internal/checkout"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/payment/razorpay"
)

func (a *api) listProviders(w http.ResponseWriter, r *http.Request) {
	names := a.checkout.Providers()
	sort.Strings(names)
	respondJSON(w, http.StatusOK, map[string][]string{"providers": names})
}

func (a *api) createOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Customer         models.CustomerInfo `json:"customer"`
		Currency         string              `json:"currency"`
		IdempotencyKey   string              `json:"idempotency_key"`
		RememberCustomer bool                `json:"remember_customer"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}
	if req.Currency == "" {
		req.Currency = a.locale(r).Currency
	}

	pending, err := a.checkout.CreateOrder(r.Context(), sessionID(r), chi.URLParam(r, "provider"), req.Customer, checkout.CreateOptions{
		Currency:         req.Currency,
		IdempotencyKey:   req.IdempotencyKey,
		RememberCustomer: req.RememberCustomer,
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, pending)
}

func (a *api) captureOrder(w http.ResponseWriter, r *http.Request) {
	provider := strings.ToLower(chi.URLParam(r, "provider"))
	orderID := chi.URLParam(r, "id")

	var req struct {
		PaymentID string `json:"payment_id"`
		Signature string `json:"signature"`
	}
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Only a payment id backed by a valid signature may steer the capture.
	var opts checkout.CaptureOptions
	if verifier, ok := a.signatures[provider]; ok {
		if req.PaymentID == "" || req.Signature == "" {
			respondErr(w, r, razorpay.ErrInvalidSignature)
			return
		}
		if err := verifier.VerifySignature(orderID, req.PaymentID, req.Signature); err != nil {
			respondErr(w, r, err)
			return
		}
		opts.PaymentID = req.PaymentID
	}

	receipt, err := a.checkout.CaptureOrder(r.Context(), sessionID(r), provider, orderID, opts)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, receipt)
}

func (a *api) cancelOrder(w http.ResponseWriter, r *http.Request) {
	if err := a.checkout.CancelOrder(r.Context(), sessionID(r), chi.URLParam(r, "id")); err != nil {
		respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) takeReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, found, err := a.checkout.TakeReceipt(r.Context(), sessionID(r))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "no recent order")
		return
	}
	respondJSON(w, http.StatusOK, receipt)
}

func (a *api) savedCustomer(w http.ResponseWriter, r *http.Request) {
	customer, found, err := a.checkout.SavedCustomer(r.Context(), sessionID(r))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "no saved customer")
		return
	}
	respondJSON(w, http.StatusOK, customer)
}
