package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/safar/go-storefront/internal/cart"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/pricing"
)

type cartView struct {
	cart.Summary
	Currency     string `json:"currency"`
	DisplayTotal string `json:"display_total"`
}

func (a *api) respondCart(w http.ResponseWriter, r *http.Request, summary cart.Summary) {
	currency := a.locale(r).Currency
	for i := range summary.Lines {
		summary.Lines[i].Image = a.media.Resolve(summary.Lines[i].Image, time.Time{})
	}
	respondJSON(w, http.StatusOK, cartView{
		Summary:      summary,
		Currency:     currency,
		DisplayTotal: pricing.FormatPrice(summary.TotalPrice, currency),
	})
}

func (a *api) getCart(w http.ResponseWriter, r *http.Request) {
	summary, err := a.carts.Summary(r.Context(), sessionID(r))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	a.respondCart(w, r, summary)
}

func (a *api) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := a.carts.Clear(r.Context(), sessionID(r)); err != nil {
		respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	summary, err := a.carts.AddItem(r.Context(), sessionID(r), req.ProductID, req.Quantity)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	a.respondCart(w, r, summary)
}

func (a *api) setCartQuantity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	summary, err := a.carts.SetQuantity(r.Context(), sessionID(r), chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	a.respondCart(w, r, summary)
}

func (a *api) removeCartItem(w http.ResponseWriter, r *http.Request) {
	summary, err := a.carts.RemoveItem(r.Context(), sessionID(r), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	a.respondCart(w, r, summary)
}

func (a *api) getWishlist(w http.ResponseWriter, r *http.Request) {
	products, err := a.wishlist.Products(r.Context(), sessionID(r))
	if err != nil {
		respondErr(w, r, err)
		return
	}

	currency := a.locale(r).Currency
	views := make([]productView, len(products))
	for i, p := range products {
		views[i] = a.view(p, currency)
	}
	respondJSON(w, http.StatusOK, views)
}

func (a *api) addToWishlist(w http.ResponseWriter, r *http.Request) {
	if err := a.wishlist.Add(r.Context(), sessionID(r), chi.URLParam(r, "id")); err != nil {
		respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) removeFromWishlist(w http.ResponseWriter, r *http.Request) {
	if err := a.wishlist.Remove(r.Context(), sessionID(r), chi.URLParam(r, "id")); err != nil {
		respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) getLocale(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, a.locale(r))
}

func (a *api) setLocale(w http.ResponseWriter, r *http.Request) {
	var req models.LocaleSelection
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sel, err := a.locales.Set(r.Context(), sessionID(r), req)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sel)
}
