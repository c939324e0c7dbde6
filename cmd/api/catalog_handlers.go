package main

import (
	"errors"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/safar/go-storefront/internal/auth"
	"github.com/safar/go-storefront/internal/catalog"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/pricing"
	"github.com/safar/go-storefront/internal/store"
)

const catalogDegradedHeader = "X-Catalog-Degraded"

type productView struct {
	models.Product
	DisplayPrice string `json:"display_price"`
}

// locale returns the session's selection, falling back to the default when
// the mirror cannot be read.
func (a *api) locale(r *http.Request) models.LocaleSelection {
	sel, err := a.locales.Get(r.Context(), sessionID(r), countryHint(r))
	if err != nil {
		log.Printf("[api] WARN: locale for session %s: %v", sessionID(r), err)
	}
	return sel
}

func (a *api) view(p models.Product, currency string) productView {
	return productView{
		Product:      a.media.Product(p),
		DisplayPrice: pricing.FormatPrice(p.Price, currency),
	}
}

func (a *api) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	products, degraded := a.catalog.Search(r.Context(), catalog.Query{
		Category: models.Category(strings.ToLower(strings.TrimSpace(q.Get("category")))),
		Text:     q.Get("q"),
	})
	if degraded {
		w.Header().Set(catalogDegradedHeader, "1")
	}

	currency := a.locale(r).Currency
	views := make([]productView, len(products))
	for i, p := range products {
		views[i] = a.view(p, currency)
	}

	pageSize, _ := strconv.Atoi(q.Get("page_size"))
	if q.Has("cursor") {
		sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
		result, err := store.PaginateAfter(views, func(v productView) string { return v.ID }, q.Get("cursor"), pageSize)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid cursor")
			return
		}
		respondJSON(w, http.StatusOK, result)
		return
	}

	page, _ := strconv.Atoi(q.Get("page"))
	respondJSON(w, http.StatusOK, store.Paginate(views, page, pageSize))
}

func (a *api) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := a.catalog.Find(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if !errors.Is(err, catalog.ErrNotFound) {
			log.Printf("[api] WARN: product read degraded: %v", err)
			w.Header().Set(catalogDegradedHeader, "1")
		}
		respondError(w, http.StatusNotFound, catalog.ErrNotFound.Error())
		return
	}
	respondJSON(w, http.StatusOK, a.view(p, a.locale(r).Currency))
}

func (a *api) addReview(w http.ResponseWriter, r *http.Request) {
	var in catalog.ReviewInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	review, err := a.catalog.AddReview(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		respondWriteErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, review)
}

func (a *api) admin(w http.ResponseWriter, r *http.Request) (*catalog.Admin, bool) {
	admin, err := a.catalog.Admin(auth.FromContext(r.Context()))
	if err != nil {
		respondErr(w, r, err)
		return nil, false
	}
	return admin, true
}

func (a *api) saveProduct(w http.ResponseWriter, r *http.Request) {
	admin, ok := a.admin(w, r)
	if !ok {
		return
	}

	var p models.Product
	if err := decodeJSON(r, &p); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	saved, err := admin.Save(r.Context(), p)
	if err != nil {
		respondWriteErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, saved)
}

func (a *api) deleteProduct(w http.ResponseWriter, r *http.Request) {
	admin, ok := a.admin(w, r)
	if !ok {
		return
	}

	if err := admin.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondWriteErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) refreshCatalog(w http.ResponseWriter, r *http.Request) {
	admin, ok := a.admin(w, r)
	if !ok {
		return
	}

	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	result, err := admin.Refresh(r.Context(), catalog.RefreshOptions{ForceReset: force})
	if err != nil {
		respondWriteErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"added":          result.Added,
		"reset":          result.Reset,
		"nothing_to_add": result.NothingToAdd(),
	})
}

func (a *api) pendingTombstones(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.admin(w, r); !ok {
		return
	}

	ids, err := a.catalog.PendingTombstones(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string][]string{"pending": ids})
}

// respondWriteErr reports store failures on the write path as 502 so the
// client retries.
func respondWriteErr(w http.ResponseWriter, r *http.Request, err error) {
	if statusFor(err) == http.StatusInternalServerError {
		log.Printf("[api] ERROR: %s %s: %v", r.Method, r.URL.Path, err)
		respondError(w, http.StatusBadGateway, "catalog store unavailable, retry")
		return
	}
	respondErr(w, r, err)
}
