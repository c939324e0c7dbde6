package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/safar/go-storefront/internal/cart"
	"github.com/safar/go-storefront/internal/catalog"
	"github.com/safar/go-storefront/internal/checkout"
	"github.com/safar/go-storefront/internal/media"
	"github.com/safar/go-storefront/internal/pricing"
)

// signatureVerifier checks the client-side payment confirmation some
// providers hand back before capture.
type signatureVerifier interface {
	VerifySignature(orderID, paymentID, signature string) error
}

type api struct {
	catalog    *catalog.Reconciler
	carts      *cart.Manager
	wishlist   *cart.Wishlist
	locales    *pricing.Locales
	checkout   *checkout.Service
	media      *media.Resolver
	signatures map[string]signatureVerifier
}

type routerOptions struct {
	AllowedOrigins []string
	Verifier       TokenVerifier
}

func newRouter(a *api, opts routerOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", sessionHeader, "Idempotency-Key"},
		ExposedHeaders:   []string{sessionHeader, catalogDegradedHeader},
		AllowCredentials: true,
		MaxAge:           600,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(withSession)
		r.Use(withPrincipal(opts.Verifier))

		r.Get("/products", a.listProducts)
		r.Get("/products/{id}", a.getProduct)
		r.Post("/products/{id}/reviews", a.addReview)

		r.Route("/admin", func(r chi.Router) {
			r.Put("/products", a.saveProduct)
			r.Delete("/products/{id}", a.deleteProduct)
			r.Post("/catalog/refresh", a.refreshCatalog)
			r.Get("/catalog/pending", a.pendingTombstones)
		})

		r.Get("/cart", a.getCart)
		r.Delete("/cart", a.clearCart)
		r.Post("/cart/items", a.addCartItem)
		r.Put("/cart/items/{id}", a.setCartQuantity)
		r.Delete("/cart/items/{id}", a.removeCartItem)

		r.Get("/wishlist", a.getWishlist)
		r.Put("/wishlist/{id}", a.addToWishlist)
		r.Delete("/wishlist/{id}", a.removeFromWishlist)

		r.Get("/locale", a.getLocale)
		r.Put("/locale", a.setLocale)

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/providers", a.listProviders)
			r.Post("/{provider}/orders", a.createOrder)
			r.Post("/{provider}/orders/{id}/capture", a.captureOrder)
			r.Post("/{provider}/orders/{id}/cancel", a.cancelOrder)
			r.Get("/receipt", a.takeReceipt)
			r.Get("/customer", a.savedCustomer)
		})
	})

	return r
}
