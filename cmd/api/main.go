package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/safar/go-storefront/internal/auth"
	"github.com/safar/go-storefront/internal/cart"
	"github.com/safar/go-storefront/internal/catalog"
	"github.com/safar/go-storefront/internal/checkout"
	"github.com/safar/go-storefront/internal/config"
	"github.com/safar/go-storefront/internal/database"
	firestorestore "github.com/safar/go-storefront/internal/docstore/firestore"
	memstore "github.com/safar/go-storefront/internal/docstore/memory"
	mongostore "github.com/safar/go-storefront/internal/docstore/mongo"
	"github.com/safar/go-storefront/internal/media"
	"github.com/safar/go-storefront/internal/notify"
	"github.com/safar/go-storefront/internal/payment/paypal"
	"github.com/safar/go-storefront/internal/payment/razorpay"
	"github.com/safar/go-storefront/internal/pricing"
	"github.com/safar/go-storefront/internal/retry"
	"github.com/safar/go-storefront/internal/secrets"
	"github.com/safar/go-storefront/internal/seed"
	"github.com/safar/go-storefront/internal/store"
	"github.com/safar/go-storefront/internal/tombstone"
)

// catalogBackend is a document store holding both products and tombstones.
type catalogBackend interface {
	catalog.Store
	tombstone.Remote
}

// systemPrincipal runs startup maintenance with admin rights.
var systemPrincipal = auth.Principal{UserID: "system", Name: "startup", Admin: true}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if secrets.Uses(cfg.SecretRefs()) {
		if err := resolveSecrets(ctx, cfg); err != nil {
			log.Fatalf("Resolve secrets: %v", err)
		}
	}

	mirror, closeMirror, err := openMirror(cfg)
	if err != nil {
		log.Fatalf("Open mirror: %v", err)
	}
	defer closeMirror.Close()

	backend, closeBackend, err := openCatalogStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Open catalog store: %v", err)
	}
	defer closeBackend.Close()

	defaults, err := seed.Defaults()
	if err != nil {
		log.Fatalf("Load default catalog: %v", err)
	}

	tracker := tombstone.NewTracker(mirror, backend)
	reconciler := catalog.NewReconciler(backend, tracker, mirror, catalog.Options{
		CacheTTL: cfg.Catalog.CacheTTL,
		Defaults: defaults,
	})
	startupMaintenance(ctx, cfg.Catalog, reconciler)

	carts := cart.NewManager(mirror, reconciler)

	checkoutOpts := checkout.Options{
		Retry: retry.Policy{
			MaxRetries:     cfg.Payments.MaxRetries,
			AttemptTimeout: cfg.Payments.Timeout,
			InitialBackoff: cfg.Payments.InitialBackoff,
		},
		DefaultCurrency: cfg.Payments.BaseCurrency,
	}
	if cfg.Mail.SendGridAPIKey != "" {
		checkoutOpts.Mailer = notify.NewReceiptMailer(cfg.Mail.SendGridAPIKey, cfg.Mail.From)
	} else {
		log.Printf("[mail] SENDGRID_API_KEY not set, receipts will not be emailed")
	}

	providers, signatures := paymentProviders(ctx, cfg.Payments)

	var signer media.Signer
	if cfg.Media.Bucket != "" {
		gcs, err := media.NewGCSSigner(ctx)
		if err != nil {
			log.Fatalf("Open media signer: %v", err)
		}
		defer gcs.Close()
		signer = gcs
	}

	var verifier TokenVerifier
	if cfg.Auth.FirebaseProjectID != "" {
		v, err := auth.NewFirebaseVerifier(ctx, cfg.Auth.FirebaseProjectID)
		if err != nil {
			log.Fatalf("Init firebase auth: %v", err)
		}
		verifier = v
	} else {
		log.Printf("[auth] WARN: FIREBASE_PROJECT_ID not set, bearer tokens will be rejected")
	}

	a := &api{
		catalog:    reconciler,
		carts:      carts,
		wishlist:   cart.NewWishlist(mirror, reconciler),
		locales:    pricing.NewLocales(mirror),
		checkout:   checkout.NewService(carts, mirror, checkoutOpts, providers...),
		media:      media.NewResolver(signer, cfg.Media.SignedURLTTL),
		signatures: signatures,
	}

	server := &http.Server{
		Addr: ":" + cfg.Server.Port,
		Handler: newRouter(a, routerOptions{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Verifier:       verifier,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown: %v", err)
		}
	}()

	log.Printf("Server starting on port %s (catalog=%s, mirror=%s)", cfg.Server.Port, cfg.Catalog.Backend, cfg.Server.MirrorBackend)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}
}

func resolveSecrets(ctx context.Context, cfg *config.Config) error {
	client, err := secrets.NewClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	return secrets.NewResolver(client, cfg.Secrets.ProjectID).ResolveAll(ctx, cfg.SecretRefs())
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

var noopCloser = closerFunc(func() error { return nil })

func openMirror(cfg *config.Config) (store.Mirror, io.Closer, error) {
	if cfg.Server.MirrorBackend == "memory" {
		log.Printf("[mirror] WARN: in-memory mirror, carts and tombstones are lost on restart")
		return store.NewMemoryMirror(), noopCloser, nil
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("Connected to database successfully")
	return store.NewPostgresMirror(db), db, nil
}

func openCatalogStore(ctx context.Context, cfg *config.Config) (catalogBackend, io.Closer, error) {
	switch cfg.Catalog.Backend {
	case "mongo":
		client, err := mongostore.Connect(ctx, cfg.Mongo)
		if err != nil {
			return nil, nil, err
		}
		closer := closerFunc(func() error { return client.Disconnect(context.Background()) })
		return mongostore.New(client.Database(cfg.Mongo.Database), cfg.Catalog), closer, nil
	case "memory":
		return memstore.New(), noopCloser, nil
	default:
		client, err := firestorestore.NewClient(ctx, cfg.Firestore)
		if err != nil {
			return nil, nil, err
		}
		return firestorestore.New(client, cfg.Catalog), client, nil
	}
}

// startupMaintenance replays deletes interrupted by a previous crash, then
// tops up missing default products.
func startupMaintenance(ctx context.Context, cfg config.CatalogConfig, r *catalog.Reconciler) {
	if cfg.ResumeOnStart {
		replayed, err := r.ResumePending(ctx)
		if err != nil {
			log.Printf("[catalog] WARN: pending deletes not fully replayed: %v", err)
		} else if len(replayed) > 0 {
			log.Printf("[catalog] replayed %d pending delete(s)", len(replayed))
		}
	}

	if !cfg.SeedOnStart {
		return
	}
	admin, err := r.Admin(systemPrincipal)
	if err != nil {
		log.Printf("[catalog] WARN: seed skipped: %v", err)
		return
	}
	if _, err := admin.Refresh(ctx, catalog.RefreshOptions{}); err != nil {
		log.Printf("[catalog] WARN: seed defaults failed: %v", err)
	}
}

// paymentProviders builds every provider with credentials configured. A
// provider that fails to initialize is left out rather than stopping the
// service.
func paymentProviders(ctx context.Context, cfg config.PaymentsConfig) ([]checkout.Provider, map[string]signatureVerifier) {
	var providers []checkout.Provider
	signatures := make(map[string]signatureVerifier)

	if cfg.PayPal.ClientID != "" {
		p, err := paypal.New(ctx, cfg.PayPal)
		if err != nil {
			log.Printf("[payment] WARN: paypal disabled: %v", err)
		} else {
			providers = append(providers, p)
		}
	}

	if cfg.Razorpay.KeyID != "" {
		p, err := razorpay.New(cfg.Razorpay)
		if err != nil {
			log.Printf("[payment] WARN: razorpay disabled: %v", err)
		} else {
			providers = append(providers, p)
			signatures[razorpay.Name] = p
		}
	}

	if len(providers) == 0 {
		log.Printf("[payment] WARN: no payment provider configured, checkout is disabled")
	}
	return providers, signatures
}
