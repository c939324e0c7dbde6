// Package media turns stored image references into URLs a browser can load.
package media

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"

	"github.com/safar/go-storefront/internal/models"
)

// Signer issues time-limited GET URLs for private objects.
type Signer interface {
	SignedURL(bucket, object string, expires time.Time) (string, error)
}

type GCSSigner struct {
	client *storage.Client
}

func NewGCSSigner(ctx context.Context) (*GCSSigner, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient failed: %w", err)
	}
	return &GCSSigner{client: client}, nil
}

func (s *GCSSigner) SignedURL(bucket, object string, expires time.Time) (string, error) {
	return s.client.Bucket(bucket).SignedURL(object, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: expires,
	})
}

func (s *GCSSigner) Close() error {
	return s.client.Close()
}

type signedEntry struct {
	url     string
	expires time.Time
}

// Resolver rewrites gs:// references to signed URLs and tags plain URLs with
// a cache-busting version parameter derived from the product's update time.
type Resolver struct {
	signer Signer
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]signedEntry
}

func NewResolver(signer Signer, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Resolver{
		signer: signer,
		ttl:    ttl,
		now:    time.Now,
		cache:  make(map[string]signedEntry),
	}
}

func (r *Resolver) Product(p models.Product) models.Product {
	p = p.Clone()
	p.Image = r.Resolve(p.Image, p.UpdatedAt)
	for i := range p.Reviews {
		photos := make([]string, len(p.Reviews[i].Photos))
		for j, ref := range p.Reviews[i].Photos {
			photos[j] = r.Resolve(ref, time.Time{})
		}
		p.Reviews[i].Photos = photos
	}
	return p
}

func (r *Resolver) Products(products []models.Product) []models.Product {
	out := make([]models.Product, len(products))
	for i, p := range products {
		out[i] = r.Product(p)
	}
	return out
}

// Resolve returns a loadable URL for ref. Unresolvable references come back
// unchanged.
func (r *Resolver) Resolve(ref string, version time.Time) string {
	switch {
	case strings.HasPrefix(ref, "gs://"):
		return r.sign(ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		if version.IsZero() {
			return ref
		}
		return withVersion(ref, version)
	default:
		return ref
	}
}

func (r *Resolver) sign(ref string) string {
	if r.signer == nil {
		return ref
	}
	bucket, object, ok := strings.Cut(strings.TrimPrefix(ref, "gs://"), "/")
	if !ok || bucket == "" || object == "" {
		return ref
	}

	now := r.now()
	r.mu.Lock()
	entry, hit := r.cache[ref]
	r.mu.Unlock()
	// Reuse while at least half the lifetime remains.
	if hit && entry.expires.Sub(now) > r.ttl/2 {
		return entry.url
	}

	expires := now.Add(r.ttl)
	signed, err := r.signer.SignedURL(bucket, object, expires)
	if err != nil {
		log.Printf("[media] WARN: sign %s failed: %v", ref, err)
		return ref
	}

	r.mu.Lock()
	r.cache[ref] = signedEntry{url: signed, expires: expires}
	r.mu.Unlock()
	return signed
}

func withVersion(ref string, version time.Time) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	q := u.Query()
	q.Set("v", strconv.FormatInt(version.Unix(), 10))
	u.RawQuery = q.Encode()
	return u.String()
}
