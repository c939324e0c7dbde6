// Package firestore stores the catalog in Cloud Firestore: one collection of
// active products and one of tombstones keyed by product id.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/safar/go-storefront/internal/config"
	"github.com/safar/go-storefront/internal/docstore"
	"github.com/safar/go-storefront/internal/models"
)

type Store struct {
	client     *firestore.Client
	products   string
	tombstones string
}

// NewClient connects to Firestore. FIRESTORE_EMULATOR_HOST, when set, is
// honored by the client library.
func NewClient(ctx context.Context, cfg config.FirestoreConfig) (*firestore.Client, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("firestore: project id is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient failed (project=%s): %w", cfg.ProjectID, err)
	}
	return client, nil
}

func New(client *firestore.Client, cfg config.CatalogConfig) *Store {
	products, tombstones := cfg.ProductsCollection, cfg.TombstonesCollection
	if products == "" {
		products = "products"
	}
	if tombstones == "" {
		tombstones = "deletedProducts"
	}
	return &Store{client: client, products: products, tombstones: tombstones}
}

func (s *Store) productsCol() *firestore.CollectionRef {
	return s.client.Collection(s.products)
}

func (s *Store) tombstonesCol() *firestore.CollectionRef {
	return s.client.Collection(s.tombstones)
}

type productDoc struct {
	Name        string      `firestore:"name"`
	Description string      `firestore:"description"`
	Price       float64     `firestore:"price"`
	Stock       int64       `firestore:"stock"`
	Category    string      `firestore:"category"`
	Image       string      `firestore:"image"`
	Reviews     []reviewDoc `firestore:"reviews"`
	UpdatedAt   time.Time   `firestore:"updatedAt"`
}

type reviewDoc struct {
	ID       string    `firestore:"id"`
	UserID   string    `firestore:"userId"`
	UserName string    `firestore:"userName"`
	Rating   int64     `firestore:"rating"`
	Comment  string    `firestore:"comment"`
	Date     time.Time `firestore:"date"`
	Photos   []string  `firestore:"photos,omitempty"`
}

type tombstoneDoc struct {
	DeletedAt time.Time `firestore:"deletedAt"`
}

func toDoc(p models.Product) productDoc {
	price, _ := p.Price.Float64()
	doc := productDoc{
		Name:        p.Name,
		Description: p.Description,
		Price:       price,
		Stock:       int64(p.Stock),
		Category:    string(p.Category),
		Image:       p.Image,
		Reviews:     []reviewDoc{},
		UpdatedAt:   p.UpdatedAt,
	}
	for _, r := range p.Reviews {
		doc.Reviews = append(doc.Reviews, reviewDoc{
			ID:       r.ID,
			UserID:   r.UserID,
			UserName: r.UserName,
			Rating:   int64(r.Rating),
			Comment:  r.Comment,
			Date:     r.Date,
			Photos:   r.Photos,
		})
	}
	return doc
}

func fromSnapshot(snap *firestore.DocumentSnapshot) (models.Product, error) {
	var doc productDoc
	if err := snap.DataTo(&doc); err != nil {
		return models.Product{}, fmt.Errorf("decode product %s: %w", snap.Ref.ID, err)
	}

	p := models.Product{
		ID:          snap.Ref.ID,
		Name:        doc.Name,
		Description: doc.Description,
		Price:       decimal.NewFromFloat(doc.Price).Round(2),
		Stock:       int(doc.Stock),
		Category:    models.Category(doc.Category),
		Image:       doc.Image,
		UpdatedAt:   doc.UpdatedAt,
	}
	for _, r := range doc.Reviews {
		p.Reviews = append(p.Reviews, models.Review{
			ID:        r.ID,
			ProductID: p.ID,
			UserID:    r.UserID,
			UserName:  r.UserName,
			Rating:    int(r.Rating),
			Comment:   r.Comment,
			Date:      r.Date,
			Photos:    r.Photos,
		})
	}
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	it := s.productsCol().OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx)
	defer it.Stop()

	products := []models.Product{}
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list products: %w", err)
		}
		p, err := fromSnapshot(snap)
		if err != nil {
			log.Printf("[firestore] WARN: skipping product: %v", err)
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (models.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Product{}, docstore.ErrProductNotFound
	}

	snap, err := s.productsCol().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return models.Product{}, docstore.ErrProductNotFound
		}
		return models.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	return fromSnapshot(snap)
}

func (s *Store) PutProduct(ctx context.Context, p models.Product) error {
	if _, err := s.productsCol().Doc(p.ID).Set(ctx, toDoc(p)); err != nil {
		return fmt.Errorf("set product %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	if _, err := s.productsCol().Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	return nil
}

func (s *Store) ClearProducts(ctx context.Context) error {
	n, err := s.deleteAll(ctx, s.productsCol())
	if err != nil {
		return fmt.Errorf("clear products: %w", err)
	}
	log.Printf("[firestore] cleared %d product(s)", n)
	return nil
}

func (s *Store) ListTombstones(ctx context.Context) ([]string, error) {
	it := s.tombstonesCol().DocumentRefs(ctx)

	ids := []string{}
	for {
		ref, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list tombstones: %w", err)
		}
		ids = append(ids, ref.ID)
	}
	return ids, nil
}

func (s *Store) PutTombstone(ctx context.Context, id string, deletedAt time.Time) error {
	if _, err := s.tombstonesCol().Doc(id).Set(ctx, tombstoneDoc{DeletedAt: deletedAt}); err != nil {
		return fmt.Errorf("set tombstone %s: %w", id, err)
	}
	return nil
}

func (s *Store) DeleteTombstone(ctx context.Context, id string) error {
	if _, err := s.tombstonesCol().Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete tombstone %s: %w", id, err)
	}
	return nil
}

func (s *Store) ClearTombstones(ctx context.Context) error {
	n, err := s.deleteAll(ctx, s.tombstonesCol())
	if err != nil {
		return fmt.Errorf("clear tombstones: %w", err)
	}
	log.Printf("[firestore] cleared %d tombstone(s)", n)
	return nil
}

func (s *Store) deleteAll(ctx context.Context, col *firestore.CollectionRef) (int, error) {
	bw := s.client.BulkWriter(ctx)

	var jobs []*firestore.BulkWriterJob
	it := col.DocumentRefs(ctx)
	for {
		ref, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			bw.End()
			return 0, err
		}
		job, err := bw.Delete(ref)
		if err != nil {
			bw.End()
			return 0, err
		}
		jobs = append(jobs, job)
	}
	bw.End()

	var errs []error
	for _, job := range jobs {
		if _, err := job.Results(); err != nil && status.Code(err) != codes.NotFound {
			errs = append(errs, err)
		}
	}
	return len(jobs) - len(errs), errors.Join(errs...)
}
