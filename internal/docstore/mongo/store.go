// Package mongo stores the catalog in MongoDB, keyed by product id.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/safar/go-storefront/internal/config"
	"github.com/safar/go-storefront/internal/docstore"
	"github.com/safar/go-storefront/internal/models"
)

// Connect opens a client and pings the primary.
func Connect(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	log.Printf("[mongo] connected to database %s", cfg.Database)
	return client, nil
}

type Store struct {
	products   *mongo.Collection
	tombstones *mongo.Collection
}

func New(db *mongo.Database, cfg config.CatalogConfig) *Store {
	products, tombstones := cfg.ProductsCollection, cfg.TombstonesCollection
	if products == "" {
		products = "products"
	}
	if tombstones == "" {
		tombstones = "deletedProducts"
	}
	return &Store{
		products:   db.Collection(products),
		tombstones: db.Collection(tombstones),
	}
}

type productDoc struct {
	ID          string               `bson:"_id"`
	Name        string               `bson:"name"`
	Description string               `bson:"description"`
	Price       primitive.Decimal128 `bson:"price"`
	Stock       int                  `bson:"stock"`
	Category    string               `bson:"category"`
	Image       string               `bson:"image"`
	Reviews     []reviewDoc          `bson:"reviews"`
	UpdatedAt   time.Time            `bson:"updated_at"`
}

type reviewDoc struct {
	ID       string    `bson:"id"`
	UserID   string    `bson:"user_id"`
	UserName string    `bson:"user_name"`
	Rating   int       `bson:"rating"`
	Comment  string    `bson:"comment"`
	Date     time.Time `bson:"date"`
	Photos   []string  `bson:"photos,omitempty"`
}

type tombstoneDoc struct {
	ID        string    `bson:"_id"`
	DeletedAt time.Time `bson:"deleted_at"`
}

func toDoc(p models.Product) (productDoc, error) {
	price, err := primitive.ParseDecimal128(p.Price.String())
	if err != nil {
		return productDoc{}, fmt.Errorf("encode price %s: %w", p.Price, err)
	}

	doc := productDoc{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       price,
		Stock:       p.Stock,
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
			Rating:   r.Rating,
			Comment:  r.Comment,
			Date:     r.Date,
			Photos:   r.Photos,
		})
	}
	return doc, nil
}

func (d productDoc) product() (models.Product, error) {
	price, err := decimal.NewFromString(d.Price.String())
	if err != nil {
		return models.Product{}, fmt.Errorf("decode price of %s: %w", d.ID, err)
	}

	p := models.Product{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Price:       price,
		Stock:       d.Stock,
		Category:    models.Category(d.Category),
		Image:       d.Image,
		UpdatedAt:   d.UpdatedAt,
	}
	for _, r := range d.Reviews {
		p.Reviews = append(p.Reviews, models.Review{
			ID:        r.ID,
			ProductID: d.ID,
			UserID:    r.UserID,
			UserName:  r.UserName,
			Rating:    r.Rating,
			Comment:   r.Comment,
			Date:      r.Date,
			Photos:    r.Photos,
		})
	}
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	cursor, err := s.products.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer cursor.Close(ctx)

	products := []models.Product{}
	for cursor.Next(ctx) {
		var doc productDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode product: %w", err)
		}
		p, err := doc.product()
		if err != nil {
			log.Printf("[mongo] WARN: skipping product: %v", err)
			continue
		}
		products = append(products, p)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (models.Product, error) {
	var doc productDoc
	err := s.products.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Product{}, docstore.ErrProductNotFound
		}
		return models.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	return doc.product()
}

func (s *Store) PutProduct(ctx context.Context, p models.Product) error {
	doc, err := toDoc(p)
	if err != nil {
		return err
	}
	_, err = s.products.ReplaceOne(ctx, bson.M{"_id": p.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("put product %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	if _, err := s.products.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	return nil
}

func (s *Store) ClearProducts(ctx context.Context) error {
	res, err := s.products.DeleteMany(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("clear products: %w", err)
	}
	log.Printf("[mongo] cleared %d product(s)", res.DeletedCount)
	return nil
}

func (s *Store) ListTombstones(ctx context.Context) ([]string, error) {
	cursor, err := s.tombstones.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("list tombstones: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []tombstoneDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list tombstones: %w", err)
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (s *Store) PutTombstone(ctx context.Context, id string, deletedAt time.Time) error {
	_, err := s.tombstones.ReplaceOne(ctx, bson.M{"_id": id},
		tombstoneDoc{ID: id, DeletedAt: deletedAt}, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("put tombstone %s: %w", id, err)
	}
	return nil
}

func (s *Store) DeleteTombstone(ctx context.Context, id string) error {
	if _, err := s.tombstones.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete tombstone %s: %w", id, err)
	}
	return nil
}

func (s *Store) ClearTombstones(ctx context.Context) error {
	res, err := s.tombstones.DeleteMany(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("clear tombstones: %w", err)
	}
	log.Printf("[mongo] cleared %d tombstone(s)", res.DeletedCount)
	return nil
}
