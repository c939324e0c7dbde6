// Package seed loads the default catalog shipped with the binary.
package seed

import (
	_ "embed"
	"fmt"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/safar/go-storefront/internal/models"
)

//go:embed products.yaml
var defaultCatalog []byte

type catalogFile struct {
	Products []productEntry `yaml:"products"`
}

type productEntry struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
	Stock       int    `yaml:"stock"`
	Category    string `yaml:"category"`
	Image       string `yaml:"image"`
}

// Defaults returns the embedded default catalog.
func Defaults() ([]models.Product, error) {
	return Parse(defaultCatalog)
}

func Parse(data []byte) ([]models.Product, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse seed catalog: %w", err)
	}

	seen := make(map[string]bool, len(file.Products))
	products := make([]models.Product, 0, len(file.Products))
	for i, entry := range file.Products {
		if entry.ID == "" {
			return nil, fmt.Errorf("seed product %d: missing id", i)
		}
		if seen[entry.ID] {
			return nil, fmt.Errorf("seed product %s: duplicate id", entry.ID)
		}
		seen[entry.ID] = true

		price, err := decimal.NewFromString(entry.Price)
		if err != nil {
			return nil, fmt.Errorf("seed product %s: price %q: %w", entry.ID, entry.Price, err)
		}

		category := models.Category(entry.Category)
		if !category.Valid() {
			return nil, fmt.Errorf("seed product %s: unknown category %q", entry.ID, entry.Category)
		}

		products = append(products, models.Product{
			ID:          entry.ID,
			Name:        entry.Name,
			Description: entry.Description,
			Price:       price,
			Stock:       entry.Stock,
			Category:    category,
			Image:       entry.Image,
		})
	}

	return products, nil
}
