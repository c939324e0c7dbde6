package seed

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	products, err := Defaults()
	require.NoError(t, err)
	require.NotEmpty(t, products)

	for _, p := range products {
		assert.NotEmpty(t, p.Name, p.ID)
		assert.True(t, p.Price.GreaterThan(decimal.Zero), p.ID)
		assert.GreaterOrEqual(t, p.Stock, 0, p.ID)
		assert.True(t, p.Category.Valid(), p.ID)
	}
}

func TestParseRejectsBadEntries(t *testing.T) {
	tests := map[string]string{
		"missing id":    "products:\n  - name: x\n    price: \"1\"\n    category: books\n",
		"bad price":     "products:\n  - id: a\n    price: abc\n    category: books\n",
		"bad category":  "products:\n  - id: a\n    price: \"1\"\n    category: cars\n",
		"duplicate ids": "products:\n  - id: a\n    price: \"1\"\n    category: books\n  - id: a\n    price: \"2\"\n    category: books\n",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}
