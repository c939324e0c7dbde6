// Package cart holds per-session cart and wishlist state. Line items carry
// only a product id and quantity; prices are read from the catalog on every
// total.
package cart

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/safar/go-storefront/internal/models"
)

var (
	ErrOutOfStock      = errors.New("cart: product is out of stock")
	ErrInvalidQuantity = errors.New("cart: quantity outside available stock")
	ErrNotInCart       = errors.New("cart: product not in cart")
	ErrUnknownProduct  = errors.New("cart: product not available")
)

// Catalog is the tombstone-aware product lookup.
type Catalog interface {
	GetByID(ctx context.Context, id string) (models.Product, bool)
	// GetMany omits ids that are not available.
	GetMany(ctx context.Context, ids []string) map[string]models.Product
}

// Ledger is an ordered list of cart lines. It is not safe for concurrent use;
// Manager serializes access per session.
type Ledger struct {
	lines []models.CartLine
}

func NewLedger(lines []models.CartLine) *Ledger {
	l := &Ledger{}
	for _, line := range lines {
		if line.ProductID != "" && line.Quantity > 0 {
			l.lines = append(l.lines, line)
		}
	}
	return l
}

func (l *Ledger) index(productID string) int {
	for i, line := range l.lines {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}

// AddItem adds quantity of p. The resulting quantity is clamped to
// [1, p.Stock]. A product without stock is rejected.
func (l *Ledger) AddItem(p models.Product, quantity int) (models.CartLine, error) {
	if p.Stock <= 0 {
		return models.CartLine{}, ErrOutOfStock
	}
	quantity = max(quantity, 1)

	if i := l.index(p.ID); i >= 0 {
		l.lines[i].Quantity = min(l.lines[i].Quantity+quantity, p.Stock)
		return l.lines[i], nil
	}

	line := models.CartLine{ProductID: p.ID, Quantity: min(quantity, p.Stock)}
	l.lines = append(l.lines, line)
	return line, nil
}

// SetQuantity replaces the quantity of p's line. Zero removes the line; any
// other value outside [1, p.Stock] is rejected and leaves the ledger as is.
func (l *Ledger) SetQuantity(p models.Product, quantity int) error {
	i := l.index(p.ID)
	if i < 0 {
		return ErrNotInCart
	}
	if quantity == 0 {
		l.RemoveItem(p.ID)
		return nil
	}
	if quantity < 1 || quantity > p.Stock {
		return ErrInvalidQuantity
	}
	l.lines[i].Quantity = quantity
	return nil
}

func (l *Ledger) RemoveItem(productID string) bool {
	i := l.index(productID)
	if i < 0 {
		return false
	}
	l.lines = append(l.lines[:i], l.lines[i+1:]...)
	return true
}

func (l *Ledger) Clear() {
	l.lines = nil
}

func (l *Ledger) Quantity(productID string) int {
	if i := l.index(productID); i >= 0 {
		return l.lines[i].Quantity
	}
	return 0
}

func (l *Ledger) Lines() []models.CartLine {
	return append([]models.CartLine{}, l.lines...)
}

func (l *Ledger) Len() int {
	return len(l.lines)
}

func (l *Ledger) TotalItems() int {
	total := 0
	for _, line := range l.lines {
		total += line.Quantity
	}
	return total
}

type PricedLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	Quantity  int             `json:"quantity"`
	Stock     int             `json:"stock"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type Summary struct {
	Lines      []PricedLine    `json:"lines"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	// Unavailable lists lines whose product was deleted or cannot be read.
	// They are excluded from TotalPrice.
	Unavailable []string `json:"unavailable,omitempty"`
}

func (s Summary) Empty() bool {
	return len(s.Lines) == 0
}

// TotalPrice sums live price times quantity.
func (l *Ledger) TotalPrice(ctx context.Context, catalog Catalog) decimal.Decimal {
	return l.Summarize(ctx, catalog).TotalPrice
}

// Summarize prices every line from the catalog at call time.
func (l *Ledger) Summarize(ctx context.Context, catalog Catalog) Summary {
	s := Summary{
		Lines:      []PricedLine{},
		TotalItems: l.TotalItems(),
		TotalPrice: decimal.Zero,
	}

	ids := make([]string, len(l.lines))
	for i, line := range l.lines {
		ids[i] = line.ProductID
	}
	products := catalog.GetMany(ctx, ids)

	for _, line := range l.lines {
		p, ok := products[line.ProductID]
		if !ok {
			s.Unavailable = append(s.Unavailable, line.ProductID)
			continue
		}

		subtotal := p.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		s.Lines = append(s.Lines, PricedLine{
			ProductID: p.ID,
			Name:      p.Name,
			Image:     p.Image,
			Quantity:  line.Quantity,
			Stock:     p.Stock,
			UnitPrice: p.Price,
			Subtotal:  subtotal,
		})
		s.TotalPrice = s.TotalPrice.Add(subtotal)
	}
	return s
}
