package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryElectronics Category = "electronics"
	CategoryClothing    Category = "clothing"
	CategoryHome        Category = "home"
	CategoryBooks       Category = "books"
	CategorySports      Category = "sports"
	CategoryBeauty      Category = "beauty"
	CategoryToys        Category = "toys"
	CategoryGrocery     Category = "grocery"
)

var Categories = []Category{
	CategoryElectronics,
	CategoryClothing,
	CategoryHome,
	CategoryBooks,
	CategorySports,
	CategoryBeauty,
	CategoryToys,
	CategoryGrocery,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    Category        `json:"category"`
	Image       string          `json:"image,omitempty"`
	Reviews     []Review        `json:"reviews,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Clone returns a copy whose Reviews slice does not alias p's.
func (p Product) Clone() Product {
	out := p
	if p.Reviews != nil {
		out.Reviews = make([]Review, len(p.Reviews))
		for i, r := range p.Reviews {
			out.Reviews[i] = r
			if r.Photos != nil {
				out.Reviews[i].Photos = append([]string(nil), r.Photos...)
			}
		}
	}
	return out
}

const MaxReviewPhotos = 3

type Review struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	Date      time.Time `json:"date"`
	Photos    []string  `json:"photos,omitempty"`
}

type CartLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CustomerInfo struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	City     string `json:"city"`
	State    string `json:"state"`
	ZipCode  string `json:"zip_code"`
	Country  string `json:"country"`
}

// OrderLine is a priced cart line captured when a checkout order is created.
type OrderLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type PendingCheckout struct {
	OrderID        string          `json:"order_id"`
	Provider       string          `json:"provider"`
	IdempotencyKey string          `json:"idempotency_key"`
	Currency       string          `json:"currency"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Customer       CustomerInfo    `json:"customer"`
	Items          []OrderLine     `json:"items"`
	CreatedAt      time.Time       `json:"created_at"`
}

type Receipt struct {
	OrderID     string          `json:"order_id"`
	PaymentID   string          `json:"payment_id"`
	Provider    string          `json:"provider"`
	Status      string          `json:"status"`
	Currency    string          `json:"currency"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Customer    CustomerInfo    `json:"customer"`
	Items       []OrderLine     `json:"items"`
	CreatedAt   time.Time       `json:"created_at"`
}

const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusCancelled = "cancelled"
)

type LocaleSelection struct {
	Language string `json:"language"`
	Currency string `json:"currency"`
}
