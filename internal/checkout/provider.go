// Package checkout turns a session cart into a payment-provider order and
// records the receipt once the provider confirms capture.
package checkout

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/safar/go-storefront/internal/models"
)

var (
	// ErrProviderUnavailable marks transient provider failures. Only these
	// are retried.
	ErrProviderUnavailable = errors.New("checkout: payment provider unavailable")
	ErrCreateFailed        = errors.New("checkout: order creation failed")
	ErrCaptureFailed       = errors.New("checkout: payment capture failed")
	ErrUnknownProvider     = errors.New("checkout: unknown payment provider")
	// ErrCancelled is the outcome of a payment the customer abandoned. It is
	// not a failure; the cart stays as it was.
	ErrCancelled     = errors.New("checkout: payment cancelled")
	ErrEmptyCart     = errors.New("checkout: cart is empty")
	ErrOrderNotFound = errors.New("checkout: order not found")
)

type OrderItem struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

type OrderRequest struct {
	Currency string
	Total    decimal.Decimal
	Items    []OrderItem
	Customer models.CustomerInfo
	// IdempotencyKey is identical across retries of one create call.
	IdempotencyKey string
}

type CaptureRequest struct {
	OrderID string
	// PaymentID pins the capture to one payment the client has proven it
	// made. Empty lets the provider pick.
	PaymentID string
}

type Capture struct {
	TransactionID string
	Status        string
}

// Provider is a payment gateway. Implementations wrap transient transport
// errors with ErrProviderUnavailable and report an abandoned payment as
// ErrCancelled.
type Provider interface {
	Name() string
	CreateOrder(ctx context.Context, req OrderRequest) (string, error)
	CaptureOrder(ctx context.Context, req CaptureRequest) (Capture, error)
}

type Mailer interface {
	SendReceipt(ctx context.Context, receipt models.Receipt) error
}
