// Package paypal adapts the PayPal Orders v2 API to checkout.Provider.
package paypal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/plutov/paypal/v4"

	"github.com/safar/go-storefront/internal/checkout"
	"github.com/safar/go-storefront/internal/config"
)

const Name = "paypal"

type Provider struct {
	client *paypal.Client
}

func New(ctx context.Context, cfg config.PayPalConfig) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("paypal: client id and secret are required")
	}

	base := cfg.BaseURL
	if base == "" {
		base = paypal.APIBaseSandBox
	}

	client, err := paypal.NewClient(cfg.ClientID, cfg.ClientSecret, base)
	if err != nil {
		return nil, fmt.Errorf("create paypal client: %w", err)
	}
	if _, err := client.GetAccessToken(ctx); err != nil {
		return nil, fmt.Errorf("paypal access token: %w", classify(err))
	}

	return &Provider{client: client}, nil
}

func (p *Provider) Name() string { return Name }

// CreateOrder sends the idempotency key as PayPal-Request-Id, so a retried
// create returns the order the first attempt opened.
func (p *Provider) CreateOrder(ctx context.Context, req checkout.OrderRequest) (string, error) {
	order, err := p.client.CreateOrderWithPaypalRequestID(ctx, paypal.OrderIntentCapture,
		[]paypal.PurchaseUnitRequest{purchaseUnit(req)}, nil, nil, req.IdempotencyKey)
	if err != nil {
		return "", fmt.Errorf("paypal create order: %w", classify(err))
	}
	return order.ID, nil
}

// captureRequestID is stable per order so PayPal replays a capture it has
// already made instead of failing the retry.
func captureRequestID(orderID string) string {
	return "capture-" + orderID
}

func (p *Provider) CaptureOrder(ctx context.Context, req checkout.CaptureRequest) (checkout.Capture, error) {
	orderID := req.OrderID
	resp, err := p.client.CaptureOrderWithPaypalRequestId(ctx, orderID, paypal.CaptureOrderRequest{}, captureRequestID(orderID), nil)
	if alreadyCaptured(err) {
		log.Printf("[payment] paypal order %s was already captured, reading it back", orderID)
		return p.existingCapture(ctx, orderID)
	}
	if err != nil {
		return checkout.Capture{}, fmt.Errorf("paypal capture %s: %w", orderID, classify(err))
	}
	if resp.Status != "COMPLETED" {
		return checkout.Capture{}, fmt.Errorf("paypal capture %s: order status %s", orderID, resp.Status)
	}

	capture := checkout.Capture{TransactionID: resp.ID, Status: resp.Status}
	for _, unit := range resp.PurchaseUnits {
		if unit.Payments != nil && len(unit.Payments.Captures) > 0 {
			capture.TransactionID = unit.Payments.Captures[0].ID
			break
		}
	}
	return capture, nil
}

func (p *Provider) existingCapture(ctx context.Context, orderID string) (checkout.Capture, error) {
	order, err := p.client.GetOrder(ctx, orderID)
	if err != nil {
		return checkout.Capture{}, fmt.Errorf("paypal get order %s: %w", orderID, classify(err))
	}
	if order.Status != "COMPLETED" {
		return checkout.Capture{}, fmt.Errorf("paypal order %s: status %s", orderID, order.Status)
	}

	capture := checkout.Capture{TransactionID: order.ID, Status: order.Status}
	for _, unit := range order.PurchaseUnits {
		if unit.Payments != nil && len(unit.Payments.Captures) > 0 {
			capture.TransactionID = unit.Payments.Captures[0].ID
			break
		}
	}
	return capture, nil
}

func alreadyCaptured(err error) bool {
	var apiErr *paypal.ErrorResponse
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, d := range apiErr.Details {
		if d.Issue == "ORDER_ALREADY_CAPTURED" {
			return true
		}
	}
	return false
}

// purchaseUnit tags the unit with the idempotency key so the order can be
// matched to its checkout in the PayPal dashboard.
func purchaseUnit(req checkout.OrderRequest) paypal.PurchaseUnitRequest {
	items := make([]paypal.Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, paypal.Item{
			Name:     it.Name,
			SKU:      it.ProductID,
			Quantity: strconv.Itoa(it.Quantity),
			UnitAmount: &paypal.Money{
				Currency: req.Currency,
				Value:    it.UnitPrice.StringFixed(2),
			},
		})
	}

	total := req.Total.StringFixed(2)
	return paypal.PurchaseUnitRequest{
		ReferenceID: req.IdempotencyKey,
		InvoiceID:   req.IdempotencyKey,
		Amount: &paypal.PurchaseUnitAmount{
			Currency: req.Currency,
			Value:    total,
			Breakdown: &paypal.PurchaseUnitAmountBreakdown{
				ItemTotal: &paypal.Money{Currency: req.Currency, Value: total},
			},
		},
		Items: items,
	}
}

// classify maps PayPal API errors onto checkout's error kinds.
func classify(err error) error {
	var apiErr *paypal.ErrorResponse
	if !errors.As(err, &apiErr) || apiErr.Response == nil {
		// No API response: the request never completed.
		return fmt.Errorf("%w: %w", checkout.ErrProviderUnavailable, err)
	}

	for _, d := range apiErr.Details {
		if d.Issue == "ORDER_NOT_APPROVED" || d.Issue == "PAYER_ACTION_REQUIRED" {
			return fmt.Errorf("%w: %w", checkout.ErrCancelled, err)
		}
	}

	status := apiErr.Response.StatusCode
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %w", checkout.ErrProviderUnavailable, err)
	}
	return err
}
