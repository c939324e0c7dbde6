// Package razorpay adapts Razorpay orders and payments to checkout.Provider.
//
// The customer pays in the Razorpay widget against the order created here.
// Capture looks up the order's payments and captures the one the widget
// reported, or the authorized one when none was named.
package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/razorpay/razorpay-go"
	rzperrors "github.com/razorpay/razorpay-go/errors"
	"github.com/razorpay/razorpay-go/utils"
	"github.com/shopspring/decimal"

	"github.com/safar/go-storefront/internal/checkout"
	"github.com/safar/go-storefront/internal/config"
)

const Name = "razorpay"

var (
	ErrInvalidSignature = errors.New("razorpay: invalid payment signature")
	ErrPaymentMismatch  = errors.New("razorpay: payment does not belong to order")
)

type Provider struct {
	client *razorpay.Client
	secret string
}

func New(cfg config.RazorpayConfig) (*Provider, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, errors.New("razorpay: key id and secret are required")
	}
	return &Provider{
		client: razorpay.NewClient(cfg.KeyID, cfg.KeySecret),
		secret: cfg.KeySecret,
	}, nil
}

func (p *Provider) Name() string { return Name }

// The SDK calls are blocking and take no context; they run on their own
// goroutine so a cancelled attempt returns promptly.
func call(ctx context.Context, fn func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	type result struct {
		body map[string]interface{}
		err  error
	}
	done := make(chan result, 1)
	go func() {
		body, err := fn()
		done <- result{body, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, classify(r.err)
		}
		return r.body, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", checkout.ErrProviderUnavailable, ctx.Err())
	}
}

func (p *Provider) CreateOrder(ctx context.Context, req checkout.OrderRequest) (string, error) {
	data := map[string]interface{}{
		"amount":   MinorUnits(req.Total, req.Currency),
		"currency": req.Currency,
		"receipt":  receiptID(req.IdempotencyKey),
		"notes": map[string]interface{}{
			"idempotency_key": req.IdempotencyKey,
			"customer_email":  req.Customer.Email,
		},
	}

	order, err := call(ctx, func() (map[string]interface{}, error) {
		return p.client.Order.Create(data, nil)
	})
	if err != nil {
		return "", fmt.Errorf("razorpay create order: %w", err)
	}

	id, _ := order["id"].(string)
	if id == "" {
		return "", errors.New("razorpay create order: response has no id")
	}
	return id, nil
}

func (p *Provider) CaptureOrder(ctx context.Context, req checkout.CaptureRequest) (checkout.Capture, error) {
	orderID := req.OrderID
	resp, err := call(ctx, func() (map[string]interface{}, error) {
		return p.client.Order.Payments(orderID, nil, nil)
	})
	if err != nil {
		return checkout.Capture{}, fmt.Errorf("razorpay list payments for %s: %w", orderID, err)
	}

	payments := listPayments(resp)
	if len(payments) == 0 {
		return checkout.Capture{}, fmt.Errorf("razorpay order %s: %w", orderID, checkout.ErrCancelled)
	}

	pm := pickPayment(payments)
	if req.PaymentID != "" {
		var ok bool
		if pm, ok = findPayment(payments, req.PaymentID); !ok {
			return checkout.Capture{}, fmt.Errorf("%w: %s not in %s", ErrPaymentMismatch, req.PaymentID, orderID)
		}
	}

	switch pm.status {
	case "captured":
		return checkout.Capture{TransactionID: pm.id, Status: pm.status}, nil
	case "authorized":
	default:
		return checkout.Capture{}, fmt.Errorf("razorpay payment %s is %s", pm.id, pm.status)
	}

	captured, err := call(ctx, func() (map[string]interface{}, error) {
		return p.client.Payment.Capture(pm.id, pm.amount, map[string]interface{}{
			"currency": pm.currency,
		}, nil)
	})
	if err != nil {
		return checkout.Capture{}, fmt.Errorf("razorpay capture %s: %w", pm.id, err)
	}

	status, _ := captured["status"].(string)
	return checkout.Capture{TransactionID: pm.id, Status: status}, nil
}

// VerifySignature checks the signature the Razorpay widget returns to the
// browser after payment.
func (p *Provider) VerifySignature(orderID, paymentID, signature string) error {
	ok := utils.VerifyPaymentSignature(map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	}, signature, p.secret)
	if !ok {
		return ErrInvalidSignature
	}
	return nil
}

// Signature is what the widget sends back for a successful payment.
func Signature(secret, orderID, paymentID string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(h.Sum(nil))
}

var zeroDecimalCurrencies = map[string]bool{"JPY": true, "KRW": true, "VND": true}

// MinorUnits converts an amount to the smallest currency unit.
func MinorUnits(amount decimal.Decimal, currency string) int64 {
	if zeroDecimalCurrencies[strings.ToUpper(currency)] {
		return amount.Round(0).IntPart()
	}
	return amount.Shift(2).Round(0).IntPart()
}

// Razorpay caps receipt at 40 characters.
func receiptID(key string) string {
	r := "rcpt_" + strings.ReplaceAll(key, "-", "")
	if len(r) > 40 {
		r = r[:40]
	}
	return r
}

type payment struct {
	id       string
	status   string
	currency string
	amount   int
}

func listPayments(resp map[string]interface{}) []payment {
	items, _ := resp["items"].([]interface{})

	var payments []payment
	for _, raw := range items {
		m, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		pm := payment{}
		pm.id, _ = m["id"].(string)
		pm.status, _ = m["status"].(string)
		pm.currency, _ = m["currency"].(string)
		if amount, ok := m["amount"].(float64); ok {
			pm.amount = int(amount)
		}
		if pm.id != "" {
			payments = append(payments, pm)
		}
	}
	return payments
}

func findPayment(payments []payment, id string) (payment, bool) {
	for _, pm := range payments {
		if pm.id == id {
			return pm, true
		}
	}
	return payment{}, false
}

// pickPayment prefers a captured payment, then an authorized one, then the
// most recent attempt.
func pickPayment(payments []payment) payment {
	for _, want := range []string{"captured", "authorized"} {
		for _, pm := range payments {
			if pm.status == want {
				return pm
			}
		}
	}
	return payments[0]
}

// classify treats server-side, gateway and transport failures as transient.
// A rejected request is final.
func classify(err error) error {
	var (
		badRequest *rzperrors.BadRequestError
		signature  *rzperrors.SignatureVerificationError
	)
	if errors.As(err, &badRequest) || errors.As(err, &signature) {
		return err
	}
	return fmt.Errorf("%w: %w", checkout.ErrProviderUnavailable, err)
}
