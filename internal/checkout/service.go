package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/safar/go-storefront/internal/cart"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/pricing"
	"github.com/safar/go-storefront/internal/retry"
	"github.com/safar/go-storefront/internal/store"
)

// Cart is the session cart as checkout sees it.
type Cart interface {
	Summary(ctx context.Context, session string) (cart.Summary, error)
	Clear(ctx context.Context, session string) error
}

type Options struct {
	Retry  retry.Policy
	Mailer Mailer
	Now    func() time.Time
	// DefaultCurrency is charged when the request names no supported
	// currency.
	DefaultCurrency string
}

type Service struct {
	providers map[string]Provider
	cart      Cart
	mirror    store.Mirror
	mailer    Mailer
	policy    retry.Policy
	now       func() time.Time
	currency  string
}

func NewService(c Cart, mirror store.Mirror, opts Options, providers ...Provider) *Service {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	opts.DefaultCurrency = strings.ToUpper(strings.TrimSpace(opts.DefaultCurrency))
	if !pricing.Supported(opts.DefaultCurrency) {
		opts.DefaultCurrency = pricing.BaseCurrency
	}

	s := &Service{
		providers: make(map[string]Provider, len(providers)),
		cart:      c,
		mirror:    mirror,
		mailer:    opts.Mailer,
		policy:    opts.Retry,
		now:       opts.Now,
		currency:  opts.DefaultCurrency,
	}
	for _, p := range providers {
		s.providers[p.Name()] = p
	}
	return s
}

func (s *Service) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	return names
}

func (s *Service) provider(name string) (Provider, error) {
	p, ok := s.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

func isTransient(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) || errors.Is(err, context.DeadlineExceeded)
}

type CreateOptions struct {
	// Currency of the order; unsupported codes fall back to the base currency.
	Currency string
	// IdempotencyKey lets a client retry the whole request safely. Empty
	// means a fresh key.
	IdempotencyKey   string
	RememberCustomer bool
}

// CreateOrder validates the customer and cart, then opens an order with the
// provider. Nothing in the cart changes.
func (s *Service) CreateOrder(ctx context.Context, session, providerName string, customer models.CustomerInfo, opts CreateOptions) (models.PendingCheckout, error) {
	provider, err := s.provider(providerName)
	if err != nil {
		return models.PendingCheckout{}, err
	}

	customer = NormalizeCustomer(customer)
	if err := ValidateCustomer(customer); err != nil {
		return models.PendingCheckout{}, err
	}

	key := strings.TrimSpace(opts.IdempotencyKey)
	if key != "" {
		pending, found, err := s.pendingForKey(ctx, session, key)
		if err != nil {
			return models.PendingCheckout{}, err
		}
		if found {
			log.Printf("[checkout] reusing order %s for idempotency key %s", pending.OrderID, key)
			return pending, nil
		}
	} else {
		key = uuid.NewString()
	}

	summary, err := s.cart.Summary(ctx, session)
	if err != nil {
		return models.PendingCheckout{}, fmt.Errorf("load cart: %w", err)
	}
	currency := strings.ToUpper(strings.TrimSpace(opts.Currency))
	if !pricing.Supported(currency) {
		currency = s.currency
	}
	items, total, err := snapshot(summary, currency)
	if err != nil {
		return models.PendingCheckout{}, err
	}

	req := OrderRequest{
		Currency:       currency,
		Total:          total,
		Customer:       customer,
		IdempotencyKey: key,
	}
	for _, line := range items {
		req.Items = append(req.Items, OrderItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}

	var orderID string
	err = retry.Do(ctx, s.policy, isTransient, func(ctx context.Context) error {
		id, err := provider.CreateOrder(ctx, req)
		if err != nil {
			log.Printf("[checkout] WARN: %s create order attempt failed: %v", provider.Name(), err)
			return err
		}
		orderID = id
		return nil
	})
	if err != nil {
		return models.PendingCheckout{}, fmt.Errorf("%w: %w", ErrCreateFailed, err)
	}

	pending := models.PendingCheckout{
		OrderID:        orderID,
		Provider:       provider.Name(),
		IdempotencyKey: key,
		Currency:       currency,
		TotalAmount:    total,
		Customer:       customer,
		Items:          items,
		CreatedAt:      s.now(),
	}
	if err := store.PutJSON(ctx, s.mirror, session, store.CheckoutKey(orderID), pending); err != nil {
		return models.PendingCheckout{}, fmt.Errorf("record pending checkout: %w", err)
	}
	if err := store.PutJSON(ctx, s.mirror, session, store.IdempotencyKey(key), orderID); err != nil {
		log.Printf("[checkout] WARN: idempotency key %s not recorded: %v", key, err)
	}

	if opts.RememberCustomer {
		if err := store.PutJSON(ctx, s.mirror, session, store.KeySavedCustomer, customer); err != nil {
			log.Printf("[checkout] WARN: could not remember customer info: %v", err)
		}
	}

	log.Printf("[checkout] %s order %s created: %s %s, %d line(s)",
		provider.Name(), orderID, total.StringFixed(2), currency, len(items))
	return pending, nil
}

// snapshot prices the cart in currency. Lines must all be available and
// within current stock.
func snapshot(summary cart.Summary, currency string) ([]models.OrderLine, decimal.Decimal, error) {
	if summary.Empty() && len(summary.Unavailable) == 0 {
		return nil, decimal.Zero, ErrEmptyCart
	}
	if len(summary.Unavailable) > 0 {
		return nil, decimal.Zero, &ValidationError{
			Field:   "cart",
			Message: "contains products that are no longer available: " + strings.Join(summary.Unavailable, ", "),
		}
	}

	total := decimal.Zero
	items := make([]models.OrderLine, 0, len(summary.Lines))
	for _, line := range summary.Lines {
		if line.Quantity > line.Stock {
			return nil, decimal.Zero, &ValidationError{
				Field:   "cart",
				Message: fmt.Sprintf("only %d of %s in stock", line.Stock, line.Name),
			}
		}
		unit := pricing.Convert(line.UnitPrice, currency)
		subtotal := unit.Mul(decimal.NewFromInt(int64(line.Quantity)))
		items = append(items, models.OrderLine{
			ProductID: line.ProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: unit,
			Subtotal:  subtotal,
		})
		total = total.Add(subtotal)
	}
	return items, total, nil
}

func (s *Service) pendingForKey(ctx context.Context, session, key string) (models.PendingCheckout, bool, error) {
	var orderID string
	found, err := store.GetJSON(ctx, s.mirror, session, store.IdempotencyKey(key), &orderID)
	if err != nil || !found {
		return models.PendingCheckout{}, false, err
	}

	var pending models.PendingCheckout
	found, err = store.GetJSON(ctx, s.mirror, session, store.CheckoutKey(orderID), &pending)
	if err != nil {
		return models.PendingCheckout{}, false, fmt.Errorf("load pending checkout: %w", err)
	}
	return pending, found, nil
}

type CaptureOptions struct {
	// PaymentID is the payment the client verified for this order, if the
	// provider reports one.
	PaymentID string
}

// CaptureOrder confirms payment. Only a confirmed capture clears the cart and
// writes the receipt.
func (s *Service) CaptureOrder(ctx context.Context, session, providerName, orderID string, opts CaptureOptions) (models.Receipt, error) {
	provider, err := s.provider(providerName)
	if err != nil {
		return models.Receipt{}, err
	}

	var pending models.PendingCheckout
	found, err := store.GetJSON(ctx, s.mirror, session, store.CheckoutKey(orderID), &pending)
	if err != nil {
		return models.Receipt{}, fmt.Errorf("load pending checkout: %w", err)
	}
	if !found || pending.Provider != provider.Name() {
		return models.Receipt{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}

	req := CaptureRequest{OrderID: orderID, PaymentID: strings.TrimSpace(opts.PaymentID)}
	var capture Capture
	err = retry.Do(ctx, s.policy, isTransient, func(ctx context.Context) error {
		c, err := provider.CaptureOrder(ctx, req)
		if err != nil {
			log.Printf("[checkout] WARN: %s capture attempt for %s failed: %v", provider.Name(), orderID, err)
			return err
		}
		capture = c
		return nil
	})
	if errors.Is(err, ErrCancelled) {
		log.Printf("[checkout] %s order %s cancelled by customer", provider.Name(), orderID)
		return models.Receipt{}, err
	}
	if err != nil {
		return models.Receipt{}, fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}

	receipt := models.Receipt{
		OrderID:     orderID,
		PaymentID:   capture.TransactionID,
		Provider:    provider.Name(),
		Status:      models.OrderStatusConfirmed,
		Currency:    pending.Currency,
		TotalAmount: pending.TotalAmount,
		Customer:    pending.Customer,
		Items:       pending.Items,
		CreatedAt:   s.now(),
	}

	// The payment is taken; failures below are logged, not returned.
	if err := s.cart.Clear(ctx, session); err != nil {
		log.Printf("[checkout] ERROR: order %s captured but cart not cleared: %v", orderID, err)
	}
	if err := store.PutJSON(ctx, s.mirror, session, store.KeyLastOrder, receipt); err != nil {
		log.Printf("[checkout] ERROR: order %s captured but receipt not recorded: %v", orderID, err)
	}
	s.dropPending(ctx, session, pending)

	if s.mailer != nil {
		if err := s.mailer.SendReceipt(ctx, receipt); err != nil {
			log.Printf("[checkout] WARN: receipt email for %s not sent: %v", orderID, err)
		}
	}

	log.Printf("[checkout] %s order %s captured, payment %s", provider.Name(), orderID, capture.TransactionID)
	return receipt, nil
}

// CancelOrder forgets a pending order the customer walked away from. The
// cart is left as it was.
func (s *Service) CancelOrder(ctx context.Context, session, orderID string) error {
	var pending models.PendingCheckout
	found, err := store.GetJSON(ctx, s.mirror, session, store.CheckoutKey(orderID), &pending)
	if err != nil {
		return fmt.Errorf("load pending checkout: %w", err)
	}
	if !found {
		return nil
	}
	s.dropPending(ctx, session, pending)
	log.Printf("[checkout] %s order %s cancelled", pending.Provider, orderID)
	return nil
}

func (s *Service) dropPending(ctx context.Context, session string, pending models.PendingCheckout) {
	if err := s.mirror.Delete(ctx, session, store.CheckoutKey(pending.OrderID)); err != nil {
		log.Printf("[checkout] WARN: pending checkout %s not removed: %v", pending.OrderID, err)
	}
	if pending.IdempotencyKey == "" {
		return
	}
	if err := s.mirror.Delete(ctx, session, store.IdempotencyKey(pending.IdempotencyKey)); err != nil {
		log.Printf("[checkout] WARN: idempotency key %s not removed: %v", pending.IdempotencyKey, err)
	}
}

// TakeReceipt returns the last confirmed order and removes it, so it is
// shown exactly once.
func (s *Service) TakeReceipt(ctx context.Context, session string) (models.Receipt, bool, error) {
	var receipt models.Receipt
	found, err := store.TakeJSON(ctx, s.mirror, session, store.KeyLastOrder, &receipt)
	if err != nil {
		return models.Receipt{}, false, fmt.Errorf("take receipt: %w", err)
	}
	return receipt, found, nil
}

func (s *Service) SavedCustomer(ctx context.Context, session string) (models.CustomerInfo, bool, error) {
	var c models.CustomerInfo
	found, err := store.GetJSON(ctx, s.mirror, session, store.KeySavedCustomer, &c)
	if err != nil {
		return models.CustomerInfo{}, false, fmt.Errorf("load saved customer: %w", err)
	}
	return c, found, nil
}
