package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safar/go-storefront/internal/auth"
	"github.com/safar/go-storefront/internal/cart"
	"github.com/safar/go-storefront/internal/catalog"
	"github.com/safar/go-storefront/internal/checkout"
	"github.com/safar/go-storefront/internal/docstore/memory"
	"github.com/safar/go-storefront/internal/media"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/payment/razorpay"
	"github.com/safar/go-storefront/internal/pricing"
	"github.com/safar/go-storefront/internal/retry"
	"github.com/safar/go-storefront/internal/store"
	"github.com/safar/go-storefront/internal/tombstone"
)

type stubVerifier map[string]auth.Principal

func (s stubVerifier) Verify(_ context.Context, token string) (auth.Principal, error) {
	p, ok := s[token]
	if !ok {
		return auth.Principal{}, auth.ErrInvalidToken
	}
	return p, nil
}

type stubProvider struct {
	next     int
	captured []checkout.CaptureRequest
}

func (p *stubProvider) Name() string { return "fakepay" }

func (p *stubProvider) CreateOrder(_ context.Context, _ checkout.OrderRequest) (string, error) {
	p.next++
	return fmt.Sprintf("ORDER-%d", p.next), nil
}

func (p *stubProvider) CaptureOrder(_ context.Context, req checkout.CaptureRequest) (checkout.Capture, error) {
	p.captured = append(p.captured, req)
	id := req.PaymentID
	if id == "" {
		id = "TX-" + req.OrderID
	}
	return checkout.Capture{TransactionID: id, Status: "COMPLETED"}, nil
}

type stubSignatures struct{}

func (stubSignatures) VerifySignature(_, _, signature string) error {
	if signature != "good" {
		return razorpay.ErrInvalidSignature
	}
	return nil
}

type testServer struct {
	handler  http.Handler
	docs     *memory.Store
	api      *api
	provider *stubProvider
}

func newTestServer(t *testing.T) testServer {
	t.Helper()

	docs := memory.New(
		models.Product{ID: "p1", Name: "Kettle", Price: decimal.NewFromInt(10), Stock: 5, Category: models.CategoryHome},
		models.Product{ID: "p2", Name: "Mug", Price: decimal.RequireFromString("2.50"), Stock: 10, Category: models.CategoryHome},
	)
	mirror := store.NewMemoryMirror()
	reconciler := catalog.NewReconciler(docs, tombstone.NewTracker(mirror, docs), mirror, catalog.Options{})
	carts := cart.NewManager(mirror, reconciler)
	provider := &stubProvider{}

	a := &api{
		catalog:  reconciler,
		carts:    carts,
		wishlist: cart.NewWishlist(mirror, reconciler),
		locales:  pricing.NewLocales(mirror),
		checkout: checkout.NewService(carts, mirror, checkout.Options{
			Retry: retry.Policy{MaxRetries: 0},
		}, provider),
		media:      media.NewResolver(nil, 0),
		signatures: map[string]signatureVerifier{},
	}

	handler := newRouter(a, routerOptions{
		AllowedOrigins: []string{"http://localhost:5173"},
		Verifier: stubVerifier{
			"admin-token":   {UserID: "u-admin", Name: "Ada", Admin: true},
			"shopper-token": {UserID: "u-1", Name: "Sam", Email: "sam@example.com"},
		},
	})
	return testServer{handler: handler, docs: docs, api: a, provider: provider}
}

func (s testServer) do(t *testing.T, method, path, session, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set(sessionHeader, session)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

var validCustomer = models.CustomerInfo{
	FullName: "Sam Lee",
	Email:    "sam@example.com",
	Phone:    "+1 555 0100",
	Address:  "1 Main St",
	City:     "Springfield",
	State:    "IL",
	ZipCode:  "62701",
	Country:  "US",
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/healthz", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionCookieIssued(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/cart", "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	sid := rec.Header().Get(sessionHeader)
	_, err := uuid.Parse(sid)
	require.NoError(t, err)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookie, cookies[0].Name)
	assert.Equal(t, sid, cookies[0].Value)

	session := uuid.NewString()
	rec = s.do(t, http.MethodGet, "/cart", session, "", nil)
	assert.Equal(t, session, rec.Header().Get(sessionHeader))
	assert.Empty(t, rec.Result().Cookies())
}

func TestListProductsFormatsForLocale(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/products?q=kettle", uuid.NewString(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(catalogDegradedHeader))

	page := decodeBody(t, rec)
	items := page["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "$10.00", items[0].(map[string]interface{})["display_price"])

	req := httptest.NewRequest(http.MethodGet, "/products/p1", nil)
	req.Header.Set(sessionHeader, uuid.NewString())
	req.Header.Set("X-Country", "GB")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "£7.90", decodeBody(t, rec)["display_price"])
}

func TestListProductsCursor(t *testing.T) {
	s := newTestServer(t)
	session := uuid.NewString()

	rec := s.do(t, http.MethodGet, "/products?cursor=&page_size=1", session, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decodeBody(t, rec)
	assert.Equal(t, true, first["has_more"])

	next := first["next_cursor"].(string)
	rec = s.do(t, http.MethodGet, "/products?page_size=1&cursor="+next, session, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decodeBody(t, rec)["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "p2", items[0].(map[string]interface{})["id"])

	rec = s.do(t, http.MethodGet, "/products?cursor=not-base64!", session, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListProductsPagePastEnd(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/products?page=4611686018427387904", uuid.NewString(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Empty(t, body["items"])
	assert.Equal(t, float64(2), body["total"])
}

func TestCatalogDegradedHeader(t *testing.T) {
	s := newTestServer(t)
	s.docs.SetFailure(func(m *memory.Store) { m.FailReads = true })

	rec := s.do(t, http.MethodGet, "/products", uuid.NewString(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get(catalogDegradedHeader))
	assert.Equal(t, float64(0), decodeBody(t, rec)["total"])
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	product := map[string]interface{}{"name": "Lamp", "price": "30", "stock": 3, "category": "home"}

	rec := s.do(t, http.MethodPut, "/admin/products", "", "", product)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPut, "/admin/products", "", "shopper-token", product)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, "/admin/products", "", "bogus", product)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminSaveAndDelete(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPut, "/admin/products", "", "admin-token",
		map[string]interface{}{"name": "Lamp", "price": "30", "stock": 3, "category": "home"})
	require.Equal(t, http.StatusOK, rec.Code)
	id := decodeBody(t, rec)["id"].(string)
	assert.NotEmpty(t, id)

	rec = s.do(t, http.MethodPut, "/admin/products", "", "admin-token",
		map[string]interface{}{"name": "Broken", "price": "-1", "stock": 3, "category": "home"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, "/admin/products/"+id, "", "admin-token", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/products/"+id, uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.True(t, s.docs.HasTombstone(id))
}

func TestAdminSaveStoreFailureIsRetryable(t *testing.T) {
	s := newTestServer(t)
	s.docs.SetFailure(func(m *memory.Store) { m.FailWrites = true })

	rec := s.do(t, http.MethodPut, "/admin/products", "", "admin-token",
		map[string]interface{}{"name": "Lamp", "price": "30", "stock": 3, "category": "home"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRefreshCatalog(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/admin/catalog/refresh", "", "admin-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["nothing_to_add"])
}

func TestReviewRequiresSignIn(t *testing.T) {
	s := newTestServer(t)
	review := map[string]interface{}{"rating": 5, "comment": "great"}

	rec := s.do(t, http.MethodPost, "/products/p1/reviews", "", "", review)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/products/p1/reviews", "", "shopper-token", review)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Sam", decodeBody(t, rec)["user_name"])

	rec = s.do(t, http.MethodPost, "/products/nope/reviews", "", "shopper-token", review)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartEndpoints(t *testing.T) {
	s := newTestServer(t)
	session := uuid.NewString()

	rec := s.do(t, http.MethodPost, "/cart/items", session, "", map[string]interface{}{"product_id": "p1", "quantity": 9})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(5), body["total_items"])
	assert.Equal(t, "$50.00", body["display_total"])

	rec = s.do(t, http.MethodPut, "/cart/items/p1", session, "", map[string]interface{}{"quantity": 6})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/cart/items", session, "", map[string]interface{}{"product_id": "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/cart/items/p2", session, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPut, "/cart/items/p1", session, "", map[string]interface{}{"quantity": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decodeBody(t, rec)["total_items"])
}

func TestWishlistAndLocale(t *testing.T) {
	s := newTestServer(t)
	session := uuid.NewString()

	rec := s.do(t, http.MethodPut, "/wishlist/p2", session, "", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodPut, "/wishlist/ghost", session, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPut, "/locale", session, "", map[string]string{"currency": "eur"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "EUR", decodeBody(t, rec)["currency"])

	rec = s.do(t, http.MethodPut, "/locale", session, "", map[string]string{"currency": "XYZ"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/wishlist", session, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var views []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "€2.30", views[0]["display_price"])
}

func TestCheckoutFlow(t *testing.T) {
	s := newTestServer(t)
	session := uuid.NewString()

	rec := s.do(t, http.MethodPost, "/checkout/fakepay/orders", session, "", map[string]interface{}{"customer": validCustomer})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/cart/items", session, "", map[string]interface{}{"product_id": "p1", "quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/checkout/nopay/orders", session, "", map[string]interface{}{"customer": validCustomer})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/checkout/fakepay/orders", session, "", map[string]interface{}{
		"customer": models.CustomerInfo{FullName: "Sam"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/checkout/fakepay/orders", session, "", map[string]interface{}{
		"customer":          validCustomer,
		"remember_customer": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	orderID := decodeBody(t, rec)["order_id"].(string)

	rec = s.do(t, http.MethodPost, "/checkout/fakepay/orders/"+orderID+"/capture", uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/checkout/fakepay/orders/"+orderID+"/capture", session, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "TX-"+orderID, decodeBody(t, rec)["payment_id"])

	rec = s.do(t, http.MethodGet, "/cart", session, "", nil)
	assert.Equal(t, float64(0), decodeBody(t, rec)["total_items"])

	rec = s.do(t, http.MethodGet, "/checkout/receipt", session, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orderID, decodeBody(t, rec)["order_id"])

	rec = s.do(t, http.MethodGet, "/checkout/receipt", session, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/checkout/customer", session, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Sam Lee", decodeBody(t, rec)["full_name"])
}

func TestCaptureChecksSignature(t *testing.T) {
	s := newTestServer(t)
	s.api.signatures["fakepay"] = stubSignatures{}
	session := uuid.NewString()

	s.do(t, http.MethodPost, "/cart/items", session, "", map[string]interface{}{"product_id": "p2", "quantity": 1})
	rec := s.do(t, http.MethodPost, "/checkout/fakepay/orders", session, "", map[string]interface{}{"customer": validCustomer})
	require.Equal(t, http.StatusCreated, rec.Code)
	orderID := decodeBody(t, rec)["order_id"].(string)

	rec = s.do(t, http.MethodPost, "/checkout/fakepay/orders/"+orderID+"/capture", session, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/checkout/fakepay/orders/"+orderID+"/capture", session, "",
		map[string]string{"payment_id": "pay_1", "signature": "bad"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/cart", session, "", nil)
	assert.Equal(t, float64(1), decodeBody(t, rec)["total_items"])

	rec = s.do(t, http.MethodPost, "/checkout/fakepay/orders/"+orderID+"/capture", session, "",
		map[string]string{"payment_id": "pay_1", "signature": "good"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pay_1", decodeBody(t, rec)["payment_id"])
	require.Len(t, s.provider.captured, 1, "unverified attempts never reach the provider")
	assert.Equal(t, checkout.CaptureRequest{OrderID: orderID, PaymentID: "pay_1"}, s.provider.captured[0])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&catalog.ValidationError{Field: "name", Message: "required"}, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", cart.ErrOutOfStock), http.StatusConflict},
		{checkout.ErrCancelled, http.StatusConflict},
		{fmt.Errorf("%w: boom", checkout.ErrProviderUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("%w: boom", checkout.ErrCaptureFailed), http.StatusBadGateway},
		{catalog.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("%w: %w", checkout.ErrCaptureFailed, razorpay.ErrPaymentMismatch), http.StatusBadRequest},
		{errors.New("mystery"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
