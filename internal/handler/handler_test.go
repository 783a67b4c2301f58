package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-cart/internal/cartsync"
	"github.com/xenking/kart-cart/internal/domain/cart"
	"github.com/xenking/kart-cart/internal/domain/coupon"
	"github.com/xenking/kart-cart/internal/gateway"
	"github.com/xenking/kart-cart/internal/storage/snapshot"
)

func newServer(t *testing.T, c Cart, v coupon.Validator) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	New(c, v).Register(mux)
	return mux
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func newAnonymousController(t *testing.T) *cartsync.Controller {
	t.Helper()
	// Anonymous carts never call the order service.
	gw, err := gateway.New(gateway.Config{BaseURL: "http://127.0.0.1:1/api/orders/cart/"})
	require.NoError(t, err)
	ctrl, err := cartsync.New(snapshot.NewStore(snapshot.NewMemoryKV(), ""), gw)
	require.NoError(t, err)
	require.NoError(t, ctrl.Load(context.Background()))
	return ctrl
}

const addTee = `{"product":{"id":5,"name":"Tee","attributes":[{"id":1,"price":1000,"mrp":1200}]},"quantity":2}`

func TestCartFlow(t *testing.T) {
	validator := coupon.NewRepoValidator(coupon.NewStaticRepository(
		coupon.Rule{Code: "TENOFF", DiscountType: coupon.DiscountPercentage, Value: decimal.NewFromInt(10), Description: "10% off"},
	))
	srv := newServer(t, newAnonymousController(t), validator)

	w := do(t, srv, http.MethodPost, "/api/cart/items", addTee)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{
		"items": [{
			"item_id": "5", "product_id": "5",
			"variant": {"id": "1", "price": 1000, "mrp": 1200},
			"quantity": 2, "display_name": "Tee", "image_url": ""
		}],
		"item_count": 2, "total": 2000, "mrp_total": 2400, "discount": 400,
		"mode": "anonymous", "loading": false, "requires_login": true, "error": null
	}`, w.Body.String())

	w = do(t, srv, http.MethodGet, "/api/cart/items/5", "")
	assert.JSONEq(t, `{"in_cart": true, "quantity": 2}`, w.Body.String())

	w = do(t, srv, http.MethodGet, "/api/cart/summary?coupon=tenoff", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"item_count": 2, "subtotal": 2000, "mrp_total": 2400, "discount": 400,
		"coupon_code": "tenoff", "coupon_description": "10% off",
		"coupon_discount": 200, "payable": 1800
	}`, w.Body.String())

	w = do(t, srv, http.MethodGet, "/api/cart/summary?coupon=BOGUS", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"code":"invalid_coupon","message":"invalid coupon code"}`, w.Body.String())

	w = do(t, srv, http.MethodPatch, "/api/cart/items/5", `{"quantity": 5}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"item_count":5`)

	w = do(t, srv, http.MethodDelete, "/api/cart/items/5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"items":[]`)

	do(t, srv, http.MethodPost, "/api/cart/items", addTee)
	w = do(t, srv, http.MethodDelete, "/api/cart", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"item_count":0`)
}

func TestAddItem_BadRequests(t *testing.T) {
	srv := newServer(t, newAnonymousController(t), nil)

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"product":`},
		{name: "zero quantity", body: `{"product":{"id":5},"quantity":0}`},
		{name: "missing product", body: `{"quantity":1}`},
		{name: "wrong type", body: `{"product":{"id":5},"quantity":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodPost, "/api/cart/items", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"code":"invalid_request"`)
		})
	}

	w := do(t, srv, http.MethodPatch, "/api/cart/items/5", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodPut, "/api/session", `{"user_type":"customer"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// mockCart records the identity it was given and fails mutations with err.
type mockCart struct {
	view     cartsync.View
	err      error
	identity *cart.Identity
	switched bool
}

func (m *mockCart) View() cartsync.View            { return m.view }
func (m *mockCart) Items() []cart.LineItem         { return m.view.Items }
func (m *mockCart) GetCartItemQuantity(string) int { return 0 }

func (m *mockCart) RemoveFromCart(context.Context, string) error {
	return m.err
}

func (m *mockCart) UpdateQuantity(context.Context, string, int) error {
	return m.err
}

func (m *mockCart) ClearCart(context.Context) error {
	return m.err
}

func (m *mockCart) AddToCart(context.Context, cart.Product, int, *cart.Variant) error {
	return m.err
}

func (m *mockCart) SetIdentity(_ context.Context, id *cart.Identity) error {
	m.identity = id
	m.switched = true
	return m.err
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "order service rejection",
			err:        &cart.APIError{Op: "add item", Status: 400, Message: "out of stock"},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   `{"code":"order_service_rejected","message":"out of stock"}`,
		},
		{
			name:       "rejection without message",
			err:        &cart.APIError{Op: "add item", Status: 409},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   `{"code":"order_service_rejected","message":"Conflict"}`,
		},
		{
			name:       "order service down",
			err:        &cart.NetworkError{Op: "add item", Err: errors.New("dial tcp: refused")},
			wantStatus: http.StatusBadGateway,
			wantBody:   `{"code":"order_service_unavailable","message":"order service unavailable"}`,
		},
		{
			name:       "refetch failure",
			err:        errors.Wrap(&cart.NetworkError{Op: "list cart", Err: errors.New("timeout")}, "refetch cart"),
			wantStatus: http.StatusBadGateway,
			wantBody:   `{"code":"order_service_unavailable","message":"order service unavailable"}`,
		},
		{
			name:       "unexpected",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"code":"internal","message":"internal error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, &mockCart{err: tt.err}, nil)

			w := do(t, srv, http.MethodPost, "/api/cart/items", addTee)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestSession(t *testing.T) {
	m := &mockCart{view: cartsync.View{Items: []cart.LineItem{}, Mode: cart.ModeAuthenticated}}
	srv := newServer(t, m, nil)

	w := do(t, srv, http.MethodPut, "/api/session", `{"user_id": 42, "user_type": "customer", "token": "abc"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, m.identity)
	assert.Equal(t, cart.Identity{UserID: "42", UserType: "customer", Token: "abc"}, *m.identity)
	assert.Contains(t, w.Body.String(), `"mode":"authenticated"`)

	m.view.Err = errors.New("order service unavailable")
	m.switched = false
	w = do(t, srv, http.MethodDelete, "/api/session", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, m.switched)
	assert.Nil(t, m.identity)
	assert.Contains(t, w.Body.String(), `"error":"order service unavailable"`)
}

func TestAPIKeyAuth(t *testing.T) {
	pepper := []byte("pepper")
	mw, err := APIKeyAuth(pepper, HashAPIKey(pepper, "secret"))
	require.NoError(t, err)
	srv := mw(newServer(t, newAnonymousController(t), nil))

	w := do(t, srv, http.MethodGet, "/api/cart", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set(HeaderAPIKey, "wrong")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set(HeaderAPIKey, "secret")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	_, err = APIKeyAuth(pepper, "not-hex")
	require.Error(t, err)
	_, err = APIKeyAuth(pepper, "abcd")
	require.Error(t, err)
}
