package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/auth"
	"github.com/example/storefront/internal/catalog"
	"github.com/example/storefront/internal/checkout"
	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/domain/product"
	"github.com/example/storefront/internal/infrastructure/store"
)

const testJWTSecret = "test-secret-key-for-unit-tests-only-x"

type testServer struct {
	router http.Handler
	store  *store.MemoryStore
	jwt    *auth.JWTService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st := store.NewMemoryStore()
	catalogSvc := catalog.NewService(st)
	checkoutSvc := checkout.NewService(st, nil)
	jwtService := auth.NewJWTService(testJWTSecret, time.Hour)

	router := NewRouter(RouterConfig{
		Handlers:     NewHandlers(checkoutSvc, catalogSvc),
		CartHandlers: NewCartHandlers(cart.NewMemoryStorage(), cart.DefaultPricing(), catalogSvc, checkoutSvc),
		AuthHandlers: NewAuthHandlers(AdminCredentials{Username: "admin", PasswordHash: "$2a$12$unused"}, jwtService),
		JWTService:   jwtService,
	})

	return &testServer{router: router, store: st, jwt: jwtService}
}

func (ts *testServer) seedProduct(t *testing.T, id string, price int64, stock int) {
	t.Helper()
	require.NoError(t, ts.store.PutProduct(context.Background(), &product.Product{
		ID:    id,
		Name:  "Product " + id,
		Price: price,
		Stock: stock,
	}))
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) adminHeaders(t *testing.T) map[string]string {
	t.Helper()
	token, _, err := ts.jwt.GenerateToken("admin", "admin")
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPlaceOrderEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProduct(t, "p1", 1000, 10)

	rec := ts.do(t, http.MethodPost, "/orders", map[string]any{
		"customer_name": "Alice",
		"items":         []map[string]any{{"product_id": "p1", "quantity": 2}},
	}, nil)

	require.Equal(t, http.StatusCreated, rec.Code)
	o := decodeBody[order.Order](t, rec)
	assert.Equal(t, "Alice", o.CustomerName)
	assert.Equal(t, order.StatusNewRequest, o.Status)
	assert.Equal(t, int64(2000), o.Total)
}

func TestPlaceOrderEndpoint_ValidationFields(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/orders", map[string]any{
		"customer_name": "",
		"items":         []map[string]any{},
	}, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "validation failed", body["error"])
	fields, ok := body["fields"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "customer_name")
	assert.Contains(t, fields, "items")
}

func TestPlaceOrderEndpoint_InsufficientStock(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProduct(t, "p1", 1000, 1)

	rec := ts.do(t, http.MethodPost, "/orders", map[string]any{
		"customer_name": "Alice",
		"items":         []map[string]any{{"product_id": "p1", "quantity": 5}},
	}, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Contains(t, body["error"], "insufficient stock")
}

func TestPlaceOrderEndpoint_UnknownProduct(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/orders", map[string]any{
		"customer_name": "Alice",
		"items":         []map[string]any{{"product_id": "ghost", "quantity": 1}},
	}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrderEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProduct(t, "p1", 1000, 10)

	placed := decodeBody[order.Order](t, ts.do(t, http.MethodPost, "/orders", map[string]any{
		"customer_name": "Alice",
		"items":         []map[string]any{{"product_id": "p1", "quantity": 1}},
	}, nil))

	rec := ts.do(t, http.MethodGet, "/orders/"+placed.ID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[order.Order](t, rec)
	assert.Equal(t, placed.ID, got.ID)

	rec = ts.do(t, http.MethodGet, "/orders/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOrdersEndpoint_RequiresAdmin(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/orders", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/orders", nil, map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, _, err := ts.jwt.GenerateToken("viewer", "viewer")
	require.NoError(t, err)
	rec = ts.do(t, http.MethodGet, "/orders", nil, map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodGet, "/orders", nil, ts.adminHeaders(t))
	require.Equal(t, http.StatusOK, rec.Code)
	orders := decodeBody[[]order.Order](t, rec)
	assert.Empty(t, orders)
}

func TestUpdateOrderStatusEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProduct(t, "p1", 1000, 10)
	admin := ts.adminHeaders(t)

	placed := decodeBody[order.Order](t, ts.do(t, http.MethodPost, "/orders", map[string]any{
		"customer_name": "Alice",
		"items":         []map[string]any{{"product_id": "p1", "quantity": 1}},
	}, nil))

	rec := ts.do(t, http.MethodPut, "/orders/"+placed.ID+"/status",
		map[string]string{"status": "processing"}, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeBody[order.Order](t, rec)
	assert.Equal(t, order.StatusProcessing, updated.Status)

	// Skipping a step is a conflict.
	rec = ts.do(t, http.MethodPut, "/orders/"+placed.ID+"/status",
		map[string]string{"status": "shipped"}, admin)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPut, "/orders/"+placed.ID+"/status",
		map[string]string{"status": "bogus"}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPut, "/orders/missing/status",
		map[string]string{"status": "processing"}, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProductEndpoints(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.adminHeaders(t)

	rec := ts.do(t, http.MethodPost, "/products", map[string]any{
		"name":  "Widget",
		"price": 500,
		"stock": 3,
	}, admin)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[product.Product](t, rec)
	assert.NotEmpty(t, created.ID)

	rec = ts.do(t, http.MethodGet, "/products/"+created.ID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/products", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]product.Product](t, rec)
	assert.Len(t, list, 1)

	rec = ts.do(t, http.MethodGet, "/products/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/products", map[string]any{"price": 500}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/products", map[string]any{"name": "X", "price": 1}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
