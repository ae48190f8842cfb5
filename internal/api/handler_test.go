package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pharmastore/m/domain"
	"pharmastore/m/internal/ai"
	"pharmastore/m/internal/auth"
	"pharmastore/m/internal/checkout"
	"pharmastore/m/internal/database"
	"pharmastore/m/internal/feed"
	"pharmastore/m/internal/loyalty"
	"pharmastore/m/internal/metrics"
	"pharmastore/m/internal/migrations"
	"pharmastore/m/internal/pricing"
	"pharmastore/m/internal/store"
)

type testAPI struct {
	router http.Handler
	store  *store.Store
	tokens *auth.Tokens
}

func newTestAPI(t *testing.T) testAPI {
	t.Helper()
	db, err := database.Connect("sqlite", ":memory:", 1)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))

	broker := feed.NewMemoryBroker()
	t.Cleanup(func() { broker.Close() })
	m := metrics.New("test")
	st := store.New(db, broker, m, zap.NewNop())
	tokens := auth.NewTokens("test-secret", time.Hour)

	calc := pricing.Calculator{DeliveryFee: decimal.NewFromInt(1), RedemptionValue: decimal.NewFromInt(5)}
	policy := loyalty.Policy{Threshold: 80}
	h := New(Deps{
		Store:     st,
		Auth:      auth.NewService(st, tokens),
		Checkout:  checkout.NewService(st, calc, policy, m, "+58 414 000 0000"),
		Assistant: ai.NewAssistant(nil, st, m),
		Feed:      broker,
		Metrics:   m,
	})
	return testAPI{router: h.Router(), store: st, tokens: tokens}
}

func (a testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a testAPI) userToken(t *testing.T, email string, role domain.Role) (domain.User, string) {
	t.Helper()
	u, err := a.store.CreateUser(context.Background(), domain.User{DisplayName: email, Email: email, Role: role})
	require.NoError(t, err)
	token, err := a.tokens.Issue(u)
	require.NoError(t, err)
	return u, token
}

func (a testAPI) product(t *testing.T, name string, stock int) domain.Product {
	t.Helper()
	p, err := a.store.CreateProduct(context.Background(), domain.Product{
		Name:     name,
		Category: "Analgesicos",
		Price:    decimal.NewFromInt(5),
		Stock:    stock,
	})
	require.NoError(t, err)
	return p
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRegisterLoginAndProfile(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"display_name": "Ana", "email": "ana@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@example.com", "password": "wrong!"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	session := decode[auth.Session](t, rec)
	assert.Equal(t, domain.RoleUser, session.User.Role)

	rec = a.do(t, http.MethodPut, "/api/me", session.Token, map[string]string{"phone": "0414-555"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	me := decode[domain.User](t, rec)
	require.NotNil(t, me.Phone)
	assert.Equal(t, "0414-555", *me.Phone)

	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodGet, "/api/me", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodGet, "/api/products", "garbage", nil).Code)
}

func TestPlaceOrderDecrementsStock(t *testing.T) {
	a := newTestAPI(t)
	p := a.product(t, "Paracetamol", 5)

	order := map[string]any{
		"customer":       map[string]string{"name": "Luis", "phone": "04141112233", "address": "Av. Bolivar"},
		"lines":          []map[string]any{{"product_id": p.ID, "quantity": 2, "unit": "UNIT"}},
		"payment_method": "TRANSFER",
	}
	rec := a.do(t, http.MethodPost, "/api/orders", "", order)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[checkout.Result](t, rec)
	assert.Equal(t, "11", res.Order.Total.String())
	assert.Equal(t, domain.StatusPending, res.Order.Status)
	assert.True(t, strings.HasPrefix(res.WhatsAppURL, "https://wa.me/584140000000?text="))

	got, err := a.store.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)

	order["lines"] = []map[string]any{{"product_id": p.ID, "quantity": 4, "unit": "UNIT"}}
	rec = a.do(t, http.MethodPost, "/api/orders", "", order)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/orders", "", map[string]any{"customer": map[string]string{"name": "x"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuote(t *testing.T) {
	a := newTestAPI(t)
	p := a.product(t, "Paracetamol", 5)

	rec := a.do(t, http.MethodPost, "/api/cart/quote", "", map[string]any{
		"lines":    []map[string]any{{"product_id": p.ID, "quantity": 3, "unit": "UNIT"}},
		"delivery": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	quote := decode[checkout.Quote](t, rec)
	assert.Equal(t, "15", quote.Subtotal.String())
	assert.Equal(t, "16", quote.Total.String())
	assert.Equal(t, map[string]int{p.ID: 2}, quote.Available)
}

func TestOversizedQuantityIsRejected(t *testing.T) {
	a := newTestAPI(t)
	p := a.product(t, "Paracetamol", 5)

	order := func(qty int, unit string) map[string]any {
		return map[string]any{
			"customer":       map[string]string{"name": "Luis", "phone": "0414", "address": "Centro"},
			"lines":          []map[string]any{{"product_id": p.ID, "quantity": qty, "unit": unit}},
			"payment_method": "CASH",
		}
	}
	for _, qty := range []int{math.MaxInt/10 + 1, math.MaxInt, domain.MaxQuantity + 1} {
		for _, unit := range []string{"UNIT", "BOX"} {
			rec := a.do(t, http.MethodPost, "/api/orders", "", order(qty, unit))
			assert.Equal(t, http.StatusBadRequest, rec.Code, "%d %s: %s", qty, unit, rec.Body.String())
		}
	}
	rec := a.do(t, http.MethodPost, "/api/orders", "", order(domain.MaxQuantity, "UNIT"))
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	products := decode[[]domain.Product](t, rec)
	require.Len(t, products, 1)
	assert.Equal(t, 5, products[0].Stock)
}

func TestStaffAdvancesOrder(t *testing.T) {
	a := newTestAPI(t)
	p := a.product(t, "Paracetamol", 5)
	_, customerToken := a.userToken(t, "cliente@example.com", domain.RoleUser)
	_, driverToken := a.userToken(t, "driver@example.com", domain.RoleDriver)

	rec := a.do(t, http.MethodPost, "/api/orders", customerToken, map[string]any{
		"customer":       map[string]string{"name": "Luis", "phone": "0414", "address": "Centro"},
		"lines":          []map[string]any{{"product_id": p.ID, "quantity": 1, "unit": "UNIT"}},
		"payment_method": "CASH",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[checkout.Result](t, rec).Order.ID

	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodGet, "/api/orders", customerToken, nil).Code)

	rec = a.do(t, http.MethodGet, "/api/orders?status=pending", driverToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Order](t, rec), 1)

	rec = a.do(t, http.MethodPost, "/api/orders/"+id+"/advance", driverToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.StatusInTransit, decode[domain.Order](t, rec).Status)

	rec = a.do(t, http.MethodPost, "/api/orders/"+id+"/advance", driverToken, map[string]string{"status": "PENDING"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/orders/"+id+"/advance", driverToken, map[string]string{"status": "DELIVERED"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/orders/"+id+"/advance", driverToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/me/orders", customerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decode[[]domain.Order](t, rec)
	require.Len(t, mine, 1)
	assert.Equal(t, domain.StatusDelivered, mine[0].Status)
}

func TestAdminCollections(t *testing.T) {
	a := newTestAPI(t)
	_, adminToken := a.userToken(t, "admin@example.com", domain.RoleAdmin)
	_, cashierToken := a.userToken(t, "caja@example.com", domain.RoleCashier)

	rec := a.do(t, http.MethodPost, "/api/admin/categories", cashierToken, map[string]string{"name": "Vitaminas"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/admin/categories", adminToken, map[string]string{"name": "Vitaminas"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cat := decode[domain.Category](t, rec)

	rec = a.do(t, http.MethodPut, "/api/admin/categories/"+cat.ID, adminToken, map[string]string{"name": "Suplementos"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/api/categories", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cats := decode[[]domain.Category](t, rec)
	require.Len(t, cats, 1)
	assert.Equal(t, "Suplementos", cats[0].Name)

	assert.Equal(t, http.StatusNoContent, a.do(t, http.MethodDelete, "/api/admin/categories/"+cat.ID, adminToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodDelete, "/api/admin/categories/"+cat.ID, adminToken, nil).Code)
}

func TestProductSearchIsRecorded(t *testing.T) {
	a := newTestAPI(t)
	_, adminToken := a.userToken(t, "admin@example.com", domain.RoleAdmin)
	a.product(t, "Paracetamol", 5)
	a.product(t, "Ibuprofeno", 0)

	rec := a.do(t, http.MethodGet, "/api/products?q=Paracetamol", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Product](t, rec), 1)

	rec = a.do(t, http.MethodGet, "/api/products?in_stock=true", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Product](t, rec), 1)

	rec = a.do(t, http.MethodGet, "/api/admin/searches/top", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	terms := decode[[]domain.SearchLog](t, rec)
	require.Len(t, terms, 1)
	assert.Equal(t, "paracetamol", terms[0].Term)
}

func TestFamilyMembersAreScopedToCaller(t *testing.T) {
	a := newTestAPI(t)
	_, ana := a.userToken(t, "ana@example.com", domain.RoleUser)
	_, beto := a.userToken(t, "beto@example.com", domain.RoleUser)

	rec := a.do(t, http.MethodPost, "/api/me/family/", ana, map[string]string{"name": "Rosa", "relationship": "madre"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	member := decode[domain.FamilyMember](t, rec)

	rec = a.do(t, http.MethodGet, "/api/me/family/", beto, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]domain.FamilyMember](t, rec))

	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodDelete, "/api/me/family/"+member.ID, beto, nil).Code)
	assert.Equal(t, http.StatusNoContent, a.do(t, http.MethodDelete, "/api/me/family/"+member.ID, ana, nil).Code)
}

func TestChatFallsBackWithoutModel(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(t, http.MethodPost, "/api/ai/chat", "", map[string]string{"message": "hola"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[ai.Answer](t, rec).Fallback)

	rec = a.do(t, http.MethodPost, "/api/ai/chat", "", map[string]string{"message": " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreamAccess(t *testing.T) {
	a := newTestAPI(t)
	_, userToken := a.userToken(t, "ana@example.com", domain.RoleUser)

	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/api/stream/nope", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodGet, "/api/stream/users", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodGet, "/api/stream/orders", userToken, nil).Code)
}

func TestStreamDeliversProductChanges(t *testing.T) {
	a := newTestAPI(t)
	srv := httptest.NewServer(a.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/stream/products", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	p := a.product(t, "Loratadina", 7)

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev feed.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		assert.Equal(t, feed.OpAdded, ev.Op)
		assert.Equal(t, p.ID, ev.ID)
		return
	}
	t.Fatalf("stream ended without an event: %v", scanner.Err())
}
