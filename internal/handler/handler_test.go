package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/bookshelf/internal/domain/analytics"
	"github.com/xenking/bookshelf/internal/domain/auth"
	"github.com/xenking/bookshelf/internal/domain/book"
	"github.com/xenking/bookshelf/internal/domain/cart"
	"github.com/xenking/bookshelf/internal/domain/catalog"
	"github.com/xenking/bookshelf/internal/domain/checkout"
	"github.com/xenking/bookshelf/internal/domain/order"
	"github.com/xenking/bookshelf/internal/domain/promo"
	"github.com/xenking/bookshelf/internal/domain/session"
	"github.com/xenking/bookshelf/internal/domain/wishlist"
	"github.com/xenking/bookshelf/internal/notify"
	"github.com/xenking/bookshelf/pkg/httpmiddleware"
)

// --- Mock implementations ---

type memBooks struct {
	mu    sync.Mutex
	books []book.Book
}

func (m *memBooks) List(context.Context) ([]book.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.books), nil
}

func (m *memBooks) Get(_ context.Context, id string) (*book.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.books {
		if b.ID == id {
			return &b, nil
		}
	}
	return nil, book.ErrNotFound
}

func (m *memBooks) Create(_ context.Context, b *book.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	m.books = append(m.books, *b)
	return nil
}

func (m *memBooks) Update(_ context.Context, b *book.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.books {
		if m.books[i].ID == b.ID {
			m.books[i] = *b
			return nil
		}
	}
	return book.ErrNotFound
}

func (m *memBooks) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.books)
	m.books = slices.DeleteFunc(m.books, func(b book.Book) bool { return b.ID == id })
	if len(m.books) == n {
		return book.ErrNotFound
	}
	return nil
}

func (m *memBooks) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.books), nil
}

func (m *memBooks) SetImage(_ context.Context, id, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.books {
		if m.books[i].ID == id {
			m.books[i].ImageURL = url
			return nil
		}
	}
	return book.ErrNotFound
}

type memCombos struct {
	book.ComboRepository
	combos []book.Combo
}

func (m *memCombos) ListActive(context.Context) ([]book.Combo, error) {
	var out []book.Combo
	for _, c := range m.combos {
		if c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memCombos) Get(_ context.Context, id string) (*book.Combo, error) {
	for _, c := range m.combos {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, book.ErrNotFound
}

func (m *memCombos) Create(_ context.Context, c *book.Combo) error {
	c.ID = uuid.NewString()
	m.combos = append(m.combos, *c)
	return nil
}

func (m *memCombos) Count(context.Context) (int, error) { return len(m.combos), nil }

type memReviews struct {
	reviews []book.Review
}

func (m *memReviews) ListByBook(_ context.Context, bookID string) ([]book.Review, error) {
	var out []book.Review
	for _, r := range m.reviews {
		if r.BookID == bookID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memReviews) Upsert(_ context.Context, r *book.Review) error {
	r.ID = "rv-" + r.UserID
	r.CreatedAt = time.Now()
	m.reviews = slices.DeleteFunc(m.reviews, func(x book.Review) bool {
		return x.BookID == r.BookID && x.UserID == r.UserID
	})
	m.reviews = append(m.reviews, *r)
	return nil
}

func (m *memReviews) Delete(_ context.Context, bookID, userID string) error {
	n := len(m.reviews)
	m.reviews = slices.DeleteFunc(m.reviews, func(x book.Review) bool {
		return x.BookID == bookID && x.UserID == userID
	})
	if len(m.reviews) == n {
		return book.ErrNotFound
	}
	return nil
}

type memOrders struct {
	mu     sync.Mutex
	orders []order.Order
	err    error
}

func (m *memOrders) Create(_ context.Context, o *order.Order) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	for _, existing := range m.orders {
		if existing.SessionID == o.SessionID && existing.RequestKey == o.RequestKey {
			*o = existing
			return false, nil
		}
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	m.orders = append(m.orders, *o)
	return true, nil
}

func (m *memOrders) Get(_ context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, order.ErrNotFound
}

func (m *memOrders) List(_ context.Context, f order.Filter) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []order.Order
	for _, o := range m.orders {
		if f.UserID != "" && (o.UserID == nil || *o.UserID != f.UserID) {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (m *memOrders) UpdateStatus(_ context.Context, id string, st order.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.orders {
		if m.orders[i].ID == id {
			m.orders[i].Status = st
			return nil
		}
	}
	return order.ErrNotFound
}

func (m *memOrders) Delete(context.Context, string) error { return nil }

func (m *memOrders) Count(context.Context) (int, error) { return len(m.orders), nil }

type recordingNotifier struct {
	mu       sync.Mutex
	orders   []string
	contacts []notify.Contact
	err      error
}

func (n *recordingNotifier) OrderPlaced(_ context.Context, o *order.Order, _ []order.Item) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, o.ID)
	return n.err
}

func (n *recordingNotifier) ContactMessage(_ context.Context, c notify.Contact) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.contacts = append(n.contacts, c)
	return n.err
}

type fakeTokens map[string]*auth.Principal

func (f fakeTokens) Verify(token string) (*auth.Principal, error) {
	if p, ok := f[token]; ok {
		return p, nil
	}
	return nil, auth.ErrUnauthorized
}

type fakeKeys map[string]*auth.Principal

func (f fakeKeys) Authenticate(_ context.Context, key string) (*auth.Principal, error) {
	if p, ok := f[key]; ok {
		return p, nil
	}
	return nil, auth.ErrUnauthorized
}

type fakeCovers struct {
	got []byte
}

func (f *fakeCovers) PutCover(_ context.Context, bookID, _ string, body io.Reader, _ int64) (string, error) {
	raw, err := io.ReadAll(body)
	f.got = raw
	return "https://cdn.example.com/covers/" + bookID + ".png", err
}

// --- Helpers ---

const (
	userToken  = "user-token"
	adminToken = "admin-token"
	adminKey   = "admin-api-key"
)

type env struct {
	t        *testing.T
	srv      http.Handler
	books    *memBooks
	orders   *memOrders
	notifier *recordingNotifier
	handler  *Handler
	sid      string
}

func price(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func newEnv(t *testing.T) *env {
	t.Helper()
	mrp := price(450)
	books := &memBooks{books: []book.Book{
		{ID: "b1", Title: "Rich Dad Poor Dad", Author: "Robert Kiyosaki", Category: "Finance", Price: price(299), OriginalPrice: &mrp, InStock: true, ImageURL: "/covers/b1.jpg"},
		{ID: "b2", Title: "Atomic Habits", Author: "James Clear", Category: "Self Development", Price: price(499), InStock: true},
		{ID: "b3", Title: "The Intelligent Investor", Author: "Benjamin Graham", Category: "Finance", Price: price(650), InStock: false},
	}}
	combos := &memCombos{combos: []book.Combo{
		{ID: "c1", Title: "Money Pack", Price: price(549), BookIDs: []string{"b1", "b3"}, IsActive: true},
	}}
	orders := &memOrders{}
	notifier := &recordingNotifier{}
	store := session.NewMemoryStore()

	carts := cart.NewService(store, books, combos, 10)
	promos := promo.NewService(store, promo.DefaultTable(), nil)
	co, err := checkout.NewService(store, carts, promos, orders, notifier,
		metricnoop.NewMeterProvider(), tracenoop.NewTracerProvider())
	require.NoError(t, err)

	h := NewHandler(HandlerConfig{ImageBaseURL: "https://cdn.example.com/"}, Services{
		Catalog:   catalog.NewService(books, store, 2),
		Books:     books,
		Combos:    combos,
		Reviews:   &memReviews{},
		Carts:     carts,
		Wishlists: wishlist.NewService(store, books),
		Promos:    promos,
		Checkout:  co,
		Orders:    order.NewService(orders),
		Analytics: analytics.NewService(orders, books, combos),
		Notifier:  notifier,
	})
	mux := http.NewServeMux()
	h.Register(mux)

	sec := NewSecurityHandler(
		fakeTokens{
			userToken:  {UserID: "user-1", Email: "reader@example.com", Name: "Reader One", Via: auth.ViaToken},
			adminToken: {UserID: "admin-1", Email: "owner@example.com", Admin: true, Via: auth.ViaToken},
		},
		fakeKeys{adminKey: {UserID: "apikey:1", Admin: true, Via: auth.ViaAPIKey}},
	)
	return &env{
		t:        t,
		srv:      httpmiddleware.Wrap(mux, httpmiddleware.SessionID(httpmiddleware.SessionConfig{}), sec.Middleware()),
		books:    books,
		orders:   orders,
		notifier: notifier,
		handler:  h,
		sid:      uuid.NewString(),
	}
}

type reqOpt func(*http.Request)

func bearer(token string) reqOpt {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func header(k, v string) reqOpt {
	return func(r *http.Request) { r.Header.Set(k, v) }
}

func (e *env) do(method, path, body string, opts ...reqOpt) (*httptest.ResponseRecorder, map[string]any) {
	e.t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set(httpmiddleware.HeaderSessionID, e.sid)
	for _, o := range opts {
		o(req)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(e.t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func (e *env) toPayment() {
	e.t.Helper()
	rec, _ := e.do(http.MethodPost, "/api/cart/items", `{"productId":"b1"}`)
	require.Equal(e.t, http.StatusOK, rec.Code)
	rec, _ = e.do(http.MethodPost, "/api/checkout/next", "")
	require.Equal(e.t, http.StatusOK, rec.Code)
	rec, _ = e.do(http.MethodPut, "/api/checkout/customer",
		`{"name":"Priya Raman","phone":"98765 43210","address":"12 Park Street Area","pincode":"637001"}`)
	require.Equal(e.t, http.StatusOK, rec.Code)
	rec, body := e.do(http.MethodPost, "/api/checkout/next", "")
	require.Equal(e.t, http.StatusOK, rec.Code, body)
	require.EqualValues(e.t, 3, body["step"])
}

// --- Tests ---

func TestListBooks(t *testing.T) {
	e := newEnv(t)

	rec, body := e.do(http.MethodGet, "/api/books?category=Finance&sort=price-high", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["filteredCount"])
	items := body["items"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, "The Intelligent Investor", first["title"])
	assert.EqualValues(t, 650, first["price"])

	second := items[1].(map[string]any)
	assert.Equal(t, "https://cdn.example.com/covers/b1.jpg", second["imageUrl"])
	assert.EqualValues(t, 450, second["originalPrice"])

	rec, body = e.do(http.MethodGet, "/api/books?page=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["page"], "changing the query resets to the first page")
	assert.EqualValues(t, 2, body["totalPages"])

	rec, body = e.do(http.MethodGet, "/api/books?page=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["page"])
	assert.Len(t, body["items"], 1)
}

func TestListBooks_InvalidPrice(t *testing.T) {
	e := newEnv(t)

	rec, body := e.do(http.MethodGet, "/api/books?minPrice=cheap", "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.EqualValues(t, 400, body["code"])
	assert.Equal(t, "must be a number", body["fields"].(map[string]any)["minPrice"])
}

func TestGetBook_NotFound(t *testing.T) {
	e := newEnv(t)

	rec, body := e.do(http.MethodGet, "/api/books/nope", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, map[string]any{"code": float64(404), "message": "not found"}, body)
}

func TestCategoriesAndCombos(t *testing.T) {
	e := newEnv(t)

	rec, body := e.do(http.MethodGet, "/api/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cats := body["categories"].([]any)
	require.Len(t, cats, 2)
	assert.Equal(t, map[string]any{"name": "Finance", "count": float64(2)}, cats[0])

	rec, body = e.do(http.MethodGet, "/api/combos", "")
	require.Equal(t, http.StatusOK, rec.Code)
	combos := body["combos"].([]any)
	require.Len(t, combos, 1)
	assert.Equal(t, "combo-c1", combos[0].(map[string]any)["productId"])
}

func TestCart(t *testing.T) {
	e := newEnv(t)

	rec, body := e.do(http.MethodPost, "/api/cart/items", `{"productId":"b1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["opened"])

	rec, _ = e.do(http.MethodPost, "/api/cart/items", `{"productId":"combo-c1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = e.do(http.MethodPut, "/api/cart/items/b1", `{"quantity":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 4, body["totalItems"])
	assert.EqualValues(t, 1446, body["totalAmount"])
	assert.Nil(t, body["opened"])

	savings := body["savings"].(map[string]any)
	assert.EqualValues(t, 453, savings["amount"])

	rec, body = e.do(http.MethodDelete, "/api/cart/items/combo-c1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["items"], 1)

	rec, body = e.do(http.MethodDelete, "/api/cart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, body["totalItems"])
}

func TestCart_Errors(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{name: "unknown product", body: `{"productId":"nope"}`, code: http.StatusNotFound},
		{name: "out of stock", body: `{"productId":"b3"}`, code: http.StatusConflict},
		{name: "missing product id", body: `{}`, code: http.StatusBadRequest},
		{name: "malformed body", body: `{"productId":`, code: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := e.do(http.MethodPost, "/api/cart/items", tt.body)
			assert.Equal(t, tt.code, rec.Code)
			assert.EqualValues(t, tt.code, body["code"])
		})
	}
}

func TestPromo(t *testing.T) {
	e := newEnv(t)
	e.do(http.MethodPost, "/api/cart/items", `{"productId":"b2"}`)

	rec, body := e.do(http.MethodPost, "/api/cart/promo", `{"code":"save10"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	p := body["promo"].(map[string]any)
	assert.Equal(t, "SAVE10", p["code"])
	assert.Equal(t, true, p["applied"])
	assert.EqualValues(t, 49.9, body["discountAmount"])
	assert.EqualValues(t, 449.1, body["finalTotal"])

	rec, body = e.do(http.MethodPost, "/api/cart/promo", `{"code":"BOGUS"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	p = body["promo"].(map[string]any)
	assert.Equal(t, promo.InvalidCodeMessage, p["error"])
	assert.EqualValues(t, 0, body["discountAmount"])

	e.do(http.MethodPost, "/api/cart/promo", `{"code":"BOOKS20"}`)
	rec, body = e.do(http.MethodDelete, "/api/cart/promo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["promo"].(map[string]any)["applied"])
}

func TestWishlist(t *testing.T) {
	e := newEnv(t)

	rec, body := e.do(http.MethodPost, "/api/wishlist", `{"productId":"b2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])

	e.do(http.MethodPost, "/api/wishlist", `{"productId":"b2"}`)
	_, body = e.do(http.MethodGet, "/api/wishlist", "")
	assert.EqualValues(t, 1, body["count"])

	_, body = e.do(http.MethodGet, "/api/wishlist/b2", "")
	assert.Equal(t, true, body["wishlisted"])

	_, body = e.do(http.MethodDelete, "/api/wishlist/b2", "")
	assert.EqualValues(t, 0, body["count"])

	rec, _ = e.do(http.MethodPost, "/api/wishlist", `{"productId":"nope"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckout_Flow(t *testing.T) {
	e := newEnv(t)

	rec, body := e.do(http.MethodPost, "/api/checkout/next", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "cart is empty", body["message"])

	rec, _ = e.do(http.MethodPost, "/api/checkout/submit", "")
	require.Equal(t, http.StatusConflict, rec.Code)

	e.do(http.MethodPost, "/api/cart/items", `{"productId":"b1"}`)
	rec, body = e.do(http.MethodPost, "/api/checkout/next", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["step"])
	customer := body["customer"].(map[string]any)
	assert.Equal(t, checkout.DefaultCity, customer["city"])

	rec, _ = e.do(http.MethodPost, "/api/checkout/step/3", "")
	require.Equal(t, http.StatusConflict, rec.Code)

	e.do(http.MethodPut, "/api/checkout/customer", `{"name":"P","phone":"123","address":"short","pincode":"12"}`)
	rec, body = e.do(http.MethodPost, "/api/checkout/next", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "name", body["first"])
	assert.Equal(t, "Name must be at least 2 characters", body["message"])
	fields := body["fields"].(map[string]any)
	assert.Equal(t, "Enter a valid 10-digit Indian mobile number", fields["phone"])
	assert.Equal(t, "Pincode must be exactly 6 digits", fields["pincode"])

	// Errors survive a reload.
	_, body = e.do(http.MethodGet, "/api/checkout", "")
	assert.EqualValues(t, 2, body["step"])
	assert.Contains(t, body["errors"].(map[string]any), "name")

	rec, _ = e.do(http.MethodPost, "/api/checkout/step/9", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckout_Submit(t *testing.T) {
	e := newEnv(t)
	e.toPayment()

	rec, body := e.do(http.MethodPost, "/api/checkout/submit", "", bearer(userToken), header(HeaderIdempotencyKey, "key-1"))
	require.Equal(t, http.StatusCreated, rec.Code, body)
	assert.NotEmpty(t, body["reference"])
	assert.EqualValues(t, 299, body["total"])
	orderID := body["orderId"].(string)

	require.Len(t, e.orders.orders, 1)
	o := e.orders.orders[0]
	assert.Equal(t, "key-1", o.RequestKey)
	assert.Equal(t, "12 Park Street Area, Namakkal, Tamil Nadu - 637001", o.Address)
	require.NotNil(t, o.UserID)
	assert.Equal(t, "user-1", *o.UserID)
	assert.Equal(t, []string{orderID}, e.notifier.orders)

	_, body = e.do(http.MethodGet, "/api/cart", "")
	assert.EqualValues(t, 0, body["totalItems"], "cart is cleared")
	_, body = e.do(http.MethodGet, "/api/checkout", "")
	assert.EqualValues(t, 1, body["step"], "draft is reset")

	// A retry after a lost response replays the stored order.
	e.toPayment()
	rec, body = e.do(http.MethodPost, "/api/checkout/submit", "", header(HeaderIdempotencyKey, "key-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orderID, body["orderId"])
	assert.Equal(t, true, body["replayed"])
	assert.Len(t, e.orders.orders, 1)

	// Another session reusing the key places its own order.
	e.sid = uuid.NewString()
	e.toPayment()
	rec, body = e.do(http.MethodPost, "/api/checkout/submit", "", header(HeaderIdempotencyKey, "key-1"))
	require.Equal(t, http.StatusCreated, rec.Code, body)
	assert.NotEqual(t, orderID, body["orderId"])
	assert.Equal(t, false, body["replayed"])
	assert.Len(t, e.orders.orders, 2)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		ok   bool
	}{
		{name: "not found", err: book.ErrNotFound, code: http.StatusNotFound, ok: true},
		{name: "request key conflict", err: checkout.ErrRequestKeyConflict, code: http.StatusConflict, ok: true},
		{name: "order failed", err: checkout.ErrOrderFailed, code: http.StatusInternalServerError},
		{name: "unknown", err: errors.New("boom"), code: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := mapError(tt.err)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestCheckout_SubmitFailureKeepsCart(t *testing.T) {
	e := newEnv(t)
	e.toPayment()
	e.orders.err = errors.New("connection reset")

	rec, body := e.do(http.MethodPost, "/api/checkout/submit", "")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, checkout.OrderFailedMessage, body["message"])
	_, body = e.do(http.MethodGet, "/api/cart", "")
	assert.EqualValues(t, 1, body["totalItems"])
	_, body = e.do(http.MethodGet, "/api/checkout", "")
	assert.EqualValues(t, 3, body["step"])
}

func TestAccountOrders(t *testing.T) {
	e := newEnv(t)
	e.toPayment()
	_, body := e.do(http.MethodPost, "/api/checkout/submit", "", bearer(userToken))
	orderID := body["orderId"].(string)

	rec, _ := e.do(http.MethodGet, "/api/account/orders", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body = e.do(http.MethodGet, "/api/account/orders", "", bearer(userToken))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])

	rec, _ = e.do(http.MethodPost, "/api/account/orders/"+orderID+"/cancel", "", bearer(adminToken))
	assert.Equal(t, http.StatusNotFound, rec.Code, "other users cannot see the order")

	rec, body = e.do(http.MethodPost, "/api/account/orders/"+orderID+"/cancel", "", bearer(userToken))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Cancelled", body["status"])

	rec, _ = e.do(http.MethodPost, "/api/account/orders/"+orderID+"/cancel", "", bearer(userToken))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReviews(t *testing.T) {
	e := newEnv(t)

	rec, _ := e.do(http.MethodPost, "/api/books/b1/reviews", `{"rating":5}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body := e.do(http.MethodPost, "/api/books/b1/reviews", `{"rating":6}`, bearer(userToken))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "rating", body["first"])

	rec, body = e.do(http.MethodPost, "/api/books/b1/reviews", `{"rating":4,"comment":" Solid "}`, bearer(userToken))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Reader One", body["userName"])
	assert.Equal(t, "Solid", body["comment"])

	_, body = e.do(http.MethodGet, "/api/books/b1/reviews", "")
	assert.EqualValues(t, 1, body["count"])

	rec, _ = e.do(http.MethodDelete, "/api/books/b1/reviews", "", bearer(userToken))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = e.do(http.MethodDelete, "/api/books/b1/reviews", "", bearer(userToken))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContact(t *testing.T) {
	e := newEnv(t)

	rec, body := e.do(http.MethodPost, "/api/contact", `{"name":"Arun","email":"arun@example.com","message":"Do you ship to Salem?"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "received", body["status"])
	require.Len(t, e.notifier.contacts, 1)

	e.notifier.err = errors.New("smtp down")
	rec, _ = e.do(http.MethodPost, "/api/contact", `{"name":"Arun","email":"arun@example.com","message":"Hello"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code, "delivery is best effort")

	rec, body = e.do(http.MethodPost, "/api/contact", `{"name":"Arun","email":"nope","message":"Hello"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["fields"].(map[string]any), "email")
}

func TestAdmin_Access(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name string
		opts []reqOpt
		code int
	}{
		{name: "anonymous", code: http.StatusUnauthorized},
		{name: "invalid token", opts: []reqOpt{bearer("forged")}, code: http.StatusUnauthorized},
		{name: "malformed authorization", opts: []reqOpt{header("Authorization", "Basic abc")}, code: http.StatusUnauthorized},
		{name: "regular user", opts: []reqOpt{bearer(userToken)}, code: http.StatusForbidden},
		{name: "admin token", opts: []reqOpt{bearer(adminToken)}, code: http.StatusOK},
		{name: "admin api key", opts: []reqOpt{header(HeaderAPIKey, adminKey)}, code: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := e.do(http.MethodGet, "/api/admin/dashboard", "", tt.opts...)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestAdmin_Orders(t *testing.T) {
	e := newEnv(t)
	e.toPayment()
	_, body := e.do(http.MethodPost, "/api/checkout/submit", "")
	orderID := body["orderId"].(string)
	admin := bearer(adminToken)

	rec, body := e.do(http.MethodGet, "/api/admin/orders?status=All", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])

	rec, _ = e.do(http.MethodGet, "/api/admin/orders?status=Lost", "", admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = e.do(http.MethodPatch, "/api/admin/orders/"+orderID, `{"status":"Delivered"}`, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Delivered", body["status"])
	assert.Equal(t, false, body["cancelable"])

	rec, body = e.do(http.MethodGet, "/api/admin/analytics?range=month", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "month", body["range"])
	assert.EqualValues(t, 299, body["totalRevenue"])

	rec, body = e.do(http.MethodGet, "/api/admin/customers?q=priya", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	customers := body["customers"].([]any)
	require.Len(t, customers, 1)
	assert.Equal(t, "9876543210", customers[0].(map[string]any)["phone"])

	rec, body = e.do(http.MethodGet, "/api/admin/dashboard", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, body["totalBooks"])
	assert.EqualValues(t, 1, body["totalOrders"])
}

func TestAdmin_Books(t *testing.T) {
	e := newEnv(t)
	admin := bearer(adminToken)

	rec, body := e.do(http.MethodPost, "/api/admin/books", `{"title":"Ikigai","author":"Hector Garcia","category":"Self Development","price":"350"}`, admin)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := body["id"].(string)
	assert.Equal(t, true, body["inStock"])

	rec, body = e.do(http.MethodPost, "/api/admin/books", `{"title":"Free","author":"Nobody","price":0}`, admin)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "must be greater than 0", body["fields"].(map[string]any)["price"])

	rec, body = e.do(http.MethodPut, "/api/admin/books/"+id, `{"inStock":false,"originalPrice":499}`, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["inStock"])
	assert.Equal(t, "Ikigai", body["title"])
	assert.EqualValues(t, 499, body["originalPrice"])

	rec, _ = e.do(http.MethodDelete, "/api/admin/books/"+id, "", admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = e.do(http.MethodDelete, "/api/admin/books/"+id, "", admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = e.do(http.MethodPost, "/api/admin/combos", `{"title":"Habit Pack","price":699,"bookIds":[]}`, admin)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "book_ids", body["first"])
	assert.Equal(t, "select at least one book", body["fields"].(map[string]any)["book_ids"])
}

func coverRequest(t *testing.T, contentType string, data []byte) (string, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="cover"; filename="cover.png"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf.String(), mw.FormDataContentType()
}

func TestAdmin_UploadCover(t *testing.T) {
	e := newEnv(t)
	admin := bearer(adminToken)

	body, ct := coverRequest(t, "image/png", []byte("\x89PNG fake"))
	rec, _ := e.do(http.MethodPut, "/api/admin/books/b2/cover", body, admin, header("Content-Type", ct))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	covers := &fakeCovers{}
	e.handler.Covers = covers

	rec, out := e.do(http.MethodPut, "/api/admin/books/b2/cover", body, admin, header("Content-Type", ct))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://cdn.example.com/covers/b2.png", out["imageUrl"])
	assert.Equal(t, []byte("\x89PNG fake"), covers.got)
	stored, err := e.books.Get(context.Background(), "b2")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/covers/b2.png", stored.ImageURL)

	body, ct = coverRequest(t, "application/pdf", []byte("%PDF"))
	rec, out = e.do(http.MethodPut, "/api/admin/books/b2/cover", body, admin, header("Content-Type", ct))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, out["fields"].(map[string]any), "cover")
}

func TestImageURL(t *testing.T) {
	h := NewHandler(HandlerConfig{ImageBaseURL: "https://cdn.example.com/img/"}, Services{})
	assert.Equal(t, "https://cdn.example.com/img/a.jpg", h.imageURL("/a.jpg"))
	assert.Equal(t, "https://other.example/a.jpg", h.imageURL("https://other.example/a.jpg"))
	assert.Empty(t, h.imageURL(""))
	assert.Equal(t, "a.jpg", NewHandler(HandlerConfig{}, Services{}).imageURL("a.jpg"))
}
