package cart

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/bookshelf/internal/domain/book"
	"github.com/xenking/bookshelf/internal/domain/session"
)

// --- Mock implementations ---

type mockBookRepo struct {
	book.Repository
	byID map[string]*book.Book
	err  error
}

func (m *mockBookRepo) Get(_ context.Context, id string) (*book.Book, error) {
	if m.err != nil {
		return nil, m.err
	}
	b, ok := m.byID[id]
	if !ok {
		return nil, book.ErrNotFound
	}
	return b, nil
}

type mockComboRepo struct {
	book.ComboRepository
	byID map[string]*book.Combo
}

func (m *mockComboRepo) Get(_ context.Context, id string) (*book.Combo, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, book.ErrNotFound
	}
	return c, nil
}

type brokenStore struct{ session.Store }

func (brokenStore) Get(context.Context, string, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func (brokenStore) Put(context.Context, string, string, []byte) error { return nil }

// --- Helpers ---

func newTestService(store session.Store) *Service {
	books := &mockBookRepo{byID: map[string]*book.Book{
		"b1": {ID: "b1", Title: "Rich Dad Poor Dad", Author: "Robert Kiyosaki", Price: decimal.NewFromInt(299), InStock: true},
		"b2": {ID: "b2", Title: "Sold Out", Author: "Nobody", Price: decimal.NewFromInt(99), InStock: false},
	}}
	combos := &mockComboRepo{byID: map[string]*book.Combo{
		"1": {ID: "1", Title: "Finance Pack", Price: decimal.NewFromInt(799), IsActive: true, BookIDs: []string{"b1"}},
		"2": {ID: "2", Title: "Old Pack", Price: decimal.NewFromInt(499), IsActive: false, BookIDs: []string{"b1"}},
	}}
	return NewService(store, books, combos, 10)
}

// --- Tests ---

func TestService_AddPersists(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	svc := newTestService(store)

	_, err := svc.Add(ctx, "s1", "b1")
	require.NoError(t, err)
	_, err = svc.Add(ctx, "s1", "combo-1")
	require.NoError(t, err)

	c, err := svc.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	combo, ok := c.Find("combo-1")
	require.True(t, ok)
	assert.True(t, combo.IsCombo)
	assert.Equal(t, "1", combo.ComboID)
	assert.True(t, decimal.NewFromInt(1098).Equal(c.TotalAmount()))
}

func TestService_AddErrors(t *testing.T) {
	svc := newTestService(session.NewMemoryStore())
	ctx := context.Background()

	tests := []struct {
		name    string
		id      string
		wantErr error
	}{
		{name: "unknown book", id: "missing", wantErr: ErrProductNotFound},
		{name: "unknown combo", id: "combo-99", wantErr: ErrProductNotFound},
		{name: "inactive combo", id: "combo-2", wantErr: ErrProductNotFound},
		{name: "out of stock", id: "b2", wantErr: ErrOutOfStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Add(ctx, "s1", tt.id)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_SetQuantityAndClear(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(session.NewMemoryStore())

	_, err := svc.Add(ctx, "s1", "b1")
	require.NoError(t, err)

	c, err := svc.SetQuantity(ctx, "s1", "b1", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, c.TotalItems())

	c, err = svc.Remove(ctx, "s1", "b1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())

	_, err = svc.Add(ctx, "s1", "b1")
	require.NoError(t, err)
	c, err = svc.Clear(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestService_CorruptDocumentYieldsEmptyCart(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "s1", session.KeyCart, []byte(`{"broken":`)))

	c, err := newTestService(store).Get(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestService_StorageReadFailureFailsOpen(t *testing.T) {
	c, err := newTestService(brokenStore{}).Add(context.Background(), "s1", "b1")
	require.NoError(t, err)
	assert.Equal(t, 1, c.TotalItems())
}

func TestService_MissingSession(t *testing.T) {
	_, err := newTestService(session.NewMemoryStore()).Get(context.Background(), "")
	require.ErrorIs(t, err, session.ErrMissingID)
}
