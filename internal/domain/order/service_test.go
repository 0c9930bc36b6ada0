package order

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockOrderRepo struct {
	byID       map[string]*Order
	lastFilter Filter
}

func newOrderRepo(orders ...Order) *mockOrderRepo {
	m := &mockOrderRepo{byID: map[string]*Order{}}
	for i := range orders {
		m.byID[orders[i].ID] = &orders[i]
	}
	return m
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) (bool, error) {
	m.byID[o.ID] = o
	return true, nil
}

func (m *mockOrderRepo) Get(_ context.Context, id string) (*Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) List(_ context.Context, f Filter) ([]Order, error) {
	m.lastFilter = f
	var out []Order
	for _, o := range m.byID {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.UserID != "" && (o.UserID == nil || *o.UserID != f.UserID) {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(o.CustomerName), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id string, status Status) error {
	o, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	return nil
}

func (m *mockOrderRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *mockOrderRepo) Count(_ context.Context) (int, error) {
	return len(m.byID), nil
}

// --- Helpers ---

func ptr(s string) *string { return &s }

func newTestOrder(id string, status Status, user *string) Order {
	return Order{
		ID:            id,
		UserID:        user,
		CustomerName:  "Priya " + id,
		CustomerPhone: "9876543210",
		TotalAmount:   decimal.NewFromInt(499),
		Status:        status,
	}
}

// --- Tests ---

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("Delivered")
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, st)

	_, err = ParseStatus("delivered")
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestStatus_UserCancelable(t *testing.T) {
	assert.True(t, StatusPending.UserCancelable())
	assert.True(t, StatusConfirmed.UserCancelable())
	assert.False(t, StatusDelivered.UserCancelable())
	assert.False(t, StatusCancelled.UserCancelable())
}

func TestItemsRoundTrip(t *testing.T) {
	raw, err := EncodeItems(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))

	raw, err = EncodeItems([]Item{{ID: "combo-1", Title: "Pack", Price: decimal.NewFromInt(10), Quantity: 2, IsCombo: true, ComboID: "1"}})
	require.NoError(t, err)
	items, err := DecodeItems(raw)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "1", items[0].ComboID)

	_, err = DecodeItems([]byte("{"))
	require.Error(t, err)
}

func TestService_ListForAdmin(t *testing.T) {
	repo := newOrderRepo(
		newTestOrder("o1", StatusPending, nil),
		newTestOrder("o2", StatusDelivered, nil),
	)
	svc := NewService(repo)
	ctx := context.Background()

	all, err := svc.ListForAdmin(ctx, StatusAll, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending, err := svc.ListForAdmin(ctx, "Pending", " ")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "o1", pending[0].ID)
	assert.Empty(t, repo.lastFilter.Search)

	_, err = svc.ListForAdmin(ctx, "Lost", "")
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestService_SetStatus(t *testing.T) {
	svc := NewService(newOrderRepo(newTestOrder("o1", StatusPending, nil)))
	ctx := context.Background()

	o, err := svc.SetStatus(ctx, "o1", "Confirmed")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, o.Status)

	_, err = svc.SetStatus(ctx, "o1", "Shipped")
	require.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.SetStatus(ctx, "missing", "Confirmed")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestService_Delete(t *testing.T) {
	svc := NewService(newOrderRepo(newTestOrder("o1", StatusPending, nil)))
	require.NoError(t, svc.Delete(context.Background(), "o1"))
	require.ErrorIs(t, svc.Delete(context.Background(), "o1"), ErrNotFound)
}

func TestService_CancelForUser(t *testing.T) {
	tests := []struct {
		name    string
		order   Order
		userID  string
		wantErr error
	}{
		{name: "pending", order: newTestOrder("o1", StatusPending, ptr("u1")), userID: "u1"},
		{name: "confirmed", order: newTestOrder("o1", StatusConfirmed, ptr("u1")), userID: "u1"},
		{name: "delivered", order: newTestOrder("o1", StatusDelivered, ptr("u1")), userID: "u1", wantErr: ErrNotCancelable},
		{name: "someone else's", order: newTestOrder("o1", StatusPending, ptr("u2")), userID: "u1", wantErr: ErrNotFound},
		{name: "guest order", order: newTestOrder("o1", StatusPending, nil), userID: "u1", wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newOrderRepo(tt.order)
			o, err := NewService(repo).CancelForUser(context.Background(), tt.userID, "o1")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.order.Status, repo.byID["o1"].Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StatusCancelled, o.Status)
			assert.Equal(t, StatusCancelled, repo.byID["o1"].Status)
		})
	}
}

func TestService_ListForUser(t *testing.T) {
	repo := newOrderRepo(
		newTestOrder("o1", StatusPending, ptr("u1")),
		newTestOrder("o2", StatusPending, ptr("u2")),
	)
	svc := NewService(repo)

	orders, err := svc.ListForUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "o1", orders[0].ID)

	orders, err = svc.ListForUser(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, orders)
}
