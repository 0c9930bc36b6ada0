//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/bookshelf/internal/domain/book"
	"github.com/xenking/bookshelf/internal/domain/order"
	"github.com/xenking/bookshelf/internal/domain/promo"
)

// --- Helpers ---

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("bookshelf_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(container)
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	// Migrations are idempotent.
	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func newBook(title string, price int64) *book.Book {
	return &book.Book{
		Title:    title,
		Author:   "Author of " + title,
		Category: "Finance",
		Price:    decimal.NewFromInt(price),
		InStock:  true,
	}
}

// --- Tests ---

func TestBookRepository(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	books := NewBookRepository(pool)
	reviews := NewReviewRepository(pool)

	b := newBook("Rich Dad Poor Dad", 299)
	orig := decimal.NewFromInt(450)
	b.OriginalPrice = &orig
	require.NoError(t, books.Create(ctx, b))
	require.NotEmpty(t, b.ID)

	require.NoError(t, reviews.Upsert(ctx, &book.Review{BookID: b.ID, UserID: "u1", UserName: "A", Rating: 5}))
	require.NoError(t, reviews.Upsert(ctx, &book.Review{BookID: b.ID, UserID: "u2", UserName: "B", Rating: 4}))
	// A second review by the same user replaces the first.
	require.NoError(t, reviews.Upsert(ctx, &book.Review{BookID: b.ID, UserID: "u2", UserName: "B", Rating: 3, Comment: "meh"}))

	got, err := books.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rich Dad Poor Dad", got.Title)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(299)))
	require.NotNil(t, got.OriginalPrice)
	assert.True(t, got.OriginalPrice.Equal(orig))
	assert.Equal(t, 2, got.ReviewCount)
	assert.True(t, got.Rating.Equal(decimal.NewFromInt(4)), got.Rating.String())

	list, err := reviews.ListByBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, reviews.Delete(ctx, b.ID, "u1"))
	assert.ErrorIs(t, reviews.Delete(ctx, b.ID, "u1"), book.ErrNotFound)
	assert.ErrorIs(t, reviews.Upsert(ctx, &book.Review{BookID: "missing", UserID: "u1", Rating: 5}), book.ErrNotFound)

	got.InStock = false
	require.NoError(t, books.Update(ctx, got))
	require.NoError(t, books.SetImage(ctx, b.ID, "https://cdn.example.com/covers/1.jpg"))
	got, err = books.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, got.InStock)
	assert.Equal(t, "https://cdn.example.com/covers/1.jpg", got.ImageURL)

	n, err := books.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, books.Delete(ctx, b.ID))
	_, err = books.Get(ctx, b.ID)
	assert.ErrorIs(t, err, book.ErrNotFound)
	assert.ErrorIs(t, books.Update(ctx, got), book.ErrNotFound)
}

func TestComboRepository(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	combos := NewComboRepository(pool)

	active := &book.Combo{Title: "Money Pack", Price: decimal.NewFromInt(549), BookIDs: []string{"a", "b"}, IsActive: true}
	hidden := &book.Combo{Title: "Hidden Pack", Price: decimal.NewFromInt(99), BookIDs: []string{"c"}}
	require.NoError(t, combos.Create(ctx, active))
	require.NoError(t, combos.Create(ctx, hidden))

	list, err := combos.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"a", "b"}, list[0].BookIDs)

	all, err := combos.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	hidden.IsActive = true
	require.NoError(t, combos.Update(ctx, hidden))
	got, err := combos.Get(ctx, hidden.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	require.NoError(t, combos.Delete(ctx, hidden.ID))
	_, err = combos.Get(ctx, hidden.ID)
	assert.ErrorIs(t, err, book.ErrNotFound)
}

func TestOrderRepository(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	orders := NewOrderRepository(pool)

	items, err := order.EncodeItems([]order.Item{{ID: "b1", Title: "Ikigai", Price: decimal.NewFromInt(350), Quantity: 2}})
	require.NoError(t, err)
	user := "user-1"

	first := &order.Order{
		RequestKey:    "req-1",
		SessionID:     "sess-1",
		UserID:        &user,
		CustomerName:  "Priya",
		CustomerPhone: "9876543210",
		Address:       "12 Park Street Area, Namakkal, Tamil Nadu - 600001",
		TotalAmount:   decimal.NewFromInt(700),
		ItemsJSON:     items,
	}
	created, err := orders.Create(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)
	require.NotEmpty(t, first.ID)

	replay := &order.Order{RequestKey: "req-1", SessionID: "sess-1", CustomerName: "Other", CustomerPhone: "1", Address: "x", TotalAmount: decimal.NewFromInt(1)}
	created, err = orders.Create(ctx, replay)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, replay.ID)
	assert.Equal(t, "Priya", replay.CustomerName)
	assert.Equal(t, "sess-1", replay.SessionID)

	// The same key from another session is a different order.
	other := &order.Order{RequestKey: "req-1", SessionID: "sess-2", CustomerName: "Meena", CustomerPhone: "9000000000", Address: "Another long address", TotalAmount: decimal.NewFromInt(300)}
	created, err = orders.Create(ctx, other)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, other.ID)

	guest := &order.Order{CustomerName: "Arun", CustomerPhone: "9123456780", Address: "Somewhere long enough", TotalAmount: decimal.NewFromInt(150)}
	created, err = orders.Create(ctx, guest)
	require.NoError(t, err)
	assert.True(t, created)

	got, err := orders.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, got.Status)
	decoded, err := order.DecodeItems(got.ItemsJSON)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, "Ikigai", decoded[0].Title)

	mine, err := orders.List(ctx, order.Filter{UserID: user})
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	found, err := orders.List(ctx, order.Filter{Search: "arun"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, guest.ID, found[0].ID)

	require.NoError(t, orders.UpdateStatus(ctx, guest.ID, order.StatusCancelled))
	cancelled, err := orders.List(ctx, order.Filter{Status: order.StatusCancelled})
	require.NoError(t, err)
	assert.Len(t, cancelled, 1)

	all, err := orders.List(ctx, order.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, guest.ID, all[0].ID)

	require.NoError(t, orders.Delete(ctx, guest.ID))
	assert.ErrorIs(t, orders.Delete(ctx, guest.ID), order.ErrNotFound)
	assert.ErrorIs(t, orders.UpdateStatus(ctx, guest.ID, order.StatusDelivered), order.ErrNotFound)
}

func TestPromoRuleRepository(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	rules := NewPromoRuleRepository(pool)

	require.NoError(t, rules.Upsert(ctx, promo.Rule{
		Code:         "flat100",
		DiscountType: promo.DiscountFixed,
		Value:        decimal.NewFromInt(100),
		MinItems:     2,
		MaxUses:      5,
	}))

	rule, err := rules.FindByCode(ctx, "Flat100")
	require.NoError(t, err)
	assert.Equal(t, "FLAT100", rule.Code)
	assert.Equal(t, 0, rule.Uses)

	require.NoError(t, rules.IncrementUses(ctx, "flat100"))
	rule, err = rules.FindByCode(ctx, "FLAT100")
	require.NoError(t, err)
	assert.Equal(t, 1, rule.Uses)

	_, err = rules.FindByCode(ctx, "NOPE")
	assert.ErrorIs(t, err, promo.ErrInvalidPromo)
}

func TestAPIKeyRepository(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	keys := NewAPIKeyRepository(pool)

	require.NoError(t, keys.Upsert(ctx, "abc123", "ops", []string{"admin"}))

	info, err := keys.FindByHash(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "ops", info.Name)
	assert.Equal(t, []string{"admin"}, info.Scopes)

	_, err = keys.FindByHash(ctx, "missing")
	assert.Error(t, err)
}
