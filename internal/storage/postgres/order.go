package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/bookshelf/internal/domain/order"
)

const (
	orderColumns = `id, COALESCE(request_key, ''), session_id, user_id, customer_name, customer_phone, customer_email,
		address, total_amount, items_json, status, created_at`

	// A request key the session already used inserts nothing and returns no row.
	createOrderSQL = `INSERT INTO orders (request_key, session_id, user_id, customer_name, customer_phone,
		customer_email, address, total_amount, items_json, status)
		VALUES (NULLIF($1, ''), $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (session_id, request_key) DO NOTHING
		RETURNING id, created_at`

	getOrderByRequestKeySQL = `SELECT ` + orderColumns + ` FROM orders WHERE session_id = $1 AND request_key = $2`
	getOrderSQL             = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE ($1::text = '' OR status = $1)
		AND ($2::text = '' OR customer_name ILIKE '%' || $2 || '%'
			OR customer_phone ILIKE '%' || $2 || '%'
			OR id ILIKE '%' || $2 || '%')
		AND ($3::text = '' OR user_id = $3)
		ORDER BY created_at DESC, id`

	updateOrderStatusSQL = `UPDATE orders SET status = $2 WHERE id = $1`
	deleteOrderSQL       = `DELETE FROM orders WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. The items snapshot is stored in a JSONB
// column. A request key replayed by the same session returns the stored
// order with created false.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) (bool, error) {
	if o.ItemsJSON == nil {
		o.ItemsJSON = []byte("[]")
	}
	if o.Status == "" {
		o.Status = order.StatusPending
	}

	err := r.pool.QueryRow(ctx, createOrderSQL,
		o.RequestKey, o.SessionID, o.UserID, o.CustomerName, o.CustomerPhone, o.CustomerEmail,
		o.Address, o.TotalAmount, o.ItemsJSON, string(o.Status),
	).Scan(&o.ID, &o.CreatedAt)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, pgx.ErrNoRows) && o.RequestKey != "":
		rows, err := r.pool.Query(ctx, getOrderByRequestKeySQL, o.SessionID, o.RequestKey)
		if err != nil {
			return false, fmt.Errorf("loading order for request key %q: %w", o.RequestKey, err)
		}
		existing, err := pgx.CollectExactlyOneRow(rows, scanOrder)
		if err != nil {
			return false, fmt.Errorf("loading order for request key %q: %w", o.RequestKey, err)
		}
		*o = existing
		return false, nil
	default:
		return false, fmt.Errorf("creating order: %w", err)
	}
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// List returns orders matching f, newest first.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, string(f.Status), f.Search, f.UserID)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(status))
	if err != nil {
		return fmt.Errorf("updating status of order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteOrderSQL, id)
	if err != nil {
		return fmt.Errorf("deleting order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) Count(ctx context.Context) (int, error) {
	return countRows(ctx, r.pool, "orders")
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.RequestKey, &o.SessionID, &o.UserID, &o.CustomerName, &o.CustomerPhone, &o.CustomerEmail,
		&o.Address, &o.TotalAmount, &o.ItemsJSON, &status, &o.CreatedAt,
	)
	o.Status = order.Status(status)
	return o, err
}
