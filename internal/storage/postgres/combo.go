package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/bookshelf/internal/domain/book"
)

const (
	comboColumns = `id, title, description, price, original_price, image_url, book_ids, is_active, created_at`

	listActiveCombosSQL = `SELECT ` + comboColumns + ` FROM combos WHERE is_active ORDER BY created_at DESC, id`
	listAllCombosSQL    = `SELECT ` + comboColumns + ` FROM combos ORDER BY created_at DESC, id`
	getComboSQL         = `SELECT ` + comboColumns + ` FROM combos WHERE id = $1`

	createComboSQL = `INSERT INTO combos (id, title, description, price, original_price, image_url, book_ids, is_active)
		VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	updateComboSQL = `UPDATE combos SET title = $2, description = $3, price = $4, original_price = $5,
		image_url = $6, book_ids = $7, is_active = $8
		WHERE id = $1`

	deleteComboSQL = `DELETE FROM combos WHERE id = $1`
)

var _ book.ComboRepository = (*ComboRepository)(nil)

// ComboRepository implements book.ComboRepository backed by PostgreSQL.
type ComboRepository struct {
	pool *pgxpool.Pool
}

// NewComboRepository returns a ComboRepository that uses the given pool.
func NewComboRepository(pool *pgxpool.Pool) *ComboRepository {
	return &ComboRepository{pool: pool}
}

func (r *ComboRepository) ListActive(ctx context.Context) ([]book.Combo, error) {
	rows, err := r.pool.Query(ctx, listActiveCombosSQL)
	if err != nil {
		return nil, fmt.Errorf("listing active combos: %w", err)
	}
	return pgx.CollectRows(rows, scanCombo)
}

func (r *ComboRepository) ListAll(ctx context.Context) ([]book.Combo, error) {
	rows, err := r.pool.Query(ctx, listAllCombosSQL)
	if err != nil {
		return nil, fmt.Errorf("listing combos: %w", err)
	}
	return pgx.CollectRows(rows, scanCombo)
}

func (r *ComboRepository) Get(ctx context.Context, id string) (*book.Combo, error) {
	rows, err := r.pool.Query(ctx, getComboSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting combo %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCombo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, book.ErrNotFound
		}
		return nil, fmt.Errorf("getting combo %q: %w", id, err)
	}
	return &c, nil
}

func (r *ComboRepository) Create(ctx context.Context, c *book.Combo) error {
	err := r.pool.QueryRow(ctx, createComboSQL,
		c.ID, c.Title, c.Description, c.Price, c.OriginalPrice, c.ImageURL, c.BookIDs, c.IsActive,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating combo %q: %w", c.Title, err)
	}
	return nil
}

func (r *ComboRepository) Update(ctx context.Context, c *book.Combo) error {
	tag, err := r.pool.Exec(ctx, updateComboSQL,
		c.ID, c.Title, c.Description, c.Price, c.OriginalPrice, c.ImageURL, c.BookIDs, c.IsActive,
	)
	if err != nil {
		return fmt.Errorf("updating combo %q: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return book.ErrNotFound
	}
	return nil
}

func (r *ComboRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteComboSQL, id)
	if err != nil {
		return fmt.Errorf("deleting combo %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return book.ErrNotFound
	}
	return nil
}

func (r *ComboRepository) Count(ctx context.Context) (int, error) {
	return countRows(ctx, r.pool, "combos")
}

func scanCombo(row pgx.CollectableRow) (book.Combo, error) {
	var c book.Combo
	err := row.Scan(
		&c.ID, &c.Title, &c.Description, &c.Price, &c.OriginalPrice, &c.ImageURL,
		&c.BookIDs, &c.IsActive, &c.CreatedAt,
	)
	return c, err
}
