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
	bookColumns = `b.id, b.title, b.author, b.description, b.category, b.price, b.original_price,
		b.image_url, b.in_stock, b.created_at,
		COALESCE(ROUND(AVG(r.rating)::numeric, 1), 0), COUNT(r.id)`

	listBooksSQL = `SELECT ` + bookColumns + `
		FROM books b LEFT JOIN reviews r ON r.book_id = b.id
		GROUP BY b.id ORDER BY b.created_at DESC, b.id`

	getBookSQL = `SELECT ` + bookColumns + `
		FROM books b LEFT JOIN reviews r ON r.book_id = b.id
		WHERE b.id = $1 GROUP BY b.id`

	createBookSQL = `INSERT INTO books (id, title, author, description, category, price, original_price, image_url, in_stock)
		VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	updateBookSQL = `UPDATE books SET title = $2, author = $3, description = $4, category = $5,
		price = $6, original_price = $7, image_url = $8, in_stock = $9
		WHERE id = $1`

	deleteBookSQL   = `DELETE FROM books WHERE id = $1`
	setBookImageSQL = `UPDATE books SET image_url = $2 WHERE id = $1`
)

var _ book.Repository = (*BookRepository)(nil)

// BookRepository implements book.Repository backed by PostgreSQL. Rating and
// review count are aggregated from the reviews table on read.
type BookRepository struct {
	pool *pgxpool.Pool
}

// NewBookRepository returns a BookRepository that uses the given pool.
func NewBookRepository(pool *pgxpool.Pool) *BookRepository {
	return &BookRepository{pool: pool}
}

// List returns every book, newest first.
func (r *BookRepository) List(ctx context.Context) ([]book.Book, error) {
	rows, err := r.pool.Query(ctx, listBooksSQL)
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	return pgx.CollectRows(rows, scanBook)
}

// Get returns a single book by id.
func (r *BookRepository) Get(ctx context.Context, id string) (*book.Book, error) {
	rows, err := r.pool.Query(ctx, getBookSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting book %q: %w", id, err)
	}

	b, err := pgx.CollectExactlyOneRow(rows, scanBook)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, book.ErrNotFound
		}
		return nil, fmt.Errorf("getting book %q: %w", id, err)
	}
	return &b, nil
}

// Create inserts b, assigning an id when b.ID is empty.
func (r *BookRepository) Create(ctx context.Context, b *book.Book) error {
	err := r.pool.QueryRow(ctx, createBookSQL,
		b.ID, b.Title, b.Author, b.Description, b.Category, b.Price, b.OriginalPrice, b.ImageURL, b.InStock,
	).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating book %q: %w", b.Title, err)
	}
	return nil
}

// Update replaces the editable fields of b.
func (r *BookRepository) Update(ctx context.Context, b *book.Book) error {
	tag, err := r.pool.Exec(ctx, updateBookSQL,
		b.ID, b.Title, b.Author, b.Description, b.Category, b.Price, b.OriginalPrice, b.ImageURL, b.InStock,
	)
	if err != nil {
		return fmt.Errorf("updating book %q: %w", b.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return book.ErrNotFound
	}
	return nil
}

// Delete removes a book and its reviews.
func (r *BookRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteBookSQL, id)
	if err != nil {
		return fmt.Errorf("deleting book %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return book.ErrNotFound
	}
	return nil
}

func (r *BookRepository) Count(ctx context.Context) (int, error) {
	return countRows(ctx, r.pool, "books")
}

// SetImage points the book's cover at imageURL.
func (r *BookRepository) SetImage(ctx context.Context, id, imageURL string) error {
	tag, err := r.pool.Exec(ctx, setBookImageSQL, id, imageURL)
	if err != nil {
		return fmt.Errorf("setting image for book %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return book.ErrNotFound
	}
	return nil
}

func scanBook(row pgx.CollectableRow) (book.Book, error) {
	var b book.Book
	err := row.Scan(
		&b.ID, &b.Title, &b.Author, &b.Description, &b.Category, &b.Price, &b.OriginalPrice,
		&b.ImageURL, &b.InStock, &b.CreatedAt,
		&b.Rating, &b.ReviewCount,
	)
	return b, err
}
