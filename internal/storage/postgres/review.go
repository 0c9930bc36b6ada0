package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/bookshelf/internal/domain/book"
)

const (
	listReviewsSQL = `SELECT id, book_id, user_id, user_name, rating, comment, created_at, updated_at
		FROM reviews WHERE book_id = $1 ORDER BY created_at DESC, id`

	upsertReviewSQL = `INSERT INTO reviews (book_id, user_id, user_name, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (book_id, user_id) DO UPDATE
		SET user_name = EXCLUDED.user_name, rating = EXCLUDED.rating,
			comment = EXCLUDED.comment, updated_at = now()
		RETURNING id, created_at, updated_at`

	deleteReviewSQL = `DELETE FROM reviews WHERE book_id = $1 AND user_id = $2`
)

// foreignKeyViolation is the SQLSTATE for a missing referenced row.
const foreignKeyViolation = "23503"

var _ book.ReviewRepository = (*ReviewRepository)(nil)

// ReviewRepository implements book.ReviewRepository backed by PostgreSQL.
type ReviewRepository struct {
	pool *pgxpool.Pool
}

// NewReviewRepository returns a ReviewRepository that uses the given pool.
func NewReviewRepository(pool *pgxpool.Pool) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// ListByBook returns a book's reviews, newest first.
func (r *ReviewRepository) ListByBook(ctx context.Context, bookID string) ([]book.Review, error) {
	rows, err := r.pool.Query(ctx, listReviewsSQL, bookID)
	if err != nil {
		return nil, fmt.Errorf("listing reviews for book %q: %w", bookID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (book.Review, error) {
		var (
			rv     book.Review
			rating int16
		)
		err := row.Scan(&rv.ID, &rv.BookID, &rv.UserID, &rv.UserName, &rating, &rv.Comment, &rv.CreatedAt, &rv.UpdatedAt)
		rv.Rating = int(rating)
		return rv, err
	})
}

// Upsert writes the user's review, replacing any earlier one for the book.
func (r *ReviewRepository) Upsert(ctx context.Context, rv *book.Review) error {
	err := r.pool.QueryRow(ctx, upsertReviewSQL,
		rv.BookID, rv.UserID, rv.UserName, rv.Rating, rv.Comment,
	).Scan(&rv.ID, &rv.CreatedAt, &rv.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return book.ErrNotFound
		}
		return fmt.Errorf("saving review for book %q: %w", rv.BookID, err)
	}
	return nil
}

func (r *ReviewRepository) Delete(ctx context.Context, bookID, userID string) error {
	tag, err := r.pool.Exec(ctx, deleteReviewSQL, bookID, userID)
	if err != nil {
		return fmt.Errorf("deleting review for book %q: %w", bookID, err)
	}
	if tag.RowsAffected() == 0 {
		return book.ErrNotFound
	}
	return nil
}
