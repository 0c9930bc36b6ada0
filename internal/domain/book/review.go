package book

import (
	"context"
	"strings"
	"time"
)

// Review is a user's rating of a book. A user has at most one review per book.
type Review struct {
	ID        string
	BookID    string
	UserID    string
	UserName  string
	Rating    int
	Comment   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks rating bounds and trims the comment.
func (r *Review) Validate() error {
	if r.Rating < 1 || r.Rating > 5 {
		return &InvalidInputError{Field: "rating", Reason: "must be between 1 and 5"}
	}
	r.Comment = strings.TrimSpace(r.Comment)
	if len(r.Comment) > 2000 {
		return &InvalidInputError{Field: "comment", Reason: "must be at most 2000 characters"}
	}
	return nil
}

// ReviewRepository stores reviews.
type ReviewRepository interface {
	ListByBook(ctx context.Context, bookID string) ([]Review, error)
	// Upsert creates the user's review for a book or replaces the existing one.
	Upsert(ctx context.Context, r *Review) error
	// Delete removes the user's review for a book. Returns ErrNotFound if absent.
	Delete(ctx context.Context, bookID, userID string) error
}
