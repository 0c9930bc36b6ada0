package book

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ComboIDPrefix prefixes combo ids when they are sold as a single cart line.
const ComboIDPrefix = "combo-"

var (
	// ErrNotFound is returned when a requested book, combo or review does not exist.
	ErrNotFound = errors.New("not found")
	// ErrCoversDisabled is returned when no cover storage is configured.
	ErrCoversDisabled = errors.New("cover storage is not configured")
)

// InvalidInputError reports a rejected admin write.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Book is a catalog entry. Rating and ReviewCount are derived from reviews.
type Book struct {
	ID            string
	Title         string
	Author        string
	Description   string
	Category      string
	Price         decimal.Decimal
	OriginalPrice *decimal.Decimal
	ImageURL      string
	InStock       bool
	Rating        decimal.Decimal
	ReviewCount   int
	CreatedAt     time.Time
}

// Validate checks the fields required for an admin create or update.
func (b *Book) Validate() error {
	switch {
	case strings.TrimSpace(b.Title) == "":
		return &InvalidInputError{Field: "title", Reason: "required"}
	case strings.TrimSpace(b.Author) == "":
		return &InvalidInputError{Field: "author", Reason: "required"}
	case !b.Price.IsPositive():
		return &InvalidInputError{Field: "price", Reason: "must be greater than 0"}
	case b.OriginalPrice != nil && b.OriginalPrice.IsNegative():
		return &InvalidInputError{Field: "original_price", Reason: "must not be negative"}
	}
	return nil
}

// Combo is a bundle of catalog books sold as one product.
type Combo struct {
	ID            string
	Title         string
	Description   string
	Price         decimal.Decimal
	OriginalPrice *decimal.Decimal
	ImageURL      string
	BookIDs       []string
	IsActive      bool
	CreatedAt     time.Time
}

// CartID is the product id a combo uses as a cart line.
func (c *Combo) CartID() string {
	return ComboIDPrefix + c.ID
}

// Validate checks the fields required for an admin create or update.
func (c *Combo) Validate() error {
	switch {
	case strings.TrimSpace(c.Title) == "":
		return &InvalidInputError{Field: "title", Reason: "required"}
	case !c.Price.IsPositive():
		return &InvalidInputError{Field: "price", Reason: "must be greater than 0"}
	case len(c.BookIDs) == 0:
		return &InvalidInputError{Field: "book_ids", Reason: "select at least one book"}
	}
	return nil
}

// SplitComboID reports whether id names a combo and returns the bare combo id.
func SplitComboID(id string) (string, bool) {
	if rest, ok := strings.CutPrefix(id, ComboIDPrefix); ok && rest != "" {
		return rest, true
	}
	return "", false
}

// Repository provides catalog reads and admin writes for books.
type Repository interface {
	List(ctx context.Context) ([]Book, error)
	Get(ctx context.Context, id string) (*Book, error)
	Create(ctx context.Context, b *Book) error
	Update(ctx context.Context, b *Book) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	SetImage(ctx context.Context, id, imageURL string) error
}

// ComboRepository provides reads and admin writes for combos.
type ComboRepository interface {
	ListActive(ctx context.Context) ([]Combo, error)
	ListAll(ctx context.Context) ([]Combo, error)
	Get(ctx context.Context, id string) (*Combo, error)
	Create(ctx context.Context, c *Combo) error
	Update(ctx context.Context, c *Combo) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// CoverStore uploads cover images and returns their public URL.
type CoverStore interface {
	PutCover(ctx context.Context, bookID, contentType string, body io.Reader, size int64) (string, error)
}
