// Package wishlist implements the saved-for-later list held in a storefront session.
package wishlist

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/bookshelf/internal/domain/book"
	"github.com/xenking/bookshelf/internal/domain/session"
)

// Entry is a wishlisted book.
type Entry struct {
	ProductID string          `json:"id"`
	Title     string          `json:"title"`
	Author    string          `json:"author"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"image_url"`
	Category  string          `json:"category"`
}

// Wishlist is an ordered set of entries keyed by product id.
type Wishlist struct {
	entries []Entry
}

// New builds a Wishlist from persisted entries, dropping duplicates.
func New(entries []Entry) Wishlist {
	var w Wishlist
	for _, e := range entries {
		if e.ProductID == "" {
			continue
		}
		w = w.Add(e)
	}
	return w
}

// Entries returns a copy of the entries in insertion order.
func (w Wishlist) Entries() []Entry { return slices.Clone(w.entries) }

// Count is the number of entries.
func (w Wishlist) Count() int { return len(w.entries) }

// Has reports whether productID is wishlisted.
func (w Wishlist) Has(productID string) bool {
	return slices.ContainsFunc(w.entries, func(e Entry) bool { return e.ProductID == productID })
}

// Add appends e unless its product is already present.
func (w Wishlist) Add(e Entry) Wishlist {
	if w.Has(e.ProductID) {
		return w
	}
	return Wishlist{entries: append(slices.Clone(w.entries), e)}
}

// Remove deletes productID. Unknown ids are ignored.
func (w Wishlist) Remove(productID string) Wishlist {
	return Wishlist{entries: slices.DeleteFunc(slices.Clone(w.entries), func(e Entry) bool {
		return e.ProductID == productID
	})}
}

// ErrProductNotFound is returned when the book to wishlist does not exist.
var ErrProductNotFound = errors.New("product not found")

// Service loads and persists wishlists in the session store.
type Service struct {
	store session.Store
	books book.Repository
}

// NewService creates a wishlist Service.
func NewService(store session.Store, books book.Repository) *Service {
	return &Service{store: store, books: books}
}

// Get returns the session wishlist.
func (s *Service) Get(ctx context.Context, sessionID string) (Wishlist, error) {
	entries, err := session.Load(ctx, s.store, sessionID, session.KeyWishlist, []Entry{})
	if err != nil {
		if errors.Is(err, session.ErrMissingID) {
			return Wishlist{}, err
		}
		zctx.From(ctx).Warn("Load wishlist", zap.String("session_id", sessionID), zap.Error(err))
	}
	return New(entries), nil
}

// Has reports whether productID is on the session wishlist.
func (s *Service) Has(ctx context.Context, sessionID, productID string) (bool, error) {
	w, err := s.Get(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return w.Has(productID), nil
}

// Add wishlists a book. Adding a present book is a no-op.
func (s *Service) Add(ctx context.Context, sessionID, productID string) (Wishlist, error) {
	b, err := s.books.Get(ctx, productID)
	if err != nil {
		if errors.Is(err, book.ErrNotFound) {
			return Wishlist{}, ErrProductNotFound
		}
		return Wishlist{}, errors.Wrap(err, "get book")
	}
	return s.mutate(ctx, sessionID, func(w Wishlist) Wishlist {
		return w.Add(Entry{
			ProductID: b.ID,
			Title:     b.Title,
			Author:    b.Author,
			Price:     b.Price,
			ImageURL:  b.ImageURL,
			Category:  b.Category,
		})
	})
}

// Remove drops productID from the session wishlist.
func (s *Service) Remove(ctx context.Context, sessionID, productID string) (Wishlist, error) {
	return s.mutate(ctx, sessionID, func(w Wishlist) Wishlist { return w.Remove(productID) })
}

func (s *Service) mutate(ctx context.Context, sessionID string, fn func(Wishlist) Wishlist) (Wishlist, error) {
	w, err := s.Get(ctx, sessionID)
	if err != nil {
		return Wishlist{}, err
	}
	next := fn(w)
	if err := session.Save(ctx, s.store, sessionID, session.KeyWishlist, next.entries); err != nil {
		return Wishlist{}, errors.Wrap(err, "save wishlist")
	}
	return next, nil
}
