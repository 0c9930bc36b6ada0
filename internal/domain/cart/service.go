package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/bookshelf/internal/domain/book"
	"github.com/xenking/bookshelf/internal/domain/session"
)

var (
	// ErrProductNotFound is returned when the product to add does not exist
	// or is an inactive combo.
	ErrProductNotFound = errors.New("product not found")
	// ErrOutOfStock is returned when adding a book that is not in stock.
	ErrOutOfStock = errors.New("product out of stock")
)

// ComboCategory is the category recorded for combo lines.
const ComboCategory = "Combos"

// Service loads and persists carts in the session store.
type Service struct {
	store  session.Store
	books  book.Repository
	combos book.ComboRepository
	maxQty int
}

// NewService creates a cart Service. maxQty caps the quantity per line; 0
// means unlimited.
func NewService(store session.Store, books book.Repository, combos book.ComboRepository, maxQty int) *Service {
	return &Service{
		store:  store,
		books:  books,
		combos: combos,
		maxQty: maxQty,
	}
}

// Get returns the session cart. Unreadable documents yield an empty cart.
func (s *Service) Get(ctx context.Context, sessionID string) (Cart, error) {
	lines, err := session.Load(ctx, s.store, sessionID, session.KeyCart, []Line{})
	if err != nil {
		if errors.Is(err, session.ErrMissingID) {
			return Cart{}, err
		}
		zctx.From(ctx).Warn("Load cart", zap.String("session_id", sessionID), zap.Error(err))
	}
	return New(lines, s.maxQty), nil
}

// Add resolves productID and adds one unit of it.
func (s *Service) Add(ctx context.Context, sessionID, productID string) (Cart, error) {
	p, err := s.resolve(ctx, productID)
	if err != nil {
		return Cart{}, err
	}
	return s.mutate(ctx, sessionID, func(c Cart) Cart { return c.Add(*p) })
}

// Remove deletes a line.
func (s *Service) Remove(ctx context.Context, sessionID, productID string) (Cart, error) {
	return s.mutate(ctx, sessionID, func(c Cart) Cart { return c.Remove(productID) })
}

// SetQuantity replaces a line's quantity; n <= 0 removes it.
func (s *Service) SetQuantity(ctx context.Context, sessionID, productID string, n int) (Cart, error) {
	return s.mutate(ctx, sessionID, func(c Cart) Cart { return c.SetQuantity(productID, n) })
}

// Clear empties the session cart.
func (s *Service) Clear(ctx context.Context, sessionID string) (Cart, error) {
	return s.mutate(ctx, sessionID, func(c Cart) Cart { return c.Clear() })
}

func (s *Service) mutate(ctx context.Context, sessionID string, fn func(Cart) Cart) (Cart, error) {
	c, err := s.Get(ctx, sessionID)
	if err != nil {
		return Cart{}, err
	}
	next := fn(c)
	if err := session.Save(ctx, s.store, sessionID, session.KeyCart, next.lines); err != nil {
		return Cart{}, errors.Wrap(err, "save cart")
	}
	return next, nil
}

func (s *Service) resolve(ctx context.Context, productID string) (*Product, error) {
	if comboID, ok := book.SplitComboID(productID); ok {
		c, err := s.combos.Get(ctx, comboID)
		if err != nil {
			if errors.Is(err, book.ErrNotFound) {
				return nil, ErrProductNotFound
			}
			return nil, errors.Wrap(err, "get combo")
		}
		if !c.IsActive {
			return nil, ErrProductNotFound
		}
		return &Product{
			ID:            c.CartID(),
			Title:         c.Title,
			Author:        "Combo Pack",
			Price:         c.Price,
			OriginalPrice: c.OriginalPrice,
			ImageURL:      c.ImageURL,
			Category:      ComboCategory,
			IsCombo:       true,
			ComboID:       c.ID,
		}, nil
	}

	b, err := s.books.Get(ctx, productID)
	if err != nil {
		if errors.Is(err, book.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, errors.Wrap(err, "get book")
	}
	if !b.InStock {
		return nil, ErrOutOfStock
	}
	return &Product{
		ID:            b.ID,
		Title:         b.Title,
		Author:        b.Author,
		Price:         b.Price,
		OriginalPrice: b.OriginalPrice,
		ImageURL:      b.ImageURL,
		Category:      b.Category,
	}, nil
}
