package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/bookshelf/internal/domain/book"
	"github.com/xenking/bookshelf/internal/domain/session"
)

// Service serves catalog listings and remembers each session's view.
type Service struct {
	books    book.Repository
	store    session.Store
	pageSize int
}

// NewService creates a catalog Service.
func NewService(books book.Repository, store session.Store, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Service{books: books, store: store, pageSize: pageSize}
}

// Browse lists books for q. With a session id the previous view decides
// whether the requested page stands or resets to 1, and the new view is
// saved.
func (s *Service) Browse(ctx context.Context, sessionID string, q Query, page int) (Result, error) {
	books, err := s.books.List(ctx)
	if err != nil {
		return Result{}, errors.Wrap(err, "list books")
	}

	view := View{Query: q.Normalize(), Page: max(page, 1)}
	if sessionID != "" {
		prev, err := session.Load(ctx, s.store, sessionID, session.KeyCatalog, View{Query: q.Normalize(), Page: 1})
		if err != nil {
			zctx.From(ctx).Warn("Load catalog view", zap.String("session_id", sessionID), zap.Error(err))
		}
		view = prev.Update(q, page)
		if err := session.Save(ctx, s.store, sessionID, session.KeyCatalog, view); err != nil {
			zctx.From(ctx).Warn("Save catalog view", zap.String("session_id", sessionID), zap.Error(err))
		}
	}

	return Run(books, view.Query, view.Page, s.pageSize), nil
}

// Get returns one book.
func (s *Service) Get(ctx context.Context, id string) (*book.Book, error) {
	return s.books.Get(ctx, id)
}

// Categories lists categories with their book counts.
func (s *Service) Categories(ctx context.Context) ([]CategoryCount, error) {
	books, err := s.books.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list books")
	}
	return Categories(books), nil
}
