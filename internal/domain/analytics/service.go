package analytics

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/bookshelf/internal/domain/order"
)

// Counter reports the number of stored rows.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Service loads order history and catalog sizes for admin reports.
type Service struct {
	orders order.Repository
	books  Counter
	combos Counter
	now    func() time.Time
}

// NewService creates an analytics Service.
func NewService(orders order.Repository, books, combos Counter) *Service {
	return &Service{orders: orders, books: books, combos: combos, now: time.Now}
}

// Dashboard fetches orders and catalog counts concurrently.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	var (
		orders            []order.Order
		bookCount, combos int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if orders, err = s.orders.List(gctx, order.Filter{}); err != nil {
			return errors.Wrap(err, "list orders")
		}
		return nil
	})
	g.Go(func() (err error) {
		if bookCount, err = s.books.Count(gctx); err != nil {
			return errors.Wrap(err, "count books")
		}
		return nil
	})
	g.Go(func() (err error) {
		if combos, err = s.combos.Count(gctx); err != nil {
			return errors.Wrap(err, "count combos")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return NewDashboard(orders, bookCount, combos), nil
}

// Snapshot aggregates orders for the given window.
func (s *Service) Snapshot(ctx context.Context, window Window) (Snapshot, error) {
	orders, err := s.orders.List(ctx, order.Filter{})
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "list orders")
	}
	return Aggregate(ctx, orders, window, s.now()), nil
}

// Customers groups every order by customer.
func (s *Service) Customers(ctx context.Context, search string) ([]Customer, error) {
	orders, err := s.orders.List(ctx, order.Filter{})
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return Customers(orders, search), nil
}
