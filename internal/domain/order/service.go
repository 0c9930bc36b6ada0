package order

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
)

// StatusAll is the admin filter value that disables status filtering.
const StatusAll = "All"

// Service encapsulates order management for admins and customers.
type Service struct {
	orders Repository
}

// NewService creates an order Service.
func NewService(orders Repository) *Service {
	return &Service{orders: orders}
}

// ListForAdmin lists orders filtered by status ("" or "All" for any) and a
// free-text search.
func (s *Service) ListForAdmin(ctx context.Context, status, search string) ([]Order, error) {
	f := Filter{Search: strings.TrimSpace(search)}
	if status != "" && status != StatusAll {
		st, err := ParseStatus(status)
		if err != nil {
			return nil, err
		}
		f.Status = st
	}
	orders, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// Get returns an order by id.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.orders.Get(ctx, id)
}

// SetStatus moves an order to status.
func (s *Service) SetStatus(ctx context.Context, id, status string) (*Order, error) {
	st, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	if err := s.orders.UpdateStatus(ctx, id, st); err != nil {
		return nil, err
	}
	return s.orders.Get(ctx, id)
}

// Delete removes an order.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.orders.Delete(ctx, id)
}

// ListForUser returns the orders placed by userID, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Order, error) {
	if userID == "" {
		return nil, nil
	}
	orders, err := s.orders.List(ctx, Filter{UserID: userID})
	if err != nil {
		return nil, errors.Wrap(err, "list user orders")
	}
	return orders, nil
}

// CancelForUser cancels one of userID's orders. Orders owned by someone else
// are reported as ErrNotFound.
func (s *Service) CancelForUser(ctx context.Context, userID, orderID string) (*Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID == nil || *o.UserID != userID {
		return nil, ErrNotFound
	}
	if !o.Status.UserCancelable() {
		return nil, ErrNotCancelable
	}
	if err := s.orders.UpdateStatus(ctx, orderID, StatusCancelled); err != nil {
		return nil, errors.Wrap(err, "cancel order")
	}
	o.Status = StatusCancelled
	return o, nil
}
