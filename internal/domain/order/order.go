package order

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusConfirmed Status = "Confirmed"
	StatusDelivered Status = "Delivered"
	StatusCancelled Status = "Cancelled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusConfirmed, StatusDelivered, StatusCancelled}

// ParseStatus validates s.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", ErrInvalidStatus
}

// UserCancelable reports whether a customer may still cancel the order.
func (s Status) UserCancelable() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Sentinel errors for order operations.
var (
	ErrNotFound      = errors.New("order not found")
	ErrInvalidStatus = errors.New("invalid order status")
	ErrNotCancelable = errors.New("order can no longer be cancelled")
)

// Order is a placed order. Items are kept as the JSON snapshot written at
// submission so later catalog edits do not change history.
type Order struct {
	ID         string
	RequestKey string
	// SessionID is the storefront session that placed the order. Request
	// keys are unique per session.
	SessionID     string
	UserID        *string
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	Address       string
	TotalAmount   decimal.Decimal
	ItemsJSON     []byte
	Status        Status
	CreatedAt     time.Time
}

// Item is one line of the items snapshot.
type Item struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Author   string          `json:"author"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Category string          `json:"category,omitempty"`
	ImageURL string          `json:"image_url,omitempty"`
	IsCombo  bool            `json:"isCombo,omitempty"`
	ComboID  string          `json:"comboId,omitempty"`
}

// EncodeItems serialises an items snapshot.
func EncodeItems(items []Item) ([]byte, error) {
	if items == nil {
		items = []Item{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, errors.Wrap(err, "encode items")
	}
	return raw, nil
}

// DecodeItems parses an items snapshot.
func DecodeItems(raw []byte) ([]Item, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errors.Wrap(err, "decode items")
	}
	return items, nil
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Status Status
	// Search matches customer name, phone or order id, case-insensitively.
	Search string
	UserID string
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create inserts o. When the session already placed an order with the
	// same RequestKey, o is filled from the stored row and created is false.
	Create(ctx context.Context, o *Order) (created bool, err error)
	Get(ctx context.Context, id string) (*Order, error)
	// List returns matching orders, newest first.
	List(ctx context.Context, f Filter) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}
