// Package notify sends transactional emails for placed orders and contact
// messages. Delivery is best effort; callers log failures.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/bookshelf/internal/domain/order"
)

// Contact is a message from the storefront contact form.
type Contact struct {
	Name    string
	Email   string
	Phone   string
	Message string
}

// Notifier delivers outbound notifications.
type Notifier interface {
	OrderPlaced(ctx context.Context, o *order.Order, items []order.Item) error
	ContactMessage(ctx context.Context, c Contact) error
}

// Nop discards every notification. It is used when email is not configured.
type Nop struct{}

func (Nop) OrderPlaced(context.Context, *order.Order, []order.Item) error { return nil }
func (Nop) ContactMessage(context.Context, Contact) error                { return nil }

// itemLines renders one "Title (xN) - ₹amount" line per item.
func itemLines(items []order.Item) string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		subtotal := it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		lines = append(lines, fmt.Sprintf("%s (x%d) - ₹%s", it.Title, it.Quantity, subtotal.StringFixed(0)))
	}
	return strings.Join(lines, "\n")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
