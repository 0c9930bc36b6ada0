package analytics

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/bookshelf/internal/domain/order"
)

// RecentOrdersLimit caps the dashboard's recent orders list.
const RecentOrdersLimit = 5

// Dashboard is the admin landing page summary.
type Dashboard struct {
	TotalOrders   int
	TotalBooks    int
	TotalCombos   int
	TotalRevenue  decimal.Decimal
	PendingOrders int
	RecentOrders  []order.Order
}

// NewDashboard summarises all orders together with catalog sizes.
func NewDashboard(orders []order.Order, bookCount, comboCount int) Dashboard {
	d := Dashboard{
		TotalOrders:  len(orders),
		TotalBooks:   bookCount,
		TotalCombos:  comboCount,
		TotalRevenue: decimal.Zero,
	}
	for _, o := range orders {
		if o.Status != order.StatusCancelled {
			d.TotalRevenue = d.TotalRevenue.Add(o.TotalAmount)
		}
		if o.Status == order.StatusPending {
			d.PendingOrders++
		}
	}
	d.RecentOrders = newestFirst(orders)
	if len(d.RecentOrders) > RecentOrdersLimit {
		d.RecentOrders = d.RecentOrders[:RecentOrdersLimit]
	}
	return d
}

func newestFirst(orders []order.Order) []order.Order {
	out := slices.Clone(orders)
	if out == nil {
		out = []order.Order{}
	}
	slices.SortStableFunc(out, func(a, b order.Order) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out
}

// Segment is a spend tier.
type Segment string

const (
	SegmentVIP    Segment = "VIP"
	SegmentGold   Segment = "Gold"
	SegmentSilver Segment = "Silver"
	SegmentBronze Segment = "Bronze"
)

var (
	vipSpend    = decimal.NewFromInt(2000)
	goldSpend   = decimal.NewFromInt(1000)
	silverSpend = decimal.NewFromInt(500)
)

// SegmentFor places a lifetime spend in a tier.
func SegmentFor(spent decimal.Decimal) Segment {
	switch {
	case spent.GreaterThanOrEqual(vipSpend):
		return SegmentVIP
	case spent.GreaterThanOrEqual(goldSpend):
		return SegmentGold
	case spent.GreaterThanOrEqual(silverSpend):
		return SegmentSilver
	default:
		return SegmentBronze
	}
}

// Customer groups the orders placed with one phone number.
type Customer struct {
	Name         string
	Phone        string
	Email        string
	Address      string
	TotalOrders  int
	TotalSpent   decimal.Decimal
	Segment      Segment
	FirstOrderAt time.Time
	LastOrderAt  time.Time
	// Orders are newest first.
	Orders []order.Order
}

// Customers groups orders by phone number and orders the result by total
// spend. Contact details come from the newest order. search matches name,
// phone or email case-insensitively.
func Customers(orders []order.Order, search string) []Customer {
	byPhone := map[string]*Customer{}
	var keys []string
	for _, o := range newestFirst(orders) {
		c, ok := byPhone[o.CustomerPhone]
		if !ok {
			c = &Customer{
				Name:         o.CustomerName,
				Phone:        o.CustomerPhone,
				Email:        o.CustomerEmail,
				Address:      o.Address,
				TotalSpent:   decimal.Zero,
				FirstOrderAt: o.CreatedAt,
				LastOrderAt:  o.CreatedAt,
			}
			byPhone[o.CustomerPhone] = c
			keys = append(keys, o.CustomerPhone)
		}
		c.TotalOrders++
		c.TotalSpent = c.TotalSpent.Add(o.TotalAmount)
		c.Orders = append(c.Orders, o)
		if o.CreatedAt.Before(c.FirstOrderAt) {
			c.FirstOrderAt = o.CreatedAt
		}
	}

	needle := strings.ToLower(strings.TrimSpace(search))
	out := []Customer{}
	for _, k := range keys {
		c := byPhone[k]
		if needle != "" &&
			!strings.Contains(strings.ToLower(c.Name), needle) &&
			!strings.Contains(c.Phone, needle) &&
			!strings.Contains(strings.ToLower(c.Email), needle) {
			continue
		}
		c.Segment = SegmentFor(c.TotalSpent)
		out = append(out, *c)
	}
	slices.SortStableFunc(out, func(a, b Customer) int {
		if c := b.TotalSpent.Cmp(a.TotalSpent); c != 0 {
			return c
		}
		return cmp.Compare(a.Phone, b.Phone)
	})
	return out
}
