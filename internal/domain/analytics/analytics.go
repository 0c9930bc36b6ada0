// Package analytics reduces order history into admin reporting views.
package analytics

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/bookshelf/internal/domain/order"
)

// Unknown labels items missing a category, title or author.
const Unknown = "Unknown"

// BestSellersLimit caps the best-selling list.
const BestSellersLimit = 10

// Window restricts which orders a Snapshot covers.
type Window string

const (
	WindowAll   Window = "all"
	WindowMonth Window = "month"
	WindowWeek  Window = "week"
)

// ParseWindow maps unknown values to WindowAll.
func ParseWindow(s string) Window {
	switch Window(s) {
	case WindowMonth, WindowWeek:
		return Window(s)
	default:
		return WindowAll
	}
}

// Start returns the earliest creation time included by w, or the zero time
// for WindowAll.
func (w Window) Start(now time.Time) time.Time {
	switch w {
	case WindowMonth:
		return monthStart(now)
	case WindowWeek:
		return now.Add(-7 * 24 * time.Hour)
	default:
		return time.Time{}
	}
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

type CategoryRevenue struct {
	Name    string
	Revenue decimal.Decimal
}

type BookSales struct {
	Title    string
	Author   string
	Quantity int
	Revenue  decimal.Decimal
}

type StatusCount struct {
	Status order.Status
	Count  int
}

// Snapshot is the aggregate over one window of orders. Monthly figures
// always cover the full order history.
type Snapshot struct {
	Window            Window
	TotalRevenue      decimal.Decimal
	TotalOrders       int
	AvgOrderValue     decimal.Decimal
	RevenueByCategory []CategoryRevenue
	BestSellingBooks  []BookSales
	SalesByStatus     []StatusCount

	RevenueThisMonth decimal.Decimal
	RevenueLastMonth decimal.Decimal
	RevenueGrowth    decimal.Decimal
	OrdersThisMonth  int
	OrdersLastMonth  int
	OrdersGrowth     decimal.Decimal
}

// Aggregate computes a Snapshot. Cancelled orders are left out of revenue
// but still counted per status. Orders whose item snapshot cannot be parsed
// contribute to totals only.
func Aggregate(ctx context.Context, orders []order.Order, window Window, now time.Time) Snapshot {
	snap := Snapshot{
		Window:            window,
		TotalRevenue:      decimal.Zero,
		AvgOrderValue:     decimal.Zero,
		RevenueByCategory: []CategoryRevenue{},
		BestSellingBooks:  []BookSales{},
		SalesByStatus:     []StatusCount{},
	}

	start := window.Start(now)
	var (
		active     int
		byCategory = map[string]decimal.Decimal{}
		byTitle    = map[string]*BookSales{}
		byStatus   = map[order.Status]int{}
	)
	for i := range orders {
		o := &orders[i]
		if o.CreatedAt.Before(start) {
			continue
		}
		snap.TotalOrders++
		byStatus[o.Status]++
		if o.Status == order.StatusCancelled {
			continue
		}
		active++
		snap.TotalRevenue = snap.TotalRevenue.Add(o.TotalAmount)

		items, err := order.DecodeItems(o.ItemsJSON)
		if err != nil {
			zctx.From(ctx).Warn("Skip order items", zap.String("order_id", o.ID), zap.Error(err))
			continue
		}
		for _, it := range items {
			revenue := it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))

			cat := orUnknown(it.Category)
			byCategory[cat] = byCategory[cat].Add(revenue)

			title := orUnknown(it.Title)
			bs, ok := byTitle[title]
			if !ok {
				bs = &BookSales{Title: title, Author: orUnknown(it.Author), Revenue: decimal.Zero}
				byTitle[title] = bs
			}
			bs.Quantity += it.Quantity
			bs.Revenue = bs.Revenue.Add(revenue)
		}
	}

	if active > 0 {
		snap.AvgOrderValue = snap.TotalRevenue.Div(decimal.NewFromInt(int64(active))).Round(2)
	}

	for name, rev := range byCategory {
		snap.RevenueByCategory = append(snap.RevenueByCategory, CategoryRevenue{Name: name, Revenue: rev.Round(2)})
	}
	slices.SortFunc(snap.RevenueByCategory, func(a, b CategoryRevenue) int {
		if c := b.Revenue.Cmp(a.Revenue); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})

	for _, bs := range byTitle {
		snap.BestSellingBooks = append(snap.BestSellingBooks, *bs)
	}
	slices.SortFunc(snap.BestSellingBooks, func(a, b BookSales) int {
		if a.Quantity != b.Quantity {
			return b.Quantity - a.Quantity
		}
		return strings.Compare(a.Title, b.Title)
	})
	if len(snap.BestSellingBooks) > BestSellersLimit {
		snap.BestSellingBooks = snap.BestSellingBooks[:BestSellersLimit]
	}

	snap.SalesByStatus = statusCounts(byStatus)
	monthOverMonth(&snap, orders, now)
	return snap
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return Unknown
	}
	return s
}

// statusCounts lists known statuses in lifecycle order, then any others
// alphabetically. Statuses with no orders are omitted.
func statusCounts(m map[order.Status]int) []StatusCount {
	out := []StatusCount{}
	for _, st := range order.Statuses {
		if n := m[st]; n > 0 {
			out = append(out, StatusCount{Status: st, Count: n})
		}
	}
	var other []order.Status
	for st := range m {
		if !slices.Contains(order.Statuses, st) {
			other = append(other, st)
		}
	}
	slices.Sort(other)
	for _, st := range other {
		out = append(out, StatusCount{Status: st, Count: m[st]})
	}
	return out
}

// monthOverMonth compares the calendar month containing now with the one
// before it. Both months are half-open intervals.
func monthOverMonth(snap *Snapshot, orders []order.Order, now time.Time) {
	cur := monthStart(now)
	next := cur.AddDate(0, 1, 0)
	prev := cur.AddDate(0, -1, 0)

	snap.RevenueThisMonth = decimal.Zero
	snap.RevenueLastMonth = decimal.Zero
	for i := range orders {
		o := &orders[i]
		var (
			rev   *decimal.Decimal
			count *int
		)
		switch {
		case !o.CreatedAt.Before(cur) && o.CreatedAt.Before(next):
			rev, count = &snap.RevenueThisMonth, &snap.OrdersThisMonth
		case !o.CreatedAt.Before(prev) && o.CreatedAt.Before(cur):
			rev, count = &snap.RevenueLastMonth, &snap.OrdersLastMonth
		default:
			continue
		}
		*count++
		if o.Status != order.StatusCancelled {
			*rev = rev.Add(o.TotalAmount)
		}
	}

	snap.RevenueGrowth = Growth(snap.RevenueThisMonth, snap.RevenueLastMonth)
	snap.OrdersGrowth = Growth(decimal.NewFromInt(int64(snap.OrdersThisMonth)), decimal.NewFromInt(int64(snap.OrdersLastMonth)))
}

// Growth is the percentage change from prev to cur rounded to one decimal
// place, or zero when prev is zero.
func Growth(cur, prev decimal.Decimal) decimal.Decimal {
	if prev.IsZero() {
		return decimal.Zero
	}
	return cur.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(1)
}
