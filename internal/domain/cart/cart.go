// Package cart implements the shopping cart held in a storefront session.
package cart

import (
	"slices"

	"github.com/shopspring/decimal"
)

// Product is the catalog data needed to add a line to the cart.
type Product struct {
	ID            string
	Title         string
	Author        string
	Price         decimal.Decimal
	OriginalPrice *decimal.Decimal
	ImageURL      string
	Category      string
	IsCombo       bool
	ComboID       string
}

// Line is a cart entry. Its JSON form is the persisted session document.
type Line struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Author        string           `json:"author"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"original_price,omitempty"`
	ImageURL      string           `json:"image_url"`
	Category      string           `json:"category,omitempty"`
	Quantity      int              `json:"quantity"`
	IsCombo       bool             `json:"isCombo,omitempty"`
	ComboID       string           `json:"comboId,omitempty"`
}

// Subtotal is price times quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// MRP is the list price times quantity, falling back to the selling price.
func (l Line) MRP() decimal.Decimal {
	p := l.Price
	if l.OriginalPrice != nil {
		p = *l.OriginalPrice
	}
	return p.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Savings is the difference between list and selling totals.
type Savings struct {
	Amount  decimal.Decimal
	Percent int
}

// Cart is an immutable collection of lines with unique ids and positive
// quantities. Every mutation returns a new Cart with totals recomputed once.
type Cart struct {
	lines  []Line
	maxQty int

	total decimal.Decimal
	items int
	mrp   decimal.Decimal
}

// New builds a Cart from persisted lines. Lines with a non-positive quantity
// or a duplicate id are dropped. maxQty caps the quantity per line; 0 means
// unlimited.
func New(lines []Line, maxQty int) Cart {
	seen := make(map[string]struct{}, len(lines))
	clean := make([]Line, 0, len(lines))
	for _, l := range lines {
		if l.ID == "" || l.Quantity <= 0 {
			continue
		}
		if _, ok := seen[l.ID]; ok {
			continue
		}
		seen[l.ID] = struct{}{}
		if maxQty > 0 && l.Quantity > maxQty {
			l.Quantity = maxQty
		}
		clean = append(clean, l)
	}
	return build(clean, maxQty)
}

func build(lines []Line, maxQty int) Cart {
	c := Cart{
		lines:  lines,
		maxQty: maxQty,
		total:  decimal.Zero,
		mrp:    decimal.Zero,
	}
	for _, l := range lines {
		c.total = c.total.Add(l.Subtotal())
		c.mrp = c.mrp.Add(l.MRP())
		c.items += l.Quantity
	}
	return c
}

// Lines returns a copy of the cart lines in insertion order.
func (c Cart) Lines() []Line {
	return slices.Clone(c.lines)
}

// Len is the number of distinct lines.
func (c Cart) Len() int { return len(c.lines) }

// IsEmpty reports whether the cart has no lines.
func (c Cart) IsEmpty() bool { return len(c.lines) == 0 }

// Find returns the line with the given id.
func (c Cart) Find(id string) (Line, bool) {
	i := c.index(id)
	if i < 0 {
		return Line{}, false
	}
	return c.lines[i], true
}

func (c Cart) index(id string) int {
	return slices.IndexFunc(c.lines, func(l Line) bool { return l.ID == id })
}

// Add increments the quantity of an existing line or appends a new line with
// quantity 1. Adding past the quantity cap leaves the cart unchanged.
func (c Cart) Add(p Product) Cart {
	lines := slices.Clone(c.lines)
	if i := c.index(p.ID); i >= 0 {
		if c.maxQty > 0 && lines[i].Quantity >= c.maxQty {
			return c
		}
		lines[i].Quantity++
		return build(lines, c.maxQty)
	}
	lines = append(lines, Line{
		ID:            p.ID,
		Title:         p.Title,
		Author:        p.Author,
		Price:         p.Price,
		OriginalPrice: p.OriginalPrice,
		ImageURL:      p.ImageURL,
		Category:      p.Category,
		Quantity:      1,
		IsCombo:       p.IsCombo,
		ComboID:       p.ComboID,
	})
	return build(lines, c.maxQty)
}

// Remove deletes the line with the given id. Unknown ids are ignored.
func (c Cart) Remove(id string) Cart {
	i := c.index(id)
	if i < 0 {
		return c
	}
	return build(slices.Delete(slices.Clone(c.lines), i, i+1), c.maxQty)
}

// SetQuantity replaces a line's quantity. n <= 0 removes the line and values
// above the cap are clamped. Unknown ids are ignored.
func (c Cart) SetQuantity(id string, n int) Cart {
	if n <= 0 {
		return c.Remove(id)
	}
	i := c.index(id)
	if i < 0 {
		return c
	}
	if c.maxQty > 0 && n > c.maxQty {
		n = c.maxQty
	}
	lines := slices.Clone(c.lines)
	lines[i].Quantity = n
	return build(lines, c.maxQty)
}

// Clear empties the cart.
func (c Cart) Clear() Cart {
	return build(nil, c.maxQty)
}

// TotalAmount is the sum of price times quantity.
func (c Cart) TotalAmount() decimal.Decimal { return c.total }

// TotalItems is the sum of quantities.
func (c Cart) TotalItems() int { return c.items }

// TotalMRP is the sum of list price times quantity.
func (c Cart) TotalMRP() decimal.Decimal { return c.mrp }

// Savings reports how much the cart saves against list prices. Percent is
// rounded to the nearest integer and 0 for an empty cart.
func (c Cart) Savings() Savings {
	amount := c.mrp.Sub(c.total)
	s := Savings{Amount: amount}
	if c.mrp.IsPositive() {
		s.Percent = int(amount.Div(c.mrp).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
	}
	return s
}
