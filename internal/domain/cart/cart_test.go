package cart

import (
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProduct(id string, price int64) Product {
	return Product{ID: id, Title: "Book " + id, Author: "Author", Price: decimal.NewFromInt(price)}
}

func TestCart_AddTwice(t *testing.T) {
	c := New(nil, 0).Add(newProduct("b1", 100)).Add(newProduct("b1", 100))

	require.Equal(t, 1, c.Len())
	l, ok := c.Find("b1")
	require.True(t, ok)
	assert.Equal(t, 2, l.Quantity)
	assert.Equal(t, 2, c.TotalItems())
	assert.True(t, decimal.NewFromInt(200).Equal(c.TotalAmount()))
}

func TestCart_SetQuantityZeroRemoves(t *testing.T) {
	base := New(nil, 0).Add(newProduct("b1", 100)).Add(newProduct("b2", 50))

	viaSet := base.SetQuantity("b1", 0)
	viaRemove := base.Remove("b1")

	assert.Equal(t, viaRemove.Lines(), viaSet.Lines())
	assert.Equal(t, 1, viaSet.Len())
	assert.Equal(t, base.SetQuantity("b1", -3).Lines(), viaRemove.Lines())
}

func TestCart_UnknownIDsIgnored(t *testing.T) {
	c := New(nil, 0).Add(newProduct("b1", 100))

	assert.Equal(t, c.Lines(), c.Remove("nope").Lines())
	assert.Equal(t, c.Lines(), c.SetQuantity("nope", 4).Lines())
}

func TestCart_Totals(t *testing.T) {
	mrp := decimal.NewFromInt(500)
	p := newProduct("b1", 400)
	p.OriginalPrice = &mrp

	c := New(nil, 0).Add(p).Add(p).Add(newProduct("b2", 100))

	assert.True(t, decimal.NewFromInt(900).Equal(c.TotalAmount()))
	assert.True(t, decimal.NewFromInt(1100).Equal(c.TotalMRP()))
	s := c.Savings()
	assert.True(t, decimal.NewFromInt(200).Equal(s.Amount))
	assert.Equal(t, 18, s.Percent)
	assert.Equal(t, 3, c.TotalItems())
}

func TestCart_EmptySavings(t *testing.T) {
	c := New(nil, 0)
	assert.True(t, c.IsEmpty())
	assert.True(t, c.TotalAmount().IsZero())
	assert.Equal(t, 0, c.Savings().Percent)
}

func TestCart_MaxQuantity(t *testing.T) {
	p := newProduct("b1", 10)
	c := New(nil, 2).Add(p).Add(p).Add(p)

	l, _ := c.Find("b1")
	assert.Equal(t, 2, l.Quantity)

	c = c.SetQuantity("b1", 50)
	l, _ = c.Find("b1")
	assert.Equal(t, 2, l.Quantity)
}

func TestNew_DropsInvalidLines(t *testing.T) {
	c := New([]Line{
		{ID: "b1", Price: decimal.NewFromInt(10), Quantity: 1},
		{ID: "b1", Price: decimal.NewFromInt(10), Quantity: 5},
		{ID: "b2", Price: decimal.NewFromInt(10), Quantity: 0},
		{ID: "", Price: decimal.NewFromInt(10), Quantity: 1},
	}, 0)

	require.Equal(t, 1, c.Len())
	assert.Equal(t, 1, c.TotalItems())
}

func TestCart_ClearIsIdempotent(t *testing.T) {
	c := New(nil, 0).Add(newProduct("b1", 10)).Clear()
	assert.True(t, c.IsEmpty())
	assert.True(t, c.Clear().IsEmpty())
}

func TestCart_Immutable(t *testing.T) {
	a := New(nil, 0).Add(newProduct("b1", 10))
	_ = a.Add(newProduct("b1", 10))
	_ = a.SetQuantity("b1", 7)

	l, _ := a.Find("b1")
	assert.Equal(t, 1, l.Quantity)
}

// Random operation sequences must keep ids unique, quantities positive and
// totals equal to the sums over lines.
func TestCart_RandomSequences(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	ids := []string{"b1", "b2", "b3", "combo-1"}

	for run := 0; run < 200; run++ {
		c := New(nil, 0)
		for step := 0; step < 30; step++ {
			id := ids[rng.IntN(len(ids))]
			switch rng.IntN(4) {
			case 0, 1:
				c = c.Add(newProduct(id, int64(10+rng.IntN(90))))
			case 2:
				c = c.Remove(id)
			case 3:
				c = c.SetQuantity(id, rng.IntN(6)-1)
			}
		}

		seen := map[string]bool{}
		sum := decimal.Zero
		items := 0
		for _, l := range c.Lines() {
			require.False(t, seen[l.ID], "duplicate id %s", l.ID)
			seen[l.ID] = true
			require.Positive(t, l.Quantity)
			sum = sum.Add(l.Subtotal())
			items += l.Quantity
		}
		require.True(t, sum.Equal(c.TotalAmount()))
		require.Equal(t, items, c.TotalItems())
	}
}
