package handler

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	ogenjson "github.com/ogen-go/ogen/json"
	"github.com/shopspring/decimal"

	"github.com/xenking/bookshelf/internal/domain/analytics"
	"github.com/xenking/bookshelf/internal/domain/book"
	"github.com/xenking/bookshelf/internal/domain/cart"
	"github.com/xenking/bookshelf/internal/domain/catalog"
	"github.com/xenking/bookshelf/internal/domain/checkout"
	"github.com/xenking/bookshelf/internal/domain/order"
	"github.com/xenking/bookshelf/internal/domain/promo"
	"github.com/xenking/bookshelf/internal/domain/wishlist"
)

const maxBodyBytes = 1 << 20

var errBadBody = errors.New("invalid request body")

func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	fn(e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// readObject decodes a JSON object body field by field. Unknown fields must
// be skipped by fn.
func readObject(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(errBadBody, err.Error())
	}
	if err := jx.DecodeBytes(raw).Obj(fn); err != nil {
		return errors.Wrap(errBadBody, err.Error())
	}
	return nil
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(strings.TrimSpace(s))
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(n.String())
	}
}

func decodeOptDecimal(d *jx.Decoder) (*decimal.Decimal, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := decodeDecimal(d)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	out := []string{}
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		out = append(out, s)
		return err
	})
	return out, err
}

func encMoney(e *jx.Encoder, field string, v decimal.Decimal) {
	e.FieldStart(field)
	e.Num(jx.Num(v.StringFixed(2)))
}

func encOptMoney(e *jx.Encoder, field string, v *decimal.Decimal) {
	e.FieldStart(field)
	if v == nil {
		e.Null()
		return
	}
	e.Num(jx.Num(v.StringFixed(2)))
}

func encStr(e *jx.Encoder, field, v string) {
	e.FieldStart(field)
	e.Str(v)
}

func encInt(e *jx.Encoder, field string, v int) {
	e.FieldStart(field)
	e.Int(v)
}

func encBool(e *jx.Encoder, field string, v bool) {
	e.FieldStart(field)
	e.Bool(v)
}

func encTime(e *jx.Encoder, field string, v time.Time) {
	e.FieldStart(field)
	if v.IsZero() {
		e.Null()
		return
	}
	ogenjson.EncodeDateTime(e, v.UTC())
}

func encStrMap(e *jx.Encoder, field string, m map[string]string, order []string) {
	e.FieldStart(field)
	e.ObjStart()
	for _, k := range order {
		if v, ok := m[k]; ok {
			e.FieldStart(k)
			e.Str(v)
		}
	}
	e.ObjEnd()
}

func arr[T any](e *jx.Encoder, field string, items []T, fn func(*jx.Encoder, T)) {
	e.FieldStart(field)
	e.ArrStart()
	for _, it := range items {
		fn(e, it)
	}
	e.ArrEnd()
}

// --- Catalog ---

func (h *Handler) encBook(e *jx.Encoder, b book.Book) {
	e.ObjStart()
	encStr(e, "id", b.ID)
	encStr(e, "title", b.Title)
	encStr(e, "author", b.Author)
	encStr(e, "description", b.Description)
	encStr(e, "category", b.Category)
	encMoney(e, "price", b.Price)
	encOptMoney(e, "originalPrice", b.OriginalPrice)
	encStr(e, "imageUrl", h.imageURL(b.ImageURL))
	encBool(e, "inStock", b.InStock)
	e.FieldStart("rating")
	e.Num(jx.Num(b.Rating.StringFixed(1)))
	encInt(e, "reviewCount", b.ReviewCount)
	encTime(e, "createdAt", b.CreatedAt)
	e.ObjEnd()
}

func (h *Handler) encCombo(e *jx.Encoder, c book.Combo) {
	e.ObjStart()
	encStr(e, "id", c.ID)
	encStr(e, "productId", c.CartID())
	encStr(e, "title", c.Title)
	encStr(e, "description", c.Description)
	encMoney(e, "price", c.Price)
	encOptMoney(e, "originalPrice", c.OriginalPrice)
	encStr(e, "imageUrl", h.imageURL(c.ImageURL))
	arr(e, "bookIds", c.BookIDs, func(e *jx.Encoder, id string) { e.Str(id) })
	encBool(e, "isActive", c.IsActive)
	encTime(e, "createdAt", c.CreatedAt)
	e.ObjEnd()
}

func encReview(e *jx.Encoder, r book.Review) {
	e.ObjStart()
	encStr(e, "id", r.ID)
	encStr(e, "bookId", r.BookID)
	encStr(e, "userId", r.UserID)
	encStr(e, "userName", r.UserName)
	encInt(e, "rating", r.Rating)
	encStr(e, "comment", r.Comment)
	encTime(e, "createdAt", r.CreatedAt)
	e.ObjEnd()
}

func (h *Handler) encListing(e *jx.Encoder, res catalog.Result) {
	e.ObjStart()
	arr(e, "items", res.Items, h.encBook)
	encInt(e, "filteredCount", res.FilteredCount)
	encInt(e, "sortedCount", res.SortedCount)
	encInt(e, "page", res.Page)
	encInt(e, "pageSize", res.PageSize)
	encInt(e, "totalPages", res.TotalPages)
	e.ObjEnd()
}

func encCategory(e *jx.Encoder, c catalog.CategoryCount) {
	e.ObjStart()
	encStr(e, "name", c.Name)
	encInt(e, "count", c.Count)
	e.ObjEnd()
}

// decodeBookFields fills b from an admin write body.
func decodeBookFields(b *book.Book) func(d *jx.Decoder, key string) error {
	return func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "title":
			b.Title, err = d.Str()
		case "author":
			b.Author, err = d.Str()
		case "description":
			b.Description, err = d.Str()
		case "category":
			b.Category, err = d.Str()
		case "price":
			b.Price, err = decodeDecimal(d)
		case "originalPrice":
			b.OriginalPrice, err = decodeOptDecimal(d)
		case "imageUrl":
			b.ImageURL, err = d.Str()
		case "inStock":
			b.InStock, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	}
}

func decodeComboFields(c *book.Combo) func(d *jx.Decoder, key string) error {
	return func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "title":
			c.Title, err = d.Str()
		case "description":
			c.Description, err = d.Str()
		case "price":
			c.Price, err = decodeDecimal(d)
		case "originalPrice":
			c.OriginalPrice, err = decodeOptDecimal(d)
		case "imageUrl":
			c.ImageURL, err = d.Str()
		case "bookIds":
			c.BookIDs, err = decodeStrings(d)
		case "isActive":
			c.IsActive, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	}
}

// --- Cart, promo, wishlist ---

func (h *Handler) encLine(e *jx.Encoder, l cart.Line) {
	e.ObjStart()
	encStr(e, "id", l.ID)
	encStr(e, "title", l.Title)
	encStr(e, "author", l.Author)
	encMoney(e, "price", l.Price)
	encOptMoney(e, "originalPrice", l.OriginalPrice)
	encStr(e, "imageUrl", h.imageURL(l.ImageURL))
	encStr(e, "category", l.Category)
	encInt(e, "quantity", l.Quantity)
	encMoney(e, "subtotal", l.Subtotal())
	encBool(e, "isCombo", l.IsCombo)
	if l.ComboID != "" {
		encStr(e, "comboId", l.ComboID)
	}
	e.ObjEnd()
}

func encPromo(e *jx.Encoder, st promo.State) {
	e.FieldStart("promo")
	e.ObjStart()
	encStr(e, "code", st.Code)
	e.FieldStart("discount")
	e.Num(jx.Num(st.Discount.String()))
	encStr(e, "label", st.Label)
	encStr(e, "error", st.Error)
	encBool(e, "applied", st.Applied())
	e.ObjEnd()
}

// cartView is a cart with the session promo applied to its totals.
type cartView struct {
	Cart   cart.Cart
	Promo  promo.State
	Opened bool
}

func (h *Handler) encCartFields(e *jx.Encoder, v cartView) {
	arr(e, "items", v.Cart.Lines(), h.encLine)
	encInt(e, "totalItems", v.Cart.TotalItems())
	encMoney(e, "totalAmount", v.Cart.TotalAmount())
	encMoney(e, "totalMrp", v.Cart.TotalMRP())
	s := v.Cart.Savings()
	e.FieldStart("savings")
	e.ObjStart()
	encMoney(e, "amount", s.Amount)
	encInt(e, "percent", s.Percent)
	e.ObjEnd()
	encPromo(e, v.Promo)
	encMoney(e, "discountAmount", v.Promo.DiscountAmount(v.Cart.TotalAmount()))
	encMoney(e, "finalTotal", v.Promo.FinalTotal(v.Cart.TotalAmount()))
}

func (h *Handler) encCart(e *jx.Encoder, v cartView) {
	e.ObjStart()
	h.encCartFields(e, v)
	if v.Opened {
		encBool(e, "opened", true)
	}
	e.ObjEnd()
}

func (h *Handler) encWishlist(e *jx.Encoder, wl wishlist.Wishlist) {
	e.ObjStart()
	arr(e, "items", wl.Entries(), func(e *jx.Encoder, en wishlist.Entry) {
		e.ObjStart()
		encStr(e, "id", en.ProductID)
		encStr(e, "title", en.Title)
		encStr(e, "author", en.Author)
		encMoney(e, "price", en.Price)
		encStr(e, "imageUrl", h.imageURL(en.ImageURL))
		encStr(e, "category", en.Category)
		e.ObjEnd()
	})
	encInt(e, "count", wl.Count())
	e.ObjEnd()
}

// --- Checkout ---

var customerFields = []string{"name", "phone", "email", "address", "pincode"}

func encCustomer(e *jx.Encoder, c checkout.Customer) {
	e.FieldStart("customer")
	e.ObjStart()
	encStr(e, "name", c.Name)
	encStr(e, "phone", c.Phone)
	encStr(e, "email", c.Email)
	encStr(e, "address", c.Address)
	encStr(e, "city", c.City)
	encStr(e, "state", c.State)
	encStr(e, "pincode", c.Pincode)
	e.ObjEnd()
}

func decodeCustomer(c *checkout.Customer) func(d *jx.Decoder, key string) error {
	return func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "name":
			c.Name, err = d.Str()
		case "phone":
			c.Phone, err = d.Str()
		case "email":
			c.Email, err = d.Str()
		case "address":
			c.Address, err = d.Str()
		case "city":
			c.City, err = d.Str()
		case "state":
			c.State, err = d.Str()
		case "pincode":
			c.Pincode, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}
}

func (h *Handler) encSummary(e *jx.Encoder, s *checkout.Summary) {
	e.ObjStart()
	encInt(e, "step", int(s.Draft.Step))
	encStr(e, "stepName", s.Draft.Step.String())
	encCustomer(e, s.Draft.Customer)
	encStrMap(e, "errors", s.Draft.Errors, customerFields)
	e.FieldStart("cart")
	h.encCart(e, cartView{Cart: s.Cart, Promo: s.Promo})
	encMoney(e, "subtotal", s.Cart.TotalAmount())
	encMoney(e, "discount", s.Discount)
	encMoney(e, "delivery", s.Delivery)
	encMoney(e, "total", s.Total)
	e.ObjEnd()
}

func encConfirmation(e *jx.Encoder, c *checkout.Confirmation) {
	e.ObjStart()
	encStr(e, "reference", c.Reference)
	encStr(e, "orderId", c.OrderID)
	encMoney(e, "total", c.Total)
	encBool(e, "replayed", c.Replayed)
	e.ObjEnd()
}

// --- Orders and analytics ---

func (h *Handler) encOrder(e *jx.Encoder, o order.Order) {
	e.ObjStart()
	encStr(e, "id", o.ID)
	encStr(e, "customerName", o.CustomerName)
	encStr(e, "customerPhone", o.CustomerPhone)
	encStr(e, "customerEmail", o.CustomerEmail)
	encStr(e, "address", o.Address)
	encMoney(e, "totalAmount", o.TotalAmount)
	encStr(e, "status", string(o.Status))
	encBool(e, "cancelable", o.Status.UserCancelable())
	encTime(e, "createdAt", o.CreatedAt)
	// Snapshots that fail to parse are listed without items.
	items, _ := order.DecodeItems(o.ItemsJSON)
	arr(e, "items", items, func(e *jx.Encoder, it order.Item) {
		e.ObjStart()
		encStr(e, "id", it.ID)
		encStr(e, "title", it.Title)
		encStr(e, "author", it.Author)
		encMoney(e, "price", it.Price)
		encInt(e, "quantity", it.Quantity)
		encStr(e, "category", it.Category)
		encStr(e, "imageUrl", h.imageURL(it.ImageURL))
		encBool(e, "isCombo", it.IsCombo)
		e.ObjEnd()
	})
	e.ObjEnd()
}

func (h *Handler) encOrders(e *jx.Encoder, orders []order.Order) {
	e.ObjStart()
	arr(e, "orders", orders, h.encOrder)
	encInt(e, "count", len(orders))
	e.ObjEnd()
}

func (h *Handler) encDashboard(e *jx.Encoder, d analytics.Dashboard) {
	e.ObjStart()
	encInt(e, "totalOrders", d.TotalOrders)
	encInt(e, "totalBooks", d.TotalBooks)
	encInt(e, "totalCombos", d.TotalCombos)
	encMoney(e, "totalRevenue", d.TotalRevenue)
	encInt(e, "pendingOrders", d.PendingOrders)
	arr(e, "recentOrders", d.RecentOrders, h.encOrder)
	e.ObjEnd()
}

func encSnapshot(e *jx.Encoder, s analytics.Snapshot) {
	e.ObjStart()
	encStr(e, "range", string(s.Window))
	encMoney(e, "totalRevenue", s.TotalRevenue)
	encInt(e, "totalOrders", s.TotalOrders)
	encMoney(e, "avgOrderValue", s.AvgOrderValue)
	arr(e, "revenueByCategory", s.RevenueByCategory, func(e *jx.Encoder, c analytics.CategoryRevenue) {
		e.ObjStart()
		encStr(e, "name", c.Name)
		encMoney(e, "revenue", c.Revenue)
		e.ObjEnd()
	})
	arr(e, "bestSellingBooks", s.BestSellingBooks, func(e *jx.Encoder, b analytics.BookSales) {
		e.ObjStart()
		encStr(e, "title", b.Title)
		encStr(e, "author", b.Author)
		encInt(e, "quantity", b.Quantity)
		encMoney(e, "revenue", b.Revenue)
		e.ObjEnd()
	})
	arr(e, "salesByStatus", s.SalesByStatus, func(e *jx.Encoder, c analytics.StatusCount) {
		e.ObjStart()
		encStr(e, "status", string(c.Status))
		encInt(e, "count", c.Count)
		e.ObjEnd()
	})
	encMoney(e, "revenueThisMonth", s.RevenueThisMonth)
	encMoney(e, "revenueLastMonth", s.RevenueLastMonth)
	e.FieldStart("revenueGrowth")
	e.Num(jx.Num(s.RevenueGrowth.StringFixed(1)))
	encInt(e, "ordersThisMonth", s.OrdersThisMonth)
	encInt(e, "ordersLastMonth", s.OrdersLastMonth)
	e.FieldStart("ordersGrowth")
	e.Num(jx.Num(s.OrdersGrowth.StringFixed(1)))
	e.ObjEnd()
}

func (h *Handler) encCustomer(e *jx.Encoder, c analytics.Customer) {
	e.ObjStart()
	encStr(e, "name", c.Name)
	encStr(e, "phone", c.Phone)
	encStr(e, "email", c.Email)
	encStr(e, "address", c.Address)
	encInt(e, "totalOrders", c.TotalOrders)
	encMoney(e, "totalSpent", c.TotalSpent)
	encStr(e, "segment", string(c.Segment))
	encTime(e, "firstOrderAt", c.FirstOrderAt)
	encTime(e, "lastOrderAt", c.LastOrderAt)
	arr(e, "orders", c.Orders, h.encOrder)
	e.ObjEnd()
}
