// Package catalog filters, sorts and paginates the book catalog for the
// storefront listing.
package catalog

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/xenking/bookshelf/internal/domain/book"
)

// CategoryAll disables category filtering.
const CategoryAll = "All"

// DefaultPageSize is used when no page size is configured.
const DefaultPageSize = 12

// Sort is a listing order.
type Sort string

const (
	SortTitle     Sort = "title"
	SortAuthor    Sort = "author"
	SortPriceLow  Sort = "price-low"
	SortPriceHigh Sort = "price-high"
)

// ParseSort maps unknown values to SortTitle.
func ParseSort(s string) Sort {
	switch Sort(s) {
	case SortAuthor, SortPriceLow, SortPriceHigh:
		return Sort(s)
	default:
		return SortTitle
	}
}

// Query selects and orders catalog entries. Zero values disable a filter.
type Query struct {
	Category string           `json:"category"`
	Search   string           `json:"search"`
	MinPrice *decimal.Decimal `json:"min_price,omitempty"`
	MaxPrice *decimal.Decimal `json:"max_price,omitempty"`
	InStock  bool             `json:"in_stock"`
	Sort     Sort             `json:"sort"`
}

// Normalize trims the search text and fills defaults.
func (q Query) Normalize() Query {
	q.Search = strings.TrimSpace(q.Search)
	q.Category = strings.TrimSpace(q.Category)
	if q.Category == "" {
		q.Category = CategoryAll
	}
	q.Sort = ParseSort(string(q.Sort))
	return q
}

// Equal reports whether q and o select the same listing.
func (q Query) Equal(o Query) bool {
	q, o = q.Normalize(), o.Normalize()
	return q.Category == o.Category &&
		q.Search == o.Search &&
		q.InStock == o.InStock &&
		q.Sort == o.Sort &&
		decimalPtrEqual(q.MinPrice, o.MinPrice) &&
		decimalPtrEqual(q.MaxPrice, o.MaxPrice)
}

func decimalPtrEqual(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// Match reports whether b passes every filter in q.
func (q Query) Match(b *book.Book) bool {
	if q.Category != "" && q.Category != CategoryAll && b.Category != q.Category {
		return false
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(b.Title), needle) &&
			!strings.Contains(strings.ToLower(b.Author), needle) &&
			!strings.Contains(strings.ToLower(b.Description), needle) {
			return false
		}
	}
	if q.MinPrice != nil && b.Price.LessThan(*q.MinPrice) {
		return false
	}
	if q.MaxPrice != nil && b.Price.GreaterThan(*q.MaxPrice) {
		return false
	}
	if q.InStock && !b.InStock {
		return false
	}
	return true
}

// Result is one page of a listing.
type Result struct {
	// FilteredCount is the number of books passing the filters.
	FilteredCount int
	// SortedCount is the length of the ordered listing the page is cut from.
	SortedCount int
	Page        int
	PageSize    int
	TotalPages  int
	Items       []book.Book
}

// Run filters, sorts and paginates books. page is clamped to at least 1;
// pages past the end have no items.
func Run(books []book.Book, q Query, page, pageSize int) Result {
	q = q.Normalize()
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	page = max(page, 1)

	filtered := make([]book.Book, 0, len(books))
	for i := range books {
		if q.Match(&books[i]) {
			filtered = append(filtered, books[i])
		}
	}

	sorted := sortBooks(filtered, q.Sort)

	res := Result{
		FilteredCount: len(filtered),
		SortedCount:   len(sorted),
		Page:          page,
		PageSize:      pageSize,
		TotalPages:    (len(sorted) + pageSize - 1) / pageSize,
		Items:         []book.Book{},
	}
	start := (page - 1) * pageSize
	if start < len(sorted) {
		end := min(start+pageSize, len(sorted))
		res.Items = sorted[start:end]
	}
	return res
}

func newCollator() *collate.Collator {
	return collate.New(language.English, collate.IgnoreCase)
}

func sortBooks(books []book.Book, by Sort) []book.Book {
	out := slices.Clone(books)
	switch by {
	case SortPriceLow:
		slices.SortStableFunc(out, func(a, b book.Book) int { return a.Price.Cmp(b.Price) })
	case SortPriceHigh:
		slices.SortStableFunc(out, func(a, b book.Book) int { return b.Price.Cmp(a.Price) })
	case SortAuthor:
		col := newCollator()
		slices.SortStableFunc(out, func(a, b book.Book) int { return col.CompareString(a.Author, b.Author) })
	default:
		col := newCollator()
		slices.SortStableFunc(out, func(a, b book.Book) int { return col.CompareString(a.Title, b.Title) })
	}
	return out
}

// View is the listing state remembered per session.
type View struct {
	Query Query `json:"query"`
	Page  int   `json:"page"`
}

// Update moves the view to next. Any change to the query returns to page 1;
// otherwise requestedPage is used.
func (v View) Update(next Query, requestedPage int) View {
	next = next.Normalize()
	if !v.Query.Equal(next) {
		return View{Query: next, Page: 1}
	}
	return View{Query: next, Page: max(requestedPage, 1)}
}

// CategoryCount is the number of books in a category.
type CategoryCount struct {
	Name  string
	Count int
}

// Categories counts books per category, ordered by name. Books without a
// category are not listed.
func Categories(books []book.Book) []CategoryCount {
	counts := map[string]int{}
	for _, b := range books {
		if b.Category == "" {
			continue
		}
		counts[b.Category]++
	}
	out := make([]CategoryCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, CategoryCount{Name: name, Count: n})
	}
	col := newCollator()
	slices.SortFunc(out, func(a, b CategoryCount) int { return col.CompareString(a.Name, b.Name) })
	return out
}
