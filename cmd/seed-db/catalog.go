package main

import (
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/bookshelf/internal/domain/book"
	"github.com/xenking/bookshelf/internal/domain/promo"
)

type bookJSON struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Author        string           `json:"author"`
	Description   string           `json:"description"`
	Category      string           `json:"category"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"original_price"`
	ImageURL      string           `json:"image_url"`
	InStock       bool             `json:"in_stock"`
}

type comboJSON struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"original_price"`
	ImageURL      string           `json:"image_url"`
	BookIDs       []string         `json:"book_ids"`
	IsActive      bool             `json:"is_active"`
}

type promoRuleJSON struct {
	Code         string          `json:"code"`
	DiscountType string          `json:"discount_type"`
	Value        decimal.Decimal `json:"value"`
	MinItems     int             `json:"min_items"`
	Description  string          `json:"description"`
	MaxUses      int             `json:"max_uses"`
	MaxDiscount  decimal.Decimal `json:"max_discount"`
}

type catalog struct {
	Books      []book.Book
	Combos     []book.Combo
	PromoRules []promo.Rule
}

// parseCatalog decodes and validates a seed catalog. Combos must reference
// books from the same file.
func parseCatalog(raw []byte) (*catalog, error) {
	var in struct {
		Books      []bookJSON      `json:"books"`
		Combos     []comboJSON     `json:"combos"`
		PromoRules []promoRuleJSON `json:"promo_rules"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, errors.Wrap(err, "decode catalog JSON")
	}

	out := &catalog{}
	ids := make(map[string]bool, len(in.Books))
	for _, b := range in.Books {
		bk := book.Book{
			ID:            b.ID,
			Title:         b.Title,
			Author:        b.Author,
			Description:   b.Description,
			Category:      b.Category,
			Price:         b.Price,
			OriginalPrice: b.OriginalPrice,
			ImageURL:      b.ImageURL,
			InStock:       b.InStock,
		}
		if b.ID == "" || ids[b.ID] {
			return nil, errors.Errorf("book %q: missing or duplicate id", b.Title)
		}
		if err := bk.Validate(); err != nil {
			return nil, errors.Wrapf(err, "book %s", b.ID)
		}
		ids[b.ID] = true
		out.Books = append(out.Books, bk)
	}

	for _, c := range in.Combos {
		cb := book.Combo{
			ID:            c.ID,
			Title:         c.Title,
			Description:   c.Description,
			Price:         c.Price,
			OriginalPrice: c.OriginalPrice,
			ImageURL:      c.ImageURL,
			BookIDs:       c.BookIDs,
			IsActive:      c.IsActive,
		}
		if err := cb.Validate(); err != nil {
			return nil, errors.Wrapf(err, "combo %s", c.ID)
		}
		for _, id := range c.BookIDs {
			if !ids[id] {
				return nil, errors.Errorf("combo %s: unknown book %s", c.ID, id)
			}
		}
		out.Combos = append(out.Combos, cb)
	}

	for _, r := range in.PromoRules {
		rule := promo.Rule{
			Code:         promo.Normalize(r.Code),
			DiscountType: promo.DiscountType(r.DiscountType),
			Value:        r.Value,
			MinItems:     r.MinItems,
			Description:  r.Description,
			MaxUses:      r.MaxUses,
			MaxDiscount:  r.MaxDiscount,
		}
		switch rule.DiscountType {
		case promo.DiscountPercentage, promo.DiscountFixed, promo.DiscountFreeLowest:
		default:
			return nil, errors.Errorf("promo %s: unsupported discount type %q", r.Code, r.DiscountType)
		}
		out.PromoRules = append(out.PromoRules, rule)
	}
	return out, nil
}
