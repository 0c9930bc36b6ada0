package main

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/bookshelf/internal/domain/book"
)

// parseBook decodes one dump line. Prices may be numbers or strings and
// in_stock defaults to true. Ids are assigned on insert.
func parseBook(line []byte) (book.Book, error) {
	b := book.Book{InStock: true}
	d := jx.DecodeBytes(line)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "title":
			b.Title, err = d.Str()
		case "author":
			b.Author, err = d.Str()
		case "description":
			b.Description, err = d.Str()
		case "category":
			b.Category, err = d.Str()
		case "image_url":
			b.ImageURL, err = d.Str()
		case "in_stock":
			b.InStock, err = d.Bool()
		case "price":
			b.Price, err = decimalValue(d)
		case "original_price":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var v decimal.Decimal
			if v, err = decimalValue(d); err == nil {
				b.OriginalPrice = &v
			}
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		return book.Book{}, errors.Wrap(err, "decode")
	}
	b.Title = strings.TrimSpace(b.Title)
	b.Author = strings.TrimSpace(b.Author)
	if err := b.Validate(); err != nil {
		return book.Book{}, err
	}
	return b, nil
}

func decimalValue(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(n.String())
	}
}
