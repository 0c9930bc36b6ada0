// Package promo evaluates promo codes against a cart subtotal. Codes come from
// a static table compiled into the binary and, as a fallback, from rules
// stored in the database.
package promo

import (
	_ "embed"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed codes.yaml
var codesYAML []byte

// Code is a static promo code entry.
type Code struct {
	Code     string
	Discount decimal.Decimal
	Label    string
}

// Table maps normalised codes to their entries.
type Table map[string]Code

type codeRecord struct {
	Code     string `yaml:"code"`
	Discount string `yaml:"discount"`
	Label    string `yaml:"label"`
}

// ParseTable decodes a YAML list of codes. Discounts must be fractions in (0, 1].
func ParseTable(data []byte) (Table, error) {
	var records []codeRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrap(err, "decode codes")
	}

	t := make(Table, len(records))
	for _, r := range records {
		code := Normalize(r.Code)
		if code == "" {
			return nil, errors.New("empty promo code")
		}
		d, err := decimal.NewFromString(r.Discount)
		if err != nil {
			return nil, errors.Wrapf(err, "code %s: parse discount", code)
		}
		if !d.IsPositive() || d.GreaterThan(decimal.NewFromInt(1)) {
			return nil, errors.Errorf("code %s: discount %s outside (0, 1]", code, d)
		}
		if _, dup := t[code]; dup {
			return nil, errors.Errorf("code %s: duplicate", code)
		}
		t[code] = Code{Code: code, Discount: d, Label: r.Label}
	}
	return t, nil
}

// DefaultTable returns the embedded storefront codes.
func DefaultTable() Table {
	t, err := ParseTable(codesYAML)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup finds code after normalisation.
func (t Table) Lookup(code string) (Code, bool) {
	c, ok := t[Normalize(code)]
	return c, ok
}

// Normalize trims and upper-cases a user supplied code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
