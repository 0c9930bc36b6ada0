package promo

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported rule discount strategies.
type DiscountType string

const (
	// DiscountPercentage takes Value percent off the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed takes a fixed amount off, capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
	// DiscountFreeLowest removes the cost of the cheapest unit in the cart.
	DiscountFreeLowest DiscountType = "free_lowest"
)

var (
	// ErrInvalidPromo is returned when a code is unknown or the cart does not
	// satisfy the rule's minimum item count.
	ErrInvalidPromo = errors.New("invalid promo code")
	// ErrPromoExpired is returned when a rule is outside its valid time window.
	ErrPromoExpired = errors.New("promo code expired")
	// ErrPromoUsageLimitReached is returned when a rule has exhausted its uses.
	ErrPromoUsageLimitReached = errors.New("promo code usage limit reached")
)

// Rule is a promo code stored in the database.
type Rule struct {
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	MinItems     int
	Description  string
	ValidFrom    *time.Time
	ValidUntil   *time.Time
	MaxUses      int
	Uses         int
	// MaxDiscount caps the computed amount when positive.
	MaxDiscount decimal.Decimal
}

// Discount is the computed amount and its label.
type Discount struct {
	Amount      decimal.Decimal
	Description string
}

// Item is a cart line as seen by rule evaluation.
type Item struct {
	ProductID string
	Price     decimal.Decimal
	Quantity  int
}

// RuleRepository looks up and redeems database rules.
type RuleRepository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
	IncrementUses(ctx context.Context, code string) error
}

var hundred = decimal.NewFromInt(100)

// Apply computes the discount rule gives for items.
func Apply(rule *Rule, items []Item) (Discount, error) {
	qty := 0
	subtotal := decimal.Zero
	for _, it := range items {
		qty += it.Quantity
		subtotal = subtotal.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	if rule.MinItems > 0 && qty < rule.MinItems {
		return Discount{}, ErrInvalidPromo
	}

	var amount decimal.Decimal
	switch rule.DiscountType {
	case DiscountPercentage:
		amount = subtotal.Mul(rule.Value).Div(hundred)
	case DiscountFixed:
		amount = decimal.Min(rule.Value, subtotal)
	case DiscountFreeLowest:
		amount = lowestUnitPrice(items)
	default:
		return Discount{}, errors.Errorf("unsupported discount type: %q", rule.DiscountType)
	}

	if rule.MaxDiscount.IsPositive() {
		amount = decimal.Min(amount, rule.MaxDiscount)
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return Discount{Amount: amount.Round(2), Description: rule.Description}, nil
}

func lowestUnitPrice(items []Item) decimal.Decimal {
	if len(items) == 0 {
		return decimal.Zero
	}
	lowest := items[0].Price
	for _, it := range items[1:] {
		if it.Price.LessThan(lowest) {
			lowest = it.Price
		}
	}
	return lowest
}

// RepoValidator checks database rules for eligibility.
type RepoValidator struct {
	repo RuleRepository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by repo.
func NewRepoValidator(repo RuleRepository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate looks up code, checks its time window and usage limit, and
// returns the rule with the discount it gives for items. Usage is not
// counted here; see Redeem.
func (v *RepoValidator) Validate(ctx context.Context, code string, items []Item) (*Rule, Discount, error) {
	rule, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidPromo) {
			return nil, Discount{}, ErrInvalidPromo
		}
		return nil, Discount{}, errors.Wrap(err, "lookup promo rule")
	}

	now := v.now()
	if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
		return nil, Discount{}, ErrPromoExpired
	}
	if rule.ValidUntil != nil && now.After(*rule.ValidUntil) {
		return nil, Discount{}, ErrPromoExpired
	}
	if rule.MaxUses > 0 && rule.Uses >= rule.MaxUses {
		return nil, Discount{}, ErrPromoUsageLimitReached
	}

	d, err := Apply(rule, items)
	if err != nil {
		return nil, Discount{}, err
	}
	return rule, d, nil
}

// Redeem counts one use of code.
func (v *RepoValidator) Redeem(ctx context.Context, code string) error {
	if err := v.repo.IncrementUses(ctx, code); err != nil {
		return errors.Wrap(err, "increment promo uses")
	}
	return nil
}
