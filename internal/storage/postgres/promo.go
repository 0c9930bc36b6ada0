package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/bookshelf/internal/domain/promo"
)

const (
	getPromoRuleSQL = `SELECT code, discount_type, value, min_items, description,
		valid_from, valid_until, max_uses, uses, max_discount
		FROM promo_codes WHERE UPPER(code) = UPPER($1) AND active = TRUE`

	incrementPromoUsesSQL = `UPDATE promo_codes SET uses = uses + 1 WHERE UPPER(code) = UPPER($1)`

	upsertPromoRuleSQL = `INSERT INTO promo_codes (code, discount_type, value, min_items, description,
		valid_from, valid_until, max_uses, max_discount)
		VALUES (UPPER($1), $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (code) DO UPDATE SET discount_type = EXCLUDED.discount_type, value = EXCLUDED.value,
			min_items = EXCLUDED.min_items, description = EXCLUDED.description,
			valid_from = EXCLUDED.valid_from, valid_until = EXCLUDED.valid_until,
			max_uses = EXCLUDED.max_uses, max_discount = EXCLUDED.max_discount, active = TRUE`
)

var _ promo.RuleRepository = (*PromoRuleRepository)(nil)

// PromoRuleRepository implements promo.RuleRepository backed by PostgreSQL.
type PromoRuleRepository struct {
	pool *pgxpool.Pool
}

// NewPromoRuleRepository returns a PromoRuleRepository that uses the given pool.
func NewPromoRuleRepository(pool *pgxpool.Pool) *PromoRuleRepository {
	return &PromoRuleRepository{pool: pool}
}

// FindByCode looks up an active rule by its code (case-insensitive).
// Returns promo.ErrInvalidPromo when no matching active rule exists.
func (r *PromoRuleRepository) FindByCode(ctx context.Context, code string) (*promo.Rule, error) {
	rows, err := r.pool.Query(ctx, getPromoRuleSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding promo rule %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanPromoRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promo.ErrInvalidPromo
		}
		return nil, fmt.Errorf("finding promo rule %q: %w", code, err)
	}
	return &rule, nil
}

// IncrementUses atomically increments the usage counter for code.
func (r *PromoRuleRepository) IncrementUses(ctx context.Context, code string) error {
	if _, err := r.pool.Exec(ctx, incrementPromoUsesSQL, code); err != nil {
		return fmt.Errorf("incrementing uses for promo %q: %w", code, err)
	}
	return nil
}

// Upsert creates or replaces a rule. Used by seeding.
func (r *PromoRuleRepository) Upsert(ctx context.Context, rule promo.Rule) error {
	_, err := r.pool.Exec(ctx, upsertPromoRuleSQL,
		rule.Code, string(rule.DiscountType), rule.Value, rule.MinItems, rule.Description,
		rule.ValidFrom, rule.ValidUntil, rule.MaxUses, rule.MaxDiscount,
	)
	if err != nil {
		return fmt.Errorf("upserting promo %q: %w", rule.Code, err)
	}
	return nil
}

func scanPromoRule(row pgx.CollectableRow) (promo.Rule, error) {
	var (
		rule         promo.Rule
		discountType string
		value        decimal.Decimal
		minItems     int32
		validFrom    *time.Time
		validUntil   *time.Time
		maxUses      int32
		uses         int32
		maxDiscount  decimal.Decimal
	)
	err := row.Scan(
		&rule.Code, &discountType, &value, &minItems, &rule.Description,
		&validFrom, &validUntil, &maxUses, &uses, &maxDiscount,
	)
	rule.DiscountType = promo.DiscountType(discountType)
	rule.Value = value
	rule.MinItems = int(minItems)
	rule.ValidFrom = validFrom
	rule.ValidUntil = validUntil
	rule.MaxUses = int(maxUses)
	rule.Uses = int(uses)
	rule.MaxDiscount = maxDiscount
	return rule, err
}
