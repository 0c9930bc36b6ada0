package promo

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/bookshelf/internal/domain/cart"
	"github.com/xenking/bookshelf/internal/domain/session"
)

// Messages recorded in State.Error for rule failures.
const (
	ExpiredMessage    = "Promo code expired"
	UsageLimitMessage = "Promo code usage limit reached"
)

// Service applies promo codes to a session. The static table is consulted
// first; database rules are a fallback when a rule repository is configured.
type Service struct {
	store session.Store
	codes Table
	rules *RepoValidator
}

// NewService creates a promo Service. rules may be nil.
func NewService(store session.Store, codes Table, rules RuleRepository) *Service {
	s := &Service{store: store, codes: codes}
	if rules != nil {
		s.rules = NewRepoValidator(rules)
	}
	return s
}

// Get returns the session promo state for a cart holding items. Database
// rules are evaluated again, so their discount follows the current cart and
// a rule the cart no longer satisfies reports an error instead.
func (s *Service) Get(ctx context.Context, sessionID string, items []Item) (State, error) {
	st, err := session.Load(ctx, s.store, sessionID, session.KeyPromo, State{})
	if err != nil {
		if errors.Is(err, session.ErrMissingID) {
			return State{}, err
		}
		zctx.From(ctx).Warn("Load promo", zap.String("session_id", sessionID), zap.Error(err))
		return State{}, nil
	}
	if !st.FromRule || !st.Applied() || s.rules == nil {
		return st, nil
	}

	cur, err := s.evaluateRule(ctx, st.Code, items)
	if err != nil {
		return State{}, err
	}
	if !cur.Applied() {
		cur.Code, cur.Label, cur.FromRule = st.Code, st.Label, true
	}
	return cur, nil
}

// Apply evaluates code against items and stores the resulting state. An
// unusable code is not an error: it yields a state with Error set.
func (s *Service) Apply(ctx context.Context, sessionID, code string, items []Item) (State, error) {
	st, err := s.evaluate(ctx, code, items)
	if err != nil {
		return State{}, err
	}
	if err := session.Save(ctx, s.store, sessionID, session.KeyPromo, st); err != nil {
		return State{}, errors.Wrap(err, "save promo")
	}
	return st, nil
}

func (s *Service) evaluate(ctx context.Context, code string, items []Item) (State, error) {
	st := NewEvaluator(s.codes).Apply(code)
	if st.Applied() || s.rules == nil || Normalize(code) == "" {
		return st, nil
	}
	return s.evaluateRule(ctx, Normalize(code), items)
}

func (s *Service) evaluateRule(ctx context.Context, code string, items []Item) (State, error) {
	rule, d, err := s.rules.Validate(ctx, code, items)
	switch {
	case errors.Is(err, ErrInvalidPromo):
		return State{Discount: decimal.Zero, Error: InvalidCodeMessage}, nil
	case errors.Is(err, ErrPromoExpired):
		return State{Discount: decimal.Zero, Error: ExpiredMessage}, nil
	case errors.Is(err, ErrPromoUsageLimitReached):
		return State{Discount: decimal.Zero, Error: UsageLimitMessage}, nil
	case err != nil:
		return State{}, err
	}

	out := State{Code: rule.Code, Label: rule.Description, FromRule: true, Discount: decimal.Zero}
	if rule.DiscountType == DiscountPercentage {
		out.Discount = rule.Value.Div(hundred)
		if rule.MaxDiscount.IsPositive() {
			out.Amount = &d.Amount
		}
	} else {
		out.Amount = &d.Amount
	}
	return out, nil
}

// Reset clears the session promo.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return session.ErrMissingID
	}
	if err := s.store.Delete(ctx, sessionID, session.KeyPromo); err != nil {
		return errors.Wrap(err, "delete promo")
	}
	return nil
}

// Redeem counts a use of st's code when it came from a database rule.
func (s *Service) Redeem(ctx context.Context, st State) error {
	if !st.Applied() || !st.FromRule || s.rules == nil {
		return nil
	}
	return s.rules.Redeem(ctx, st.Code)
}

// ItemsFromCart converts cart lines for rule evaluation.
func ItemsFromCart(c cart.Cart) []Item {
	lines := c.Lines()
	items := make([]Item, len(lines))
	for i, l := range lines {
		items[i] = Item{ProductID: l.ID, Price: l.Price, Quantity: l.Quantity}
	}
	return items
}
