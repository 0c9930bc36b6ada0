package promo

import "github.com/shopspring/decimal"

// InvalidCodeMessage is reported for codes that match nothing.
const InvalidCodeMessage = "Invalid promo code"

// State is the applied promo of a session.
//
// Discount is a fraction of the subtotal. Amount, when set, is an absolute
// discount produced by a database rule and takes precedence over Discount.
type State struct {
	Code     string           `json:"code,omitempty"`
	Discount decimal.Decimal  `json:"discount"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	Label    string           `json:"label,omitempty"`
	Error    string           `json:"error,omitempty"`
	FromRule bool             `json:"from_rule,omitempty"`
}

// Applied reports whether a code is currently in effect.
func (s State) Applied() bool {
	return s.Code != "" && s.Error == ""
}

// DiscountAmount is the amount taken off subtotal, rounded to 2 places and
// never more than subtotal.
func (s State) DiscountAmount(subtotal decimal.Decimal) decimal.Decimal {
	if !s.Applied() || !subtotal.IsPositive() {
		return decimal.Zero
	}
	amount := subtotal.Mul(s.Discount)
	if s.Amount != nil {
		amount = *s.Amount
	}
	return decimal.Min(amount, subtotal).Round(2)
}

// FinalTotal is subtotal minus the discount.
func (s State) FinalTotal(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Sub(s.DiscountAmount(subtotal))
}

// Evaluator applies codes from a static table.
type Evaluator struct {
	codes Table
	state State
}

// NewEvaluator returns an Evaluator with nothing applied.
func NewEvaluator(codes Table) *Evaluator {
	return &Evaluator{codes: codes}
}

// Apply replaces the current state with the result of applying code. A miss
// clears any previous discount and records InvalidCodeMessage.
func (e *Evaluator) Apply(code string) State {
	c, ok := e.codes.Lookup(code)
	if !ok {
		e.state = State{Discount: decimal.Zero, Error: InvalidCodeMessage}
		return e.state
	}
	e.state = State{Code: c.Code, Discount: c.Discount, Label: c.Label}
	return e.state
}

// State returns the current state.
func (e *Evaluator) State() State { return e.state }

// DiscountAmount applies the current state to subtotal.
func (e *Evaluator) DiscountAmount(subtotal decimal.Decimal) decimal.Decimal {
	return e.state.DiscountAmount(subtotal)
}

// FinalTotal applies the current state to subtotal.
func (e *Evaluator) FinalTotal(subtotal decimal.Decimal) decimal.Decimal {
	return e.state.FinalTotal(subtotal)
}

// Reset clears the applied code and any error.
func (e *Evaluator) Reset() {
	e.state = State{}
}
