// Package checkout implements the three step checkout flow: cart review,
// delivery address and payment. Step changes are computed by the pure
// Transition function; Service persists drafts and submits orders.
package checkout

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Step is a checkout stage.
type Step int

const (
	StepCart    Step = 1
	StepAddress Step = 2
	StepPayment Step = 3
)

func (s Step) String() string {
	switch s {
	case StepCart:
		return "cart"
	case StepAddress:
		return "address"
	case StepPayment:
		return "payment"
	default:
		return fmt.Sprintf("Step(%d)", int(s))
	}
}

// Valid reports whether s is a known step.
func (s Step) Valid() bool {
	return s >= StepCart && s <= StepPayment
}

// Default delivery region prefilled for new drafts.
const (
	DefaultCity  = "Namakkal"
	DefaultState = "Tamil Nadu"
)

// Customer holds contact and delivery details.
type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

// FullAddress formats the delivery address stored on an order.
func (c Customer) FullAddress() string {
	return fmt.Sprintf("%s, %s, %s - %s", c.Address, c.City, c.State, c.Pincode)
}

// Draft is the per-session checkout state.
type Draft struct {
	Step     Step              `json:"step"`
	Customer Customer          `json:"customer"`
	Errors   map[string]string `json:"errors,omitempty"`
	// RequestKey identifies the order this draft will submit. It is issued
	// when the draft reaches StepPayment.
	RequestKey string `json:"request_key,omitempty"`
}

// NewDraft returns a draft at StepCart with default city and state.
func NewDraft() Draft {
	return Draft{
		Step:     StepCart,
		Customer: Customer{City: DefaultCity, State: DefaultState},
	}
}

func (d Draft) normalize() Draft {
	if !d.Step.Valid() {
		d.Step = StepCart
	}
	if d.Step == StepPayment && d.RequestKey == "" {
		d.Step = StepAddress
	}
	return d
}

// Sentinel errors for step changes.
var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrAlreadyAtPayment = errors.New("already at payment step")
	ErrStepLocked       = errors.New("step not reached yet")
	ErrInvalidStep      = errors.New("invalid step")
)

// Event is an input to Transition.
type Event interface {
	event()
}

// Next advances one step.
type Next struct {
	CartEmpty bool
	// RequestKey is assigned when advancing to StepPayment. A random key is
	// generated when empty.
	RequestKey string
}

// GoTo jumps back to an already reached step.
type GoTo struct {
	Step Step
}

// Edit replaces the customer details.
type Edit struct {
	Customer Customer
}

// Reset returns to a fresh draft.
type Reset struct{}

func (Next) event()  {}
func (GoTo) event()  {}
func (Edit) event()  {}
func (Reset) event() {}

// Transition applies ev to d. On error the returned draft is the one to
// keep: unchanged, or carrying field errors for a failed validation.
func Transition(d Draft, ev Event) (Draft, error) {
	d = d.normalize()

	switch ev := ev.(type) {
	case Next:
		switch d.Step {
		case StepCart:
			if ev.CartEmpty {
				return d, ErrEmptyCart
			}
			d.Step = StepAddress
			return d, nil
		case StepAddress:
			if err := Validate(d.Customer); err != nil {
				var verr *ValidationError
				if errors.As(err, &verr) {
					d.Errors = verr.Fields
				}
				return d, err
			}
			d.Errors = nil
			d.Step = StepPayment
			d.RequestKey = ev.RequestKey
			if d.RequestKey == "" {
				d.RequestKey = uuid.NewString()
			}
			return d, nil
		default:
			return d, ErrAlreadyAtPayment
		}

	case GoTo:
		if !ev.Step.Valid() {
			return d, ErrInvalidStep
		}
		if ev.Step > d.Step {
			return d, ErrStepLocked
		}
		d.Step = ev.Step
		d.Errors = nil
		if d.Step != StepPayment {
			d.RequestKey = ""
		}
		return d, nil

	case Edit:
		d.Errors = clearChanged(d.Errors, d.Customer, ev.Customer)
		d.Customer = ev.Customer
		return d, nil

	case Reset:
		return NewDraft(), nil

	default:
		return d, errors.Errorf("unknown event %T", ev)
	}
}

func clearChanged(errs map[string]string, prev, next Customer) map[string]string {
	if len(errs) == 0 {
		return nil
	}
	changed := map[string]bool{
		"name":    prev.Name != next.Name,
		"phone":   prev.Phone != next.Phone,
		"email":   prev.Email != next.Email,
		"address": prev.Address != next.Address,
		"pincode": prev.Pincode != next.Pincode,
	}
	out := make(map[string]string, len(errs))
	for k, v := range errs {
		if !changed[k] {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
