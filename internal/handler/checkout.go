package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/bookshelf/internal/domain/auth"
	"github.com/xenking/bookshelf/internal/domain/checkout"
)

// HeaderIdempotencyKey lets clients retry a submission safely.
const HeaderIdempotencyKey = "Idempotency-Key"

func (h *Handler) getCheckout(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Checkout.Get(r.Context(), sessionID(r), auth.FromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encSummary(e, sum) })
}

// applyEvent runs ev and answers with the stored draft. A failed validation
// answers 422 with the field errors, which are also kept in the draft.
func (h *Handler) applyEvent(w http.ResponseWriter, r *http.Request, ev checkout.Event) {
	sum, err := h.Checkout.Apply(r.Context(), sessionID(r), ev)
	var verr *checkout.ValidationError
	switch {
	case errors.As(err, &verr):
		a, _ := mapError(err)
		writeJSON(w, a.Code, func(e *jx.Encoder) {
			e.ObjStart()
			encInt(e, "code", a.Code)
			encStr(e, "message", a.Message)
			encStrMap(e, "fields", a.Fields, a.Order)
			encStr(e, "first", a.First)
			e.FieldStart("checkout")
			h.encSummary(e, sum)
			e.ObjEnd()
		})
	case err != nil:
		h.fail(w, r, err)
	default:
		writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encSummary(e, sum) })
	}
}

func (h *Handler) editCustomer(w http.ResponseWriter, r *http.Request) {
	var c checkout.Customer
	if err := readObject(w, r, decodeCustomer(&c)); err != nil {
		h.fail(w, r, err)
		return
	}
	if c.City == "" {
		c.City = checkout.DefaultCity
	}
	if c.State == "" {
		c.State = checkout.DefaultState
	}
	h.applyEvent(w, r, checkout.Edit{Customer: c})
}

func (h *Handler) nextStep(w http.ResponseWriter, r *http.Request) {
	h.applyEvent(w, r, checkout.Next{})
}

func (h *Handler) goToStep(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.PathValue("step"))
	if err != nil {
		h.fail(w, r, checkout.ErrInvalidStep)
		return
	}
	h.applyEvent(w, r, checkout.GoTo{Step: checkout.Step(n)})
}

func (h *Handler) submitOrder(w http.ResponseWriter, r *http.Request) {
	conf, err := h.Checkout.Submit(r.Context(), sessionID(r), auth.FromContext(r.Context()), r.Header.Get(HeaderIdempotencyKey))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusCreated
	if conf.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, func(e *jx.Encoder) { encConfirmation(e, conf) })
}

func (h *Handler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.ListForUser(r.Context(), auth.FromContext(r.Context()).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encOrders(e, orders) })
}

func (h *Handler) cancelMyOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.CancelForUser(r.Context(), auth.FromContext(r.Context()).UserID, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encOrder(e, *o) })
}
