package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/bookshelf/internal/domain/auth"
	"github.com/xenking/bookshelf/internal/domain/book"
	"github.com/xenking/bookshelf/internal/domain/cart"
	"github.com/xenking/bookshelf/internal/domain/checkout"
	"github.com/xenking/bookshelf/internal/domain/order"
	"github.com/xenking/bookshelf/internal/domain/session"
	"github.com/xenking/bookshelf/internal/domain/wishlist"
)

// apiError is the JSON error envelope. Fields and First are only set for
// validation failures.
type apiError struct {
	Code    int
	Message string
	Fields  map[string]string
	Order   []string
	First   string
}

func (a apiError) encode(e *jx.Encoder) {
	e.ObjStart()
	encInt(e, "code", a.Code)
	encStr(e, "message", a.Message)
	if a.Fields != nil {
		encStrMap(e, "fields", a.Fields, a.Order)
		encStr(e, "first", a.First)
	}
	e.ObjEnd()
}

func statusError(code int, msg string) apiError {
	return apiError{Code: code, Message: msg}
}

// mapError converts domain errors to API errors. ok is false for errors the
// client cannot act on.
func mapError(err error) (apiError, bool) {
	var (
		verr *checkout.ValidationError
		ierr *book.InvalidInputError
	)
	switch {
	case errors.As(err, &verr):
		return apiError{
			Code:    http.StatusUnprocessableEntity,
			Message: verr.Error(),
			Fields:  verr.Fields,
			Order:   customerFields,
			First:   verr.First,
		}, true
	case errors.As(err, &ierr):
		return apiError{
			Code:    http.StatusBadRequest,
			Message: ierr.Error(),
			Fields:  map[string]string{ierr.Field: ierr.Reason},
			Order:   []string{ierr.Field},
			First:   ierr.Field,
		}, true

	case errors.Is(err, errBadBody),
		errors.Is(err, session.ErrMissingID),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, checkout.ErrInvalidStep):
		return statusError(http.StatusBadRequest, rootMessage(err)), true

	case errors.Is(err, auth.ErrUnauthorized):
		return statusError(http.StatusUnauthorized, "unauthorized"), true
	case errors.Is(err, auth.ErrForbidden):
		return statusError(http.StatusForbidden, "forbidden"), true

	case errors.Is(err, book.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, cart.ErrProductNotFound),
		errors.Is(err, wishlist.ErrProductNotFound):
		return statusError(http.StatusNotFound, rootMessage(err)), true

	case errors.Is(err, cart.ErrOutOfStock),
		errors.Is(err, order.ErrNotCancelable),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrNotAtPayment),
		errors.Is(err, checkout.ErrAlreadyAtPayment),
		errors.Is(err, checkout.ErrStepLocked),
		errors.Is(err, checkout.ErrRequestKeyConflict):
		return statusError(http.StatusConflict, rootMessage(err)), true

	case errors.Is(err, book.ErrCoversDisabled):
		return statusError(http.StatusNotImplemented, book.ErrCoversDisabled.Error()), true
	case errors.Is(err, checkout.ErrOrderFailed):
		return statusError(http.StatusInternalServerError, checkout.OrderFailedMessage), false
	}
	return statusError(http.StatusInternalServerError, "internal server error"), false
}

// rootMessage is the message of the sentinel at the bottom of err's chain,
// so wrapping context is not leaked to clients.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	a, expected := mapError(err)
	if !expected {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, a.Code, a.encode)
}
