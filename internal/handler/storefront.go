package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/bookshelf/internal/domain/auth"
	"github.com/xenking/bookshelf/internal/domain/book"
	"github.com/xenking/bookshelf/internal/domain/catalog"
	"github.com/xenking/bookshelf/internal/notify"
)

func parseQuery(r *http.Request) (catalog.Query, int, error) {
	v := r.URL.Query()
	q := catalog.Query{
		Category: v.Get("category"),
		Search:   v.Get("q"),
		Sort:     catalog.ParseSort(v.Get("sort")),
	}
	for _, p := range []struct {
		name string
		dst  **decimal.Decimal
	}{
		{"minPrice", &q.MinPrice},
		{"maxPrice", &q.MaxPrice},
	} {
		raw := strings.TrimSpace(v.Get(p.name))
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return q, 0, &book.InvalidInputError{Field: p.name, Reason: "must be a number"}
		}
		*p.dst = &d
	}
	if s := v.Get("inStock"); s != "" {
		q.InStock, _ = strconv.ParseBool(s)
	}
	page, err := strconv.Atoi(v.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	return q, page, nil
}

func (h *Handler) listBooks(w http.ResponseWriter, r *http.Request) {
	q, page, err := parseQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Catalog.Browse(r.Context(), sessionID(r), q, page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encListing(e, res) })
}

func (h *Handler) getBook(w http.ResponseWriter, r *http.Request) {
	b, err := h.Catalog.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encBook(e, *b) })
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Catalog.Categories(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		arr(e, "categories", cats, encCategory)
		e.ObjEnd()
	})
}

func (h *Handler) listCombos(w http.ResponseWriter, r *http.Request) {
	combos, err := h.Combos.ListActive(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		arr(e, "combos", combos, h.encCombo)
		e.ObjEnd()
	})
}

func (h *Handler) listReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.Reviews.ListByBook(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		arr(e, "reviews", reviews, encReview)
		encInt(e, "count", len(reviews))
		e.ObjEnd()
	})
}

func displayName(p *auth.Principal) string {
	switch {
	case p.Name != "":
		return p.Name
	case p.Email != "":
		name, _, _ := strings.Cut(p.Email, "@")
		return name
	default:
		return "Reader"
	}
}

func (h *Handler) upsertReview(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	rv := book.Review{
		BookID:   r.PathValue("id"),
		UserID:   p.UserID,
		UserName: displayName(p),
	}
	err := readObject(w, r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "rating":
			rv.Rating, err = d.Int()
		case "comment":
			rv.Comment, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := rv.Validate(); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Reviews.Upsert(r.Context(), &rv); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encReview(e, rv) })
}

func (h *Handler) deleteReview(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	if err := h.Reviews.Delete(r.Context(), r.PathValue("id"), p.UserID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// contact forwards a contact form message. Delivery is best effort: the
// message is accepted even when the notifier fails.
func (h *Handler) contact(w http.ResponseWriter, r *http.Request) {
	var c notify.Contact
	err := readObject(w, r, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "name":
			c.Name, err = d.Str()
		case "email":
			c.Email, err = d.Str()
		case "phone":
			c.Phone, err = d.Str()
		case "message":
			c.Message, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	switch {
	case strings.TrimSpace(c.Name) == "":
		err = &book.InvalidInputError{Field: "name", Reason: "required"}
	case !strings.Contains(c.Email, "@"):
		err = &book.InvalidInputError{Field: "email", Reason: "must be a valid email address"}
	case strings.TrimSpace(c.Message) == "":
		err = &book.InvalidInputError{Field: "message", Reason: "required"}
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.Notifier.ContactMessage(r.Context(), c); err != nil {
		zctx.From(r.Context()).Warn("Send contact message", zap.Error(err))
	}
	writeJSON(w, http.StatusAccepted, func(e *jx.Encoder) {
		e.ObjStart()
		encStr(e, "status", "received")
		e.ObjEnd()
	})
}
