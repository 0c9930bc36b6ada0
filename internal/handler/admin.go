package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/bookshelf/internal/domain/analytics"
	"github.com/xenking/bookshelf/internal/domain/book"
)

var allowedCoverTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.Analytics.Dashboard(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encDashboard(e, d) })
}

func (h *Handler) analytics(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Analytics.Snapshot(r.Context(), analytics.ParseWindow(r.URL.Query().Get("range")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encSnapshot(e, snap) })
}

func (h *Handler) customers(w http.ResponseWriter, r *http.Request) {
	list, err := h.Analytics.Customers(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		arr(e, "customers", list, h.encCustomer)
		encInt(e, "count", len(list))
		e.ObjEnd()
	})
}

func (h *Handler) adminListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orders, err := h.Orders.ListForAdmin(r.Context(), q.Get("status"), q.Get("q"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encOrders(e, orders) })
}

func (h *Handler) adminSetOrderStatus(w http.ResponseWriter, r *http.Request) {
	var status string
	err := readObject(w, r, func(d *jx.Decoder, key string) (err error) {
		if key == "status" {
			status, err = d.Str()
			return err
		}
		return d.Skip()
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	o, err := h.Orders.SetStatus(r.Context(), r.PathValue("id"), status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encOrder(e, *o) })
}

func (h *Handler) adminDeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.Orders.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) createBook(w http.ResponseWriter, r *http.Request) {
	b := book.Book{InStock: true}
	if err := readObject(w, r, decodeBookFields(&b)); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := b.Validate(); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Books.Create(r.Context(), &b); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { h.encBook(e, b) })
}

// updateBook applies the fields present in the body on top of the stored
// book.
func (h *Handler) updateBook(w http.ResponseWriter, r *http.Request) {
	b, err := h.Books.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := readObject(w, r, decodeBookFields(b)); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := b.Validate(); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Books.Update(r.Context(), b); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encBook(e, *b) })
}

func (h *Handler) deleteBook(w http.ResponseWriter, r *http.Request) {
	if err := h.Books.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// uploadCover stores the multipart "cover" file and points the book at it.
func (h *Handler) uploadCover(w http.ResponseWriter, r *http.Request) {
	if h.Covers == nil {
		h.fail(w, r, book.ErrCoversDisabled)
		return
	}
	ctx := r.Context()
	b, err := h.Books.Get(ctx, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxCoverBytes+(64<<10))
	f, hdr, err := r.FormFile("cover")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, &book.InvalidInputError{Field: "cover", Reason: "file is too large"})
			return
		}
		h.fail(w, r, &book.InvalidInputError{Field: "cover", Reason: "file is required"})
		return
	}
	defer func() { _ = f.Close() }()

	contentType := hdr.Header.Get("Content-Type")
	switch {
	case !allowedCoverTypes[contentType]:
		h.fail(w, r, &book.InvalidInputError{Field: "cover", Reason: "must be a JPEG, PNG or WebP image"})
		return
	case hdr.Size > h.maxCoverBytes:
		h.fail(w, r, &book.InvalidInputError{Field: "cover", Reason: "file is too large"})
		return
	}

	url, err := h.Covers.PutCover(ctx, b.ID, contentType, f, hdr.Size)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Books.SetImage(ctx, b.ID, url); err != nil {
		h.fail(w, r, err)
		return
	}
	b.ImageURL = url
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encBook(e, *b) })
}

func (h *Handler) adminListCombos(w http.ResponseWriter, r *http.Request) {
	combos, err := h.Combos.ListAll(r.Context())
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

func (h *Handler) createCombo(w http.ResponseWriter, r *http.Request) {
	c := book.Combo{IsActive: true}
	if err := readObject(w, r, decodeComboFields(&c)); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := c.Validate(); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Combos.Create(r.Context(), &c); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { h.encCombo(e, c) })
}

func (h *Handler) updateCombo(w http.ResponseWriter, r *http.Request) {
	c, err := h.Combos.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := readObject(w, r, decodeComboFields(c)); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := c.Validate(); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Combos.Update(r.Context(), c); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encCombo(e, *c) })
}

func (h *Handler) deleteCombo(w http.ResponseWriter, r *http.Request) {
	if err := h.Combos.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
