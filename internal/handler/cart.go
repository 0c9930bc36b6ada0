package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/bookshelf/internal/domain/cart"
	"github.com/xenking/bookshelf/internal/domain/promo"
)

func readProductID(w http.ResponseWriter, r *http.Request) (string, error) {
	var id string
	err := readObject(w, r, func(d *jx.Decoder, key string) (err error) {
		if key == "productId" {
			id, err = d.Str()
			return err
		}
		return d.Skip()
	})
	if err == nil && id == "" {
		err = errBadBody
	}
	return id, err
}

// respondCart writes c with the session's promo state.
func (h *Handler) respondCart(w http.ResponseWriter, r *http.Request, status int, c cart.Cart, opened bool) {
	st, err := h.Promos.Get(r.Context(), sessionID(r), promo.ItemsFromCart(c))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, status, func(e *jx.Encoder) {
		h.encCart(e, cartView{Cart: c, Promo: st, Opened: opened})
	})
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.Carts.Get(r.Context(), sessionID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondCart(w, r, http.StatusOK, c, false)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.Carts.Clear(r.Context(), sessionID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondCart(w, r, http.StatusOK, c, false)
}

// addCartItem adds one unit and tells the client to open the cart drawer.
func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := readProductID(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.Carts.Add(r.Context(), sessionID(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondCart(w, r, http.StatusOK, c, true)
}

func (h *Handler) setCartQuantity(w http.ResponseWriter, r *http.Request) {
	qty := -1
	err := readObject(w, r, func(d *jx.Decoder, key string) (err error) {
		if key == "quantity" {
			qty, err = d.Int()
			return err
		}
		return d.Skip()
	})
	if err == nil && qty < 0 {
		err = errBadBody
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.Carts.SetQuantity(r.Context(), sessionID(r), r.PathValue("id"), qty)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondCart(w, r, http.StatusOK, c, false)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.Carts.Remove(r.Context(), sessionID(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respondCart(w, r, http.StatusOK, c, false)
}

// applyPromo evaluates a code against the current cart. Unknown or
// exhausted codes are reported in promo.error with status 200.
func (h *Handler) applyPromo(w http.ResponseWriter, r *http.Request) {
	var code string
	err := readObject(w, r, func(d *jx.Decoder, key string) (err error) {
		if key == "code" {
			code, err = d.Str()
			return err
		}
		return d.Skip()
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sid := sessionID(r)
	c, err := h.Carts.Get(r.Context(), sid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	st, err := h.Promos.Apply(r.Context(), sid, code, promo.ItemsFromCart(c))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		h.encCart(e, cartView{Cart: c, Promo: st})
	})
}

func (h *Handler) resetPromo(w http.ResponseWriter, r *http.Request) {
	if err := h.Promos.Reset(r.Context(), sessionID(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	h.getCart(w, r)
}

func (h *Handler) getWishlist(w http.ResponseWriter, r *http.Request) {
	wl, err := h.Wishlists.Get(r.Context(), sessionID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encWishlist(e, wl) })
}

func (h *Handler) addWishlist(w http.ResponseWriter, r *http.Request) {
	id, err := readProductID(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	wl, err := h.Wishlists.Add(r.Context(), sessionID(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encWishlist(e, wl) })
}

func (h *Handler) hasWishlist(w http.ResponseWriter, r *http.Request) {
	ok, err := h.Wishlists.Has(r.Context(), sessionID(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		encBool(e, "wishlisted", ok)
		e.ObjEnd()
	})
}

func (h *Handler) removeWishlist(w http.ResponseWriter, r *http.Request) {
	wl, err := h.Wishlists.Remove(r.Context(), sessionID(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encWishlist(e, wl) })
}
