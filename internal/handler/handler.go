// Package handler serves the bookshelf JSON API over net/http.
package handler

import (
	"net/http"
	"strings"

	"github.com/xenking/bookshelf/internal/domain/analytics"
	"github.com/xenking/bookshelf/internal/domain/book"
	"github.com/xenking/bookshelf/internal/domain/cart"
	"github.com/xenking/bookshelf/internal/domain/catalog"
	"github.com/xenking/bookshelf/internal/domain/checkout"
	"github.com/xenking/bookshelf/internal/domain/order"
	"github.com/xenking/bookshelf/internal/domain/promo"
	"github.com/xenking/bookshelf/internal/domain/wishlist"
	"github.com/xenking/bookshelf/internal/notify"
)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to relative image paths in responses. When
	// empty, paths are returned as stored.
	ImageBaseURL string
	// MaxCoverBytes limits cover uploads. Defaults to 5 MiB.
	MaxCoverBytes int64
}

// Services are the domain dependencies of the Handler.
type Services struct {
	Catalog   *catalog.Service
	Books     book.Repository
	Combos    book.ComboRepository
	Reviews   book.ReviewRepository
	Covers    book.CoverStore // nil disables cover uploads
	Carts     *cart.Service
	Wishlists *wishlist.Service
	Promos    *promo.Service
	Checkout  *checkout.Service
	Orders    *order.Service
	Analytics *analytics.Service
	Notifier  notify.Notifier
}

// Handler implements the storefront and admin endpoints.
type Handler struct {
	Services

	imageBaseURL  string
	maxCoverBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig, svc Services) *Handler {
	if cfg.MaxCoverBytes <= 0 {
		cfg.MaxCoverBytes = 5 << 20
	}
	if svc.Notifier == nil {
		svc.Notifier = notify.Nop{}
	}
	return &Handler{
		Services:      svc,
		imageBaseURL:  strings.TrimRight(cfg.ImageBaseURL, "/"),
		maxCoverBytes: cfg.MaxCoverBytes,
	}
}

// Register mounts every API route on mux under /api.
func (h *Handler) Register(mux *http.ServeMux) {
	// Storefront.
	mux.HandleFunc("GET /api/books", h.listBooks)
	mux.HandleFunc("GET /api/books/{id}", h.getBook)
	mux.HandleFunc("GET /api/books/{id}/reviews", h.listReviews)
	mux.HandleFunc("POST /api/books/{id}/reviews", h.user(h.upsertReview))
	mux.HandleFunc("DELETE /api/books/{id}/reviews", h.user(h.deleteReview))
	mux.HandleFunc("GET /api/categories", h.listCategories)
	mux.HandleFunc("GET /api/combos", h.listCombos)
	mux.HandleFunc("POST /api/contact", h.contact)

	mux.HandleFunc("GET /api/cart", h.getCart)
	mux.HandleFunc("DELETE /api/cart", h.clearCart)
	mux.HandleFunc("POST /api/cart/items", h.addCartItem)
	mux.HandleFunc("PUT /api/cart/items/{id}", h.setCartQuantity)
	mux.HandleFunc("DELETE /api/cart/items/{id}", h.removeCartItem)
	mux.HandleFunc("POST /api/cart/promo", h.applyPromo)
	mux.HandleFunc("DELETE /api/cart/promo", h.resetPromo)

	mux.HandleFunc("GET /api/wishlist", h.getWishlist)
	mux.HandleFunc("POST /api/wishlist", h.addWishlist)
	mux.HandleFunc("GET /api/wishlist/{id}", h.hasWishlist)
	mux.HandleFunc("DELETE /api/wishlist/{id}", h.removeWishlist)

	mux.HandleFunc("GET /api/checkout", h.getCheckout)
	mux.HandleFunc("PUT /api/checkout/customer", h.editCustomer)
	mux.HandleFunc("POST /api/checkout/next", h.nextStep)
	mux.HandleFunc("POST /api/checkout/step/{step}", h.goToStep)
	mux.HandleFunc("POST /api/checkout/submit", h.submitOrder)

	mux.HandleFunc("GET /api/account/orders", h.user(h.listMyOrders))
	mux.HandleFunc("POST /api/account/orders/{id}/cancel", h.user(h.cancelMyOrder))

	// Admin console.
	mux.HandleFunc("GET /api/admin/dashboard", h.admin(h.dashboard))
	mux.HandleFunc("GET /api/admin/analytics", h.admin(h.analytics))
	mux.HandleFunc("GET /api/admin/customers", h.admin(h.customers))
	mux.HandleFunc("GET /api/admin/orders", h.admin(h.adminListOrders))
	mux.HandleFunc("PATCH /api/admin/orders/{id}", h.admin(h.adminSetOrderStatus))
	mux.HandleFunc("DELETE /api/admin/orders/{id}", h.admin(h.adminDeleteOrder))
	mux.HandleFunc("POST /api/admin/books", h.admin(h.createBook))
	mux.HandleFunc("PUT /api/admin/books/{id}", h.admin(h.updateBook))
	mux.HandleFunc("DELETE /api/admin/books/{id}", h.admin(h.deleteBook))
	mux.HandleFunc("PUT /api/admin/books/{id}/cover", h.admin(h.uploadCover))
	mux.HandleFunc("GET /api/admin/combos", h.admin(h.adminListCombos))
	mux.HandleFunc("POST /api/admin/combos", h.admin(h.createCombo))
	mux.HandleFunc("PUT /api/admin/combos/{id}", h.admin(h.updateCombo))
	mux.HandleFunc("DELETE /api/admin/combos/{id}", h.admin(h.deleteCombo))
}

// imageURL resolves stored image paths against the configured base URL.
// Absolute URLs are returned unchanged.
func (h *Handler) imageURL(p string) string {
	if p == "" || h.imageBaseURL == "" || strings.Contains(p, "://") {
		return p
	}
	return h.imageBaseURL + "/" + strings.TrimLeft(p, "/")
}
