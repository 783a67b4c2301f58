// Package handler exposes the cart controller to the storefront UI as a JSON
// HTTP API.
package handler

import (
	"context"
	"net/http"

	"github.com/xenking/kart-cart/internal/cartsync"
	"github.com/xenking/kart-cart/internal/domain/cart"
	"github.com/xenking/kart-cart/internal/domain/coupon"
)

// Cart is the part of the cart controller the API drives.
type Cart interface {
	View() cartsync.View
	Items() []cart.LineItem
	GetCartItemQuantity(productID string) int
	AddToCart(ctx context.Context, p cart.Product, quantity int, variant *cart.Variant) error
	RemoveFromCart(ctx context.Context, productID string) error
	UpdateQuantity(ctx context.Context, productID string, quantity int) error
	ClearCart(ctx context.Context) error
	SetIdentity(ctx context.Context, id *cart.Identity) error
}

var _ Cart = (*cartsync.Controller)(nil)

// Handler serves the cart API.
type Handler struct {
	cart    Cart
	coupons coupon.Validator
}

// New creates a Handler. coupons may be nil, in which case every coupon code
// is rejected as invalid.
func New(c Cart, coupons coupon.Validator) *Handler {
	if coupons == nil {
		coupons = coupon.NewRepoValidator(coupon.NewStaticRepository())
	}
	return &Handler{cart: c, coupons: coupons}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/cart", h.getCart)
	mux.HandleFunc("DELETE /api/cart", h.clearCart)
	mux.HandleFunc("POST /api/cart/items", h.addItem)
	mux.HandleFunc("GET /api/cart/items/{productID}", h.getItem)
	mux.HandleFunc("PATCH /api/cart/items/{productID}", h.updateItem)
	mux.HandleFunc("DELETE /api/cart/items/{productID}", h.removeItem)
	mux.HandleFunc("GET /api/cart/summary", h.summary)
	mux.HandleFunc("PUT /api/session", h.login)
	mux.HandleFunc("DELETE /api/session", h.logout)
}
