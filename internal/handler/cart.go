package handler

import (
	"net/http"

	"github.com/xenking/kart-cart/internal/domain/coupon"
)

func (h *Handler) getCart(w http.ResponseWriter, _ *http.Request) {
	writeView(w, http.StatusOK, h.cart.View())
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAddItem(w, r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if err := h.cart.AddToCart(r.Context(), req.Product, req.Quantity, req.Variant); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeView(w, http.StatusOK, h.cart.View())
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	qty := h.cart.GetCartItemQuantity(r.PathValue("productID"))
	writeItemStatus(w, qty)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	qty, err := decodeQuantity(w, r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if err := h.cart.UpdateQuantity(r.Context(), r.PathValue("productID"), qty); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeView(w, http.StatusOK, h.cart.View())
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	if err := h.cart.RemoveFromCart(r.Context(), r.PathValue("productID")); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeView(w, http.StatusOK, h.cart.View())
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.cart.ClearCart(r.Context()); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeView(w, http.StatusOK, h.cart.View())
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	s, err := coupon.Summarize(r.Context(), h.coupons, h.cart.Items(), r.URL.Query().Get("coupon"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeSummary(w, s)
}
