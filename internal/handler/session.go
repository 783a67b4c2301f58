package handler

import (
	"net/http"
)

// login switches the cart to the signed in user. The session provider of the
// storefront calls it after authentication succeeds.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	id, err := decodeIdentity(w, r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	// A failed remote load still switches identity; the view carries the error.
	_ = h.cart.SetIdentity(r.Context(), id)
	writeView(w, http.StatusOK, h.cart.View())
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	_ = h.cart.SetIdentity(r.Context(), nil)
	writeView(w, http.StatusOK, h.cart.View())
}
