package controllers

import (
	"net/http"

	"github.com/drstein77/oilcheckout/internal/models"
	"github.com/go-chi/chi"
)

type putCartRequest struct {
	Items []models.CartItem `json:"items"`
}

func (h *BaseController) getCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.storage.GetCart(r.Context(), chi.URLParam(r, "cartID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cart)
}

func (h *BaseController) putCart(w http.ResponseWriter, r *http.Request) {
	var req putCartRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	cart, err := h.storage.PutCart(r.Context(), chi.URLParam(r, "cartID"), req.Items)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cart)
}

func (h *BaseController) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.ClearCart(r.Context(), chi.URLParam(r, "cartID")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BaseController) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.storage.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, order)
}
