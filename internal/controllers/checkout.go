package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/drstein77/oilcheckout/internal/checkout"
	"github.com/drstein77/oilcheckout/internal/models"
	"github.com/go-chi/chi"
)

type beginRequest struct {
	CartID string `json:"cart_id"`
}

type paymentRequest struct {
	Method models.PaymentMethod `json:"method"`
}

func (h *BaseController) session(w http.ResponseWriter, r *http.Request) (*checkout.Controller, bool) {
	ctrl, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return ctrl, true
}

func (h *BaseController) beginCheckout(w http.ResponseWriter, r *http.Request) {
	var req beginRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if strings.TrimSpace(req.CartID) == "" {
		h.writeError(w, &models.ValidationError{Field: "cart_id", Reason: "must not be empty"})
		return
	}
	ctrl := h.sessions.Begin(req.CartID)
	h.writeJSON(w, http.StatusCreated, ctrl.View())
}

func (h *BaseController) getCheckout(w http.ResponseWriter, r *http.Request) {
	if ctrl, ok := h.session(w, r); ok {
		h.writeJSON(w, http.StatusOK, ctrl.View())
	}
}

func (h *BaseController) discardCheckout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Discard(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BaseController) selectAddress(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	var addr models.Address
	if err := decode(r, &addr); err != nil {
		h.writeError(w, err)
		return
	}
	if err := ctrl.SelectAddress(addr); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ctrl.View())
}

func (h *BaseController) selectPayment(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if err := ctrl.SelectPaymentMethod(req.Method); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ctrl.View())
}

func (h *BaseController) proceed(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, err := ctrl.Proceed(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ctrl.View())
}

func (h *BaseController) back(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, err := ctrl.Back(); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ctrl.View())
}

// placeOrder blocks until the gateway answers. A client disconnect does not
// abandon the attempt; only Back or Discard does.
func (h *BaseController) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	conf, err := ctrl.PlaceOrder(context.WithoutCancel(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, conf)
}
