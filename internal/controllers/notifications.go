package controllers

import (
	"net/http"
	"strconv"

	"github.com/drstein77/oilcheckout/internal/models"
	"github.com/go-chi/chi"
)

func (h *BaseController) listNotifications(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.notifications.List())
}

func (h *BaseController) dismissAll(w http.ResponseWriter, r *http.Request) {
	h.notifications.DismissAll()
	w.WriteHeader(http.StatusNoContent)
}

// dismissNotification is idempotent: unknown ids succeed.
func (h *BaseController) dismissNotification(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, &models.ValidationError{Field: "notification id", Reason: "must be a positive integer"})
		return
	}
	h.notifications.Dismiss(id)
	w.WriteHeader(http.StatusNoContent)
}
