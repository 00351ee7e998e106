package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/drstein77/oilcheckout/internal/checkout"
	"github.com/drstein77/oilcheckout/internal/middleware"
	"github.com/drstein77/oilcheckout/internal/models"
	"github.com/drstein77/oilcheckout/internal/storage"
	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

// Storage interface for cart and order operations
type Storage interface {
	PutCart(ctx context.Context, cartID string, items []models.CartItem) (models.Cart, error)
	GetCart(ctx context.Context, cartID string) (models.Cart, error)
	ClearCart(ctx context.Context, cartID string) error
	GetOrder(ctx context.Context, id string) (models.Order, error)
	Ping(ctx context.Context) bool
}

// Sessions interface for the active checkouts
type Sessions interface {
	Begin(cartID string) *checkout.Controller
	Get(id string) (*checkout.Controller, error)
	Discard(id string) error
}

// Notifications interface for the shopper notification queue
type Notifications interface {
	List() []models.Notification
	Dismiss(id uint64)
	DismissAll()
}

// Log interface for logging
type Log interface {
	Info(string, ...zap.Field)
	Warn(string, ...zap.Field)
	Error(string, ...zap.Field)
}

// BaseController struct for handling requests
type BaseController struct {
	storage       Storage
	sessions      Sessions
	notifications Notifications
	log           Log
}

// NewBaseController creates a new BaseController instance
func NewBaseController(storage Storage, sessions Sessions, notifications Notifications, log Log) *BaseController {
	return &BaseController{
		storage:       storage,
		sessions:      sessions,
		notifications: notifications,
		log:           log,
	}
}

// Route sets up the routes for the BaseController
func (h *BaseController) Route() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(h.log))

	r.Get("/healthz", h.healthz)

	r.Route("/api/v0", func(r chi.Router) {
		r.Use(middleware.Compress)

		r.Route("/cart/{cartID}", func(r chi.Router) {
			r.Get("/", h.getCart)
			r.Put("/", h.putCart)
			r.Delete("/", h.clearCart)
		})

		r.Post("/checkout", h.beginCheckout)
		r.Route("/checkout/{id}", func(r chi.Router) {
			r.Get("/", h.getCheckout)
			r.Delete("/", h.discardCheckout)
			r.Post("/address", h.selectAddress)
			r.Post("/payment", h.selectPayment)
			r.Post("/proceed", h.proceed)
			r.Post("/back", h.back)
			r.Post("/place", h.placeOrder)
		})

		r.Get("/notifications", h.listNotifications)
		r.Delete("/notifications", h.dismissAll)
		r.Delete("/notifications/{id}", h.dismissNotification)

		r.Get("/orders/{id}", h.getOrder)
	})

	return r
}

func (h *BaseController) healthz(w http.ResponseWriter, r *http.Request) {
	if !h.storage.Ping(r.Context()) {
		http.Error(w, "storage is unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// writeJSON encodes v with the given status.
func (h *BaseController) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain errors to HTTP statuses.
func (h *BaseController) writeError(w http.ResponseWriter, err error) {
	var gwErr *checkout.GatewayError
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrValidation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, checkout.ErrInvalidTransition),
		errors.Is(err, checkout.ErrTotalsChanged),
		errors.Is(err, checkout.ErrAlreadyProcessing),
		errors.Is(err, checkout.ErrStaleAttempt),
		errors.Is(err, storage.ErrConflict):
		status = http.StatusConflict
	case errors.As(err, &gwErr):
		status = http.StatusPaymentRequired
	case errors.Is(err, checkout.ErrSessionNotFound), errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	}

	msg := err.Error()
	if gwErr != nil {
		msg = gwErr.Reason
	}
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", zap.Error(err))
		msg = "internal error"
	}
	h.writeJSON(w, status, errorResponse{Error: msg})
}

// decode reads a JSON body into v, reporting malformed input as a
// validation error.
func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &models.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}
