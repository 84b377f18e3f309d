package payments

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/jogardn/order-fulfillment/internal/circuitbreaker"
	"github.com/jogardn/order-fulfillment/internal/gateways"
	"github.com/jogardn/order-fulfillment/pkg/models"
)

type Handler struct {
	service *Service
	logger  *logrus.Logger
}

func NewHandler(service *Service, logger *logrus.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/payments", h.CreatePayment).Methods("POST")
	router.HandleFunc("/payments/{orderId}/confirm", h.ConfirmPayment).Methods("POST")
	router.HandleFunc("/payments/{orderId}", h.GetPayment).Methods("GET")
	router.HandleFunc("/users/{id}/payments", h.ListUserPayments).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}

// CreatePayment initiates the checkout and records the PENDING payment
// row for the order.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req gateways.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WithError(err).Error("Failed to decode payment request")
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	redirect, err := h.service.Initiate(r.Context(), req.OrderID, req.PaymentMethod, req.ReturnURL)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	if _, err := h.service.RecordPending(r.Context(), req.OrderID); err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusCreated, gateways.PaymentInitiation{RedirectURL: redirect})
}

func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["orderId"]

	var body struct {
		Succeeded bool `json:"succeeded"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.Confirm(r.Context(), orderID, body.Succeeded); err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"order_id": orderID,
	})
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["orderId"]

	payment, err := h.service.GetByOrderID(r.Context(), orderID)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, payment)
}

func (h *Handler) ListUserPayments(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 20)

	payments, err := h.service.ListByUser(r.Context(), userID, page, limit)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"payments": payments,
		"count":    len(payments),
	})
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "payment-service",
	})
}

func (h *Handler) respondWithServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrUnknownPaymentMethod):
		h.respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrPaymentNotFound), errors.Is(err, gateways.ErrNotFound):
		h.respondWithError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, gateways.ErrUnavailable), errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen):
		h.respondWithError(w, http.StatusBadGateway, "A dependent service is unavailable")
	default:
		h.logger.WithError(err).Error("Unhandled payment service error")
		h.respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func (h *Handler) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func (h *Handler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, map[string]any{
		"success": false,
		"message": message,
	})
}
