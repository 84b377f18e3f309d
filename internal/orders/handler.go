package orders

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/jogardn/order-fulfillment/internal/circuitbreaker"
	"github.com/jogardn/order-fulfillment/internal/gateways"
	"github.com/jogardn/order-fulfillment/internal/search"
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
	router.HandleFunc("/orders", h.CreateOrder).Methods("POST")
	router.HandleFunc("/orders/search", h.SearchOrders).Methods("POST")
	router.HandleFunc("/orders/{id}", h.GetOrder).Methods("GET")
	router.HandleFunc("/orders/{id}", h.DeleteOrder).Methods("DELETE")
	router.HandleFunc("/orders/{id}/summary", h.GetOrderSummary).Methods("GET")
	router.HandleFunc("/orders/{id}/status", h.ChangeStatus).Methods("PUT")
	router.HandleFunc("/users/{id}/orders", h.GetUserOrders).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WithError(err).Error("Failed to decode order request")
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	redirectURL, err := h.service.CreateOrder(r.Context(), req)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusCreated, map[string]any{
		"success":      true,
		"redirect_url": redirectURL,
	})
}

func (h *Handler) SearchOrders(w http.ResponseWriter, r *http.Request) {
	var body models.SearchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.WithError(err).Error("Failed to decode search request")
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	page, err := h.service.Search(r.Context(), body)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, page)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]

	order, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, order)
}

func (h *Handler) GetOrderSummary(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]

	summary, err := h.service.OrderSummary(r.Context(), orderID)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, summary)
}

func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]

	if err := h.service.DeleteOrder(r.Context(), orderID); err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Order deleted successfully",
	})
}

func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	target, err := models.ParseOrderStatus(body.Status)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.service.ChangeStatus(r.Context(), orderID, target)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, order)
}

func (h *Handler) GetUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	orders, err := h.service.FindByUserID(r.Context(), userID)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"orders":  orders,
		"count":   len(orders),
	})
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "order-service",
	})
}

// respondWithServiceError normalizes the error taxonomy at the HTTP
// boundary. Internal causes are logged, never leaked.
func (h *Handler) respondWithServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrEmptyCart),
		errors.Is(err, models.ErrUnknownPaymentMethod),
		errors.Is(err, search.ErrInvalidPage),
		errors.Is(err, search.ErrInvalidDate):
		h.respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, gateways.ErrNotFound):
		h.respondWithError(w, http.StatusNotFound, "Order not found")
	case errors.Is(err, models.ErrInvalidTransition):
		h.respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, gateways.ErrUnavailable), errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen):
		h.respondWithError(w, http.StatusBadGateway, "A dependent service is unavailable")
	case errors.Is(err, search.ErrQueryFailed):
		h.respondWithError(w, http.StatusBadRequest, search.ErrQueryFailed.Error())
	case errors.Is(err, ErrCreateFailed):
		// The failed step and its cause are already in the service log.
		h.respondWithError(w, http.StatusBadRequest, ErrCreateFailed.Error())
	default:
		h.logger.WithError(err).Error("Unhandled service error")
		h.respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
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
