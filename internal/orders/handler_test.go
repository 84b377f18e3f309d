package orders

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jogardn/order-fulfillment/pkg/models"
)

func newTestRouter() (*mux.Router, *fakeRepo) {
	router, repo, _ := newTestRouterWithPayments()
	return router, repo
}

func newTestRouterWithPayments() (*mux.Router, *fakeRepo, *fakePayments) {
	service, repo, _, payments := newTestService()
	handler := NewHandler(service, testLogger())
	router := mux.NewRouter()
	handler.Register(router)
	return router, repo, payments
}

func doRequest(router *mux.Router, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateOrderEndpoint(t *testing.T) {
	router, repo := newTestRouter()

	rec := doRequest(router, http.MethodPost, "/orders", twoItemRequest())
	require.Equal(t, http.StatusCreated, rec.Code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, true, out["success"])
	assert.Contains(t, out["redirect_url"], "https://pay.example.com")
	assert.Len(t, repo.orders, 1)
}

func TestCreateOrderEndpointValidation(t *testing.T) {
	router, _ := newTestRouter()

	req := twoItemRequest()
	req.CartItems = nil
	rec := doRequest(router, http.MethodPost, "/orders", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = twoItemRequest()
	req.PaymentMethod = "bitcoin"
	rec = doRequest(router, http.MethodPost, "/orders", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = twoItemRequest()
	req.UserID = 99
	rec = doRequest(router, http.MethodPost, "/orders", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOrderEndpointFailureHidesCause(t *testing.T) {
	router, _, payments := newTestRouterWithPayments()
	payments.failNext = true

	rec := doRequest(router, http.MethodPost, "/orders", twoItemRequest())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "error while creating order", out["message"])
	assert.NotContains(t, rec.Body.String(), "request-payment")
	assert.NotContains(t, rec.Body.String(), "unavailable")
}

func TestGetOrderEndpointNotFound(t *testing.T) {
	router, _ := newTestRouter()

	rec := doRequest(router, http.MethodGet, "/orders/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChangeStatusEndpointConflict(t *testing.T) {
	router, repo := newTestRouter()

	rec := doRequest(router, http.MethodPost, "/orders", twoItemRequest())
	require.Equal(t, http.StatusCreated, rec.Code)

	var orderID string
	for id := range repo.orders {
		orderID = id
	}
	repo.orders[orderID].Status = models.StatusDelivered

	rec = doRequest(router, http.MethodPut, "/orders/"+orderID+"/status",
		map[string]string{"status": "pending"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(router, http.MethodPut, "/orders/"+orderID+"/status",
		map[string]string{"status": "complete"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChangeStatusEndpointUnknownStatus(t *testing.T) {
	router, _ := newTestRouter()

	rec := doRequest(router, http.MethodPut, "/orders/any/status",
		map[string]string{"status": "refunded"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchEndpointRejectsBadPagination(t *testing.T) {
	router, _ := newTestRouter()

	rec := doRequest(router, http.MethodPost, "/orders/search",
		models.SearchBody{Page: 0, Limit: 10})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchEndpointUniformFailure(t *testing.T) {
	router, repo := newTestRouter()
	repo.failSearch = true

	rec := doRequest(router, http.MethodPost, "/orders/search",
		models.SearchBody{Page: 1, Limit: 10})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "error while fetching orders", out["message"])
}

func TestGetUserOrdersEndpoint(t *testing.T) {
	router, _ := newTestRouter()

	rec := doRequest(router, http.MethodPost, "/orders", twoItemRequest())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(router, http.MethodGet, "/users/1/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Count  int            `json:"count"`
		Orders []models.Order `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 1, out.Count)

	rec = doRequest(router, http.MethodGet, "/users/abc/orders", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter()

	rec := doRequest(router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "order-service")
}
