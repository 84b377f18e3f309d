package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/jogardn/order-fulfillment/internal/events"
	"github.com/jogardn/order-fulfillment/internal/gateways"
)

// shop-mock stands in for the user, product, and cart services during
// local development. State is in-memory and seeded on startup.
type ShopStore struct {
	users    map[int64]gateways.User
	products map[int64]gateways.Product
	carts    map[int64][]gateways.CartLine
	mutex    sync.RWMutex
}

func NewShopStore() *ShopStore {
	store := &ShopStore{
		users:    make(map[int64]gateways.User),
		products: make(map[int64]gateways.Product),
		carts:    make(map[int64][]gateways.CartLine),
	}
	store.seed()
	return store
}

func (s *ShopStore) seed() {
	s.users[1] = gateways.User{ID: 1, AccountName: "alice", Email: "alice@example.com", PhoneNumber: "0123456789"}
	s.users[2] = gateways.User{ID: 2, AccountName: "bob", Email: "bob@example.com", PhoneNumber: "0987654321"}

	s.products[100] = gateways.Product{ID: 100, Name: "Mechanical Keyboard", Price: decimal.NewFromInt(89), StockQuantity: 25}
	s.products[101] = gateways.Product{ID: 101, Name: "Wireless Mouse", Price: decimal.NewFromInt(35), StockQuantity: 60}
	s.products[102] = gateways.Product{ID: 102, Name: "USB-C Dock", Price: decimal.NewFromInt(120), StockQuantity: 10}

	for id, p := range s.products {
		s.carts[1] = append(s.carts[1], gateways.CartLine{UserID: 1, ProductID: id, Quantity: 1, UnitPrice: p.Price})
	}
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	store := NewShopStore()
	port := getEnv("SHOP_MOCK_PORT", "8085")
	kafkaBrokers := getEnv("KAFKA_BROKERS", "localhost:9092")

	// Password resets originate from the user side of the shop, so the
	// mock owns the forgot-password topic's producer. The mock still
	// serves its HTTP surface when Kafka is unreachable.
	var producer *events.KafkaProducer
	for i := 0; i < 5; i++ {
		var err error
		producer, err = events.NewKafkaProducer(kafkaBrokers, logger)
		if err == nil {
			break
		}
		logger.WithError(err).WithField("attempt", i+1).Warn("Failed to connect to Kafka, retrying...")
		time.Sleep(5 * time.Second)
	}
	if producer != nil {
		defer producer.Close()
	} else {
		logger.Warn("Running without Kafka; forgot-password requests will be rejected")
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.HandleFunc("/users/{id}", getUser(logger, store)).Methods("GET")
	router.HandleFunc("/users/{id}/forgot-password", forgotPassword(logger, store, producer)).Methods("POST")
	router.HandleFunc("/products", listProducts(logger, store)).Methods("GET")
	router.HandleFunc("/products/{id}", getProduct(logger, store)).Methods("GET")
	router.HandleFunc("/carts/delete", deleteCartLines(logger, store)).Methods("POST")
	router.HandleFunc("/carts/restore", restoreCartLines(logger, store)).Methods("POST")

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("port", port).Info("Starting shop mock")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down shop mock...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "shop-mock",
	})
}

func getUser(logger *logrus.Logger, store *ShopStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid user id")
			return
		}

		store.mutex.RLock()
		user, ok := store.users[id]
		store.mutex.RUnlock()

		if !ok {
			respondError(w, http.StatusNotFound, "User not found")
			return
		}
		respondJSON(w, http.StatusOK, user)
	}
}

func getProduct(logger *logrus.Logger, store *ShopStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid product id")
			return
		}

		store.mutex.RLock()
		product, ok := store.products[id]
		store.mutex.RUnlock()

		if !ok {
			respondError(w, http.StatusNotFound, "Product not found")
			return
		}
		respondJSON(w, http.StatusOK, product)
	}
}

func listProducts(logger *logrus.Logger, store *ShopStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var products []gateways.Product

		store.mutex.RLock()
		if csv := r.URL.Query().Get("ids"); csv != "" {
			for _, raw := range strings.Split(csv, ",") {
				id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
				if err != nil {
					continue
				}
				if p, ok := store.products[id]; ok {
					products = append(products, p)
				}
			}
		} else {
			for _, p := range store.products {
				products = append(products, p)
			}
		}
		store.mutex.RUnlock()

		respondJSON(w, http.StatusOK, products)
	}
}

func forgotPassword(logger *logrus.Logger, store *ShopStore, producer *events.KafkaProducer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if producer == nil {
			respondError(w, http.StatusServiceUnavailable, "Event bus unavailable")
			return
		}

		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid user id")
			return
		}

		store.mutex.RLock()
		user, ok := store.users[id]
		store.mutex.RUnlock()
		if !ok {
			respondError(w, http.StatusNotFound, "User not found")
			return
		}

		secret := uuid.New().String()
		if err := producer.PublishForgotPassword(events.ForgotPasswordEvent{
			UserID:    user.ID,
			Email:     user.Email,
			SecretKey: secret,
		}); err != nil {
			logger.WithError(err).Error("Failed to publish forgot password event")
			respondError(w, http.StatusBadGateway, "Failed to publish reset event")
			return
		}

		logger.WithField("user_id", user.ID).Info("Forgot password event published")
		respondJSON(w, http.StatusAccepted, map[string]any{"success": true})
	}
}

func deleteCartLines(logger *logrus.Logger, store *ShopStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ids []gateways.UserAndProductID
		if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		store.mutex.Lock()
		for _, id := range ids {
			lines := store.carts[id.UserID]
			kept := lines[:0]
			for _, line := range lines {
				if line.ProductID != id.ProductID {
					kept = append(kept, line)
				}
			}
			store.carts[id.UserID] = kept
		}
		store.mutex.Unlock()

		logger.WithField("count", len(ids)).Info("Cart lines deleted")
		respondJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

func restoreCartLines(logger *logrus.Logger, store *ShopStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var lines []gateways.CartLine
		if err := json.NewDecoder(r.Body).Decode(&lines); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		store.mutex.Lock()
		for _, line := range lines {
			store.carts[line.UserID] = append(store.carts[line.UserID], line)
		}
		store.mutex.Unlock()

		logger.WithField("count", len(lines)).Info("Cart lines restored")
		respondJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, map[string]any{
		"success": false,
		"message": message,
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
