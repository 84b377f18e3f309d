package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/jogardn/order-fulfillment/internal/circuitbreaker"
	"github.com/jogardn/order-fulfillment/internal/config"
	"github.com/jogardn/order-fulfillment/internal/events"
	"github.com/jogardn/order-fulfillment/internal/gateways"
	"github.com/jogardn/order-fulfillment/internal/metrics"
	"github.com/jogardn/order-fulfillment/internal/migration"
	"github.com/jogardn/order-fulfillment/internal/orders"
	"github.com/jogardn/order-fulfillment/internal/websocket"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	config.Load(logger)
	cfg := config.LoadOrderService()

	db, err := sql.Open("postgres", cfg.DB.DSN())
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	// Wait for database to be ready
	for i := 0; i < 30; i++ {
		if err := db.Ping(); err == nil {
			logger.Info("Database connection established")
			break
		}
		logger.Info("Waiting for database...")
		time.Sleep(2 * time.Second)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	migrator := migration.NewMigrator(db, logger)
	if err := migrator.Run(ctx, "order-service", migration.OrderServiceSchema); err != nil {
		logger.WithError(err).Fatal("Failed to apply schema")
	}

	breakers := circuitbreaker.NewManager(logger)
	gatewayMetrics := metrics.NewGatewayMetrics("order_service")
	consumerMetrics := metrics.NewConsumerMetrics("order_service")

	users := gateways.NewUserClient(cfg.UserServiceURL, breakers, gatewayMetrics, logger)
	carts := gateways.NewCartClient(cfg.CartServiceURL, breakers, gatewayMetrics, logger)
	payments := gateways.NewPaymentClient(cfg.PaymentServiceURL, breakers, gatewayMetrics, logger)
	products := gateways.NewProductClient(cfg.ProductServiceURL, breakers, gatewayMetrics, logger)

	hub := websocket.NewHub(logger)
	go hub.Run()

	repo := orders.NewPostgresRepository(db, logger)
	service := orders.NewService(repo, users, carts, payments, products, hub, logger)
	handler := orders.NewHandler(service, logger)

	// Payment outcomes come back through the event bus and reconcile the
	// order status asynchronously.
	consumer, err := events.NewKafkaConsumer(cfg.KafkaBrokers, "order-service-group",
		[]string{events.OrderStatusChangedTopic}, service, logger, consumerMetrics)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Kafka consumer")
	}
	defer consumer.Close()

	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.WithError(err).Error("Kafka consumer stopped")
		}
	}()

	router := mux.NewRouter()
	handler.Register(router)
	router.HandleFunc("/ws", hub.HandleWebSocket)
	router.HandleFunc("/ws/stats", func(w http.ResponseWriter, r *http.Request) {
		handlerJSON(w, http.StatusOK, map[string]int{"clients": hub.GetClientCount()})
	}).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")
	router.HandleFunc("/circuit-breakers", func(w http.ResponseWriter, r *http.Request) {
		handlerJSON(w, http.StatusOK, breakers.AllMetrics())
	}).Methods("GET")
	router.Use(loggingMiddleware(logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("Starting order service")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server gracefully stopped")
}
