package main

import (
	"context"
	"database/sql"
	"encoding/json"
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
	"github.com/jogardn/order-fulfillment/internal/payments"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	config.Load(logger)
	cfg := config.LoadPaymentService()

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
	if err := migrator.Run(ctx, "payment-service", migration.PaymentServiceSchema); err != nil {
		logger.WithError(err).Fatal("Failed to apply schema")
	}

	producer, err := events.NewKafkaProducer(cfg.KafkaBrokers, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Kafka producer")
	}
	defer producer.Close()

	breakers := circuitbreaker.NewManager(logger)
	gatewayMetrics := metrics.NewGatewayMetrics("payment_service")

	orderGateway := gateways.NewOrderClient(cfg.OrderServiceURL, breakers, gatewayMetrics, logger)

	paypal := payments.NewPaypalStrategy(cfg.PaypalCheckoutURL, logger)
	vnpay := payments.NewVnpayStrategy(cfg.VnpayCheckoutURL, cfg.VnpayTerminalCode, logger)

	repo := payments.NewPostgresRepository(db, logger)
	service := payments.NewService(repo, orderGateway, producer, paypal, vnpay, logger)
	handler := payments.NewHandler(service, logger)

	router := mux.NewRouter()
	handler.Register(router)
	router.Handle("/metrics", metrics.Handler()).Methods("GET")
	router.HandleFunc("/circuit-breakers", func(w http.ResponseWriter, r *http.Request) {
		response, _ := json.Marshal(breakers.AllMetrics())
		w.Header().Set("Content-Type", "application/json")
		w.Write(response)
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
		logger.WithField("port", cfg.Port).Info("Starting payment service")
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

func loggingMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			logger.WithFields(logrus.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
				"remote": r.RemoteAddr,
			}).Info("Request received")

			next.ServeHTTP(w, r)

			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start).Milliseconds(),
			}).Info("Request completed")
		})
	}
}
