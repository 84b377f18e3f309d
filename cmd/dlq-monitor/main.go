package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jogardn/order-fulfillment/internal/config"
	"github.com/jogardn/order-fulfillment/internal/events"
)

// dlq-monitor tails every dead letter topic, logs the failure history of
// each message, and replays it onto the original topic after a cool-down.
// Messages that exceed the replay cap stay parked in the DLQ for manual
// inspection.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	config.Load(logger)
	kafkaBrokers := getEnv("KAFKA_BROKERS", "localhost:9092")
	replayDelay := getDurationEnv("DLQ_REPLAY_DELAY", 30*time.Second)

	topics := []string{
		events.NotificationTopic,
		events.ForgotPasswordTopic,
		events.OrderStatusChangedTopic,
	}

	processor, err := events.NewDLQProcessor(kafkaBrokers, topics, replayDelay, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create DLQ processor")
	}
	defer processor.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := processor.ProcessDLQ(ctx); err != nil {
			logger.WithError(err).Error("DLQ processor stopped")
		}
	}()

	logger.WithField("replay_delay", replayDelay).Info("DLQ monitor started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down DLQ monitor...")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
