package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"github.com/jogardn/order-fulfillment/internal/metrics"
)

const (
	MaxRetries        = 3
	InitialRetryDelay = 1 * time.Second
	MaxRetryDelay     = 30 * time.Second
)

// Handler processes one event payload for a topic. Errors propagate out of
// the handler so the consumer can retry and eventually dead-letter them;
// nothing is swallowed at the handler boundary.
type Handler interface {
	Handle(topic string, payload []byte) error
	IsRetryable(err error) bool
}

// MessageMetadata travels in DLQ message headers and records the failure
// history of a message.
type MessageMetadata struct {
	RetryCount    int       `json:"retry_count"`
	FirstFailure  time.Time `json:"first_failure"`
	LastFailure   time.Time `json:"last_failure"`
	OriginalTopic string    `json:"original_topic"`
	ErrorMessage  string    `json:"error_message"`
}

// KafkaConsumer consumes one or more topics in a consumer group, retrying
// failed handlers with exponential backoff and routing exhausted messages
// to the topic's dead letter queue.
type KafkaConsumer struct {
	consumerGroup sarama.ConsumerGroup
	producer      sarama.SyncProducer
	handler       Handler
	logger        *logrus.Logger
	topics        []string
	metrics       *metrics.ConsumerMetrics
}

func NewKafkaConsumer(brokers, groupID string, topics []string, handler Handler, logger *logrus.Logger, m *metrics.ConsumerMetrics) (*KafkaConsumer, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	consumerConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	consumerConfig.Version = sarama.V2_6_0_0

	consumerGroup, err := sarama.NewConsumerGroup(strings.Split(brokers, ","), groupID, consumerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	producerConfig := sarama.NewConfig()
	producerConfig.Producer.RequiredAcks = sarama.WaitForAll
	producerConfig.Producer.Retry.Max = 5
	producerConfig.Producer.Return.Successes = true
	producerConfig.Version = sarama.V2_6_0_0

	producer, err := sarama.NewSyncProducer(strings.Split(brokers, ","), producerConfig)
	if err != nil {
		consumerGroup.Close()
		return nil, fmt.Errorf("failed to create producer for DLQ: %w", err)
	}

	return &KafkaConsumer{
		consumerGroup: consumerGroup,
		producer:      producer,
		handler:       handler,
		logger:        logger,
		topics:        topics,
		metrics:       m,
	}, nil
}

func (c *KafkaConsumer) Start(ctx context.Context) error {
	handler := &consumerGroupHandler{
		handler:  c.handler,
		producer: c.producer,
		logger:   c.logger,
		metrics:  c.metrics,
	}

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Kafka consumer context cancelled")
			return nil
		default:
			if err := c.consumerGroup.Consume(ctx, c.topics, handler); err != nil {
				c.logger.WithError(err).Error("Error consuming from Kafka")
				return err
			}
		}
	}
}

func (c *KafkaConsumer) Close() error {
	if err := c.producer.Close(); err != nil {
		c.logger.WithError(err).Error("Failed to close producer")
	}
	return c.consumerGroup.Close()
}

type consumerGroupHandler struct {
	handler  Handler
	producer sarama.SyncProducer
	logger   *logrus.Logger
	metrics  *metrics.ConsumerMetrics
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.logger.Info("Kafka consumer group session setup")
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.logger.Info("Kafka consumer group session cleanup")
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}

			h.metrics.Processed.WithLabelValues(message.Topic).Inc()

			if err := h.handleWithRetry(message); err != nil {
				h.logger.WithError(err).Error("Failed to process message after retries")
				h.metrics.Failed.WithLabelValues(message.Topic).Inc()

				if dlqErr := h.sendToDLQ(message, err); dlqErr != nil {
					h.logger.WithError(dlqErr).Error("Failed to send message to DLQ")
				} else {
					h.metrics.DeadLettered.WithLabelValues(message.Topic).Inc()
				}
			} else {
				h.metrics.Succeeded.WithLabelValues(message.Topic).Inc()
			}

			session.MarkMessage(message, "")

		case <-session.Context().Done():
			h.logger.Info("Consumer group session context cancelled")
			return nil
		}
	}
}

func (h *consumerGroupHandler) handleWithRetry(message *sarama.ConsumerMessage) error {
	h.logger.WithFields(logrus.Fields{
		"topic":     message.Topic,
		"partition": message.Partition,
		"offset":    message.Offset,
		"key":       string(message.Key),
	}).Info("Processing Kafka message")

	retryDelay := InitialRetryDelay

	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			h.logger.WithFields(logrus.Fields{
				"topic":   message.Topic,
				"key":     string(message.Key),
				"attempt": attempt,
				"delay":   retryDelay,
			}).Info("Retrying event handler")

			time.Sleep(retryDelay)
			h.metrics.Retried.WithLabelValues(message.Topic).Inc()
			retryDelay = NextRetryDelay(retryDelay)
		}

		err := h.handler.Handle(message.Topic, message.Value)
		if err == nil {
			return nil
		}

		if !h.handler.IsRetryable(err) {
			h.logger.WithError(err).Error("Non-retryable error encountered")
			return err
		}

		h.logger.WithError(err).WithField("attempt", attempt+1).Warn("Retryable error processing event")
	}

	return fmt.Errorf("exhausted retries for message on %s", message.Topic)
}

// NextRetryDelay doubles the delay up to MaxRetryDelay.
func NextRetryDelay(current time.Duration) time.Duration {
	next := current * 2
	if next > MaxRetryDelay {
		return MaxRetryDelay
	}
	return next
}

// ExtractMetadata reads the failure history from a message's headers,
// returning zero-valued metadata for a first failure.
func ExtractMetadata(message *sarama.ConsumerMessage) MessageMetadata {
	metadata := MessageMetadata{OriginalTopic: message.Topic}

	for _, header := range message.Headers {
		if string(header.Key) == "metadata" {
			if err := json.Unmarshal(header.Value, &metadata); err == nil {
				metadata.OriginalTopic = message.Topic
			}
			break
		}
	}

	return metadata
}

func (h *consumerGroupHandler) sendToDLQ(message *sarama.ConsumerMessage, processingError error) error {
	prior := ExtractMetadata(message)
	metadata := MessageMetadata{
		RetryCount:    prior.RetryCount + 1,
		FirstFailure:  prior.FirstFailure,
		LastFailure:   time.Now(),
		OriginalTopic: message.Topic,
		ErrorMessage:  processingError.Error(),
	}
	if metadata.FirstFailure.IsZero() {
		metadata.FirstFailure = metadata.LastFailure
	}

	metadataBytes, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	dlqMessage := &sarama.ProducerMessage{
		Topic: DLQTopic(message.Topic),
		Key:   sarama.ByteEncoder(message.Key),
		Value: sarama.ByteEncoder(message.Value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("metadata"), Value: metadataBytes},
			{Key: []byte("original_topic"), Value: []byte(message.Topic)},
			{Key: []byte("original_partition"), Value: []byte(fmt.Sprintf("%d", message.Partition))},
			{Key: []byte("original_offset"), Value: []byte(fmt.Sprintf("%d", message.Offset))},
			{Key: []byte("failure_time"), Value: []byte(time.Now().Format(time.RFC3339))},
		},
	}

	partition, offset, err := h.producer.SendMessage(dlqMessage)
	if err != nil {
		return fmt.Errorf("failed to send to DLQ: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"dlq_topic":     DLQTopic(message.Topic),
		"dlq_partition": partition,
		"dlq_offset":    offset,
		"original_key":  string(message.Key),
		"error":         processingError.Error(),
	}).Warn("Message sent to dead letter queue")

	return nil
}
