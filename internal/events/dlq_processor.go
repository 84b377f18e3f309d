package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

// MaxReplayAttempts caps how often a dead-lettered message may be pushed
// back onto its original topic before it is abandoned for good.
const MaxReplayAttempts = MaxRetries * 2

// DLQProcessor tails the dead letter topics and replays messages onto
// their original topic after a cool-down, up to MaxReplayAttempts.
type DLQProcessor struct {
	consumer    sarama.ConsumerGroup
	producer    sarama.SyncProducer
	logger      *logrus.Logger
	dlqTopics   []string
	replayDelay time.Duration
}

func NewDLQProcessor(brokers string, topics []string, replayDelay time.Duration, logger *logrus.Logger) (*DLQProcessor, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	consumerConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	consumerConfig.Version = sarama.V2_6_0_0

	consumer, err := sarama.NewConsumerGroup(strings.Split(brokers, ","), "dlq-processor-group", consumerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create DLQ consumer: %w", err)
	}

	producerConfig := sarama.NewConfig()
	producerConfig.Producer.RequiredAcks = sarama.WaitForAll
	producerConfig.Producer.Retry.Max = 5
	producerConfig.Producer.Return.Successes = true
	producerConfig.Version = sarama.V2_6_0_0

	producer, err := sarama.NewSyncProducer(strings.Split(brokers, ","), producerConfig)
	if err != nil {
		consumer.Close()
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	dlqTopics := make([]string, 0, len(topics))
	for _, t := range topics {
		dlqTopics = append(dlqTopics, DLQTopic(t))
	}

	return &DLQProcessor{
		consumer:    consumer,
		producer:    producer,
		logger:      logger,
		dlqTopics:   dlqTopics,
		replayDelay: replayDelay,
	}, nil
}

func (p *DLQProcessor) ProcessDLQ(ctx context.Context) error {
	handler := &dlqConsumerHandler{processor: p, logger: p.logger}

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("DLQ processor context cancelled")
			return nil
		default:
			if err := p.consumer.Consume(ctx, p.dlqTopics, handler); err != nil {
				p.logger.WithError(err).Error("Error consuming from DLQ")
				return err
			}
		}
	}
}

func (p *DLQProcessor) ReplayMessage(message *sarama.ConsumerMessage) error {
	metadata := ExtractMetadata(message)

	if metadata.RetryCount >= MaxReplayAttempts {
		p.logger.WithFields(logrus.Fields{
			"key":         string(message.Key),
			"retry_count": metadata.RetryCount,
		}).Error("Message exceeded maximum replay attempts")
		return fmt.Errorf("exceeded maximum replay attempts")
	}

	originalTopic := strings.TrimSuffix(message.Topic, ".dlq")

	replayMessage := &sarama.ProducerMessage{
		Topic: originalTopic,
		Key:   sarama.ByteEncoder(message.Key),
		Value: sarama.ByteEncoder(message.Value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("retry_count"), Value: []byte(fmt.Sprintf("%d", metadata.RetryCount))},
			{Key: []byte("replayed_from_dlq"), Value: []byte("true")},
			{Key: []byte("replay_time"), Value: []byte(time.Now().Format(time.RFC3339))},
		},
	}

	partition, offset, err := p.producer.SendMessage(replayMessage)
	if err != nil {
		return fmt.Errorf("failed to replay message: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"replay_topic":     originalTopic,
		"replay_partition": partition,
		"replay_offset":    offset,
		"key":              string(message.Key),
	}).Info("Message replayed from DLQ")

	return nil
}

func (p *DLQProcessor) Close() error {
	if err := p.producer.Close(); err != nil {
		p.logger.WithError(err).Error("Failed to close producer")
	}
	return p.consumer.Close()
}

type dlqConsumerHandler struct {
	processor *DLQProcessor
	logger    *logrus.Logger
}

func (h *dlqConsumerHandler) Setup(sarama.ConsumerGroupSession) error {
	h.logger.Info("DLQ consumer session setup")
	return nil
}

func (h *dlqConsumerHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.logger.Info("DLQ consumer session cleanup")
	return nil
}

func (h *dlqConsumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}

			metadata := ExtractMetadata(message)
			h.logger.WithFields(logrus.Fields{
				"topic":          message.Topic,
				"key":            string(message.Key),
				"original_topic": metadata.OriginalTopic,
				"retry_count":    metadata.RetryCount,
				"first_failure":  metadata.FirstFailure,
				"last_failure":   metadata.LastFailure,
				"error_message":  metadata.ErrorMessage,
			}).Warn("DLQ message details")

			select {
			case <-time.After(h.processor.replayDelay):
			case <-session.Context().Done():
				return nil
			}

			if err := h.processor.ReplayMessage(message); err != nil {
				h.logger.WithError(err).Error("Failed to replay DLQ message")
			}

			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}
