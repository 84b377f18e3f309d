package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jogardn/order-fulfillment/internal/metrics"
)

// Registered once; prometheus rejects duplicate collector names.
var testMetrics = metrics.NewConsumerMetrics("events_test")

type scriptedHandler struct {
	failures  int // handler errors before the first success
	calls     int
	retryable bool
}

func (h *scriptedHandler) Handle(topic string, payload []byte) error {
	h.calls++
	if h.calls <= h.failures {
		return errors.New("handler failure")
	}
	return nil
}

func (h *scriptedHandler) IsRetryable(err error) bool { return h.retryable }

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func testMessage() *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{
		Topic: NotificationTopic,
		Key:   []byte("user-1"),
		Value: []byte(`{"user_id":1}`),
	}
}

func TestHandleWithRetryFirstAttemptSucceeds(t *testing.T) {
	handler := &scriptedHandler{retryable: true}
	h := &consumerGroupHandler{handler: handler, logger: quietLogger(), metrics: testMetrics}

	require.NoError(t, h.handleWithRetry(testMessage()))
	assert.Equal(t, 1, handler.calls)
}

func TestHandleWithRetryRecoversAfterFailure(t *testing.T) {
	handler := &scriptedHandler{failures: 1, retryable: true}
	h := &consumerGroupHandler{handler: handler, logger: quietLogger(), metrics: testMetrics}

	require.NoError(t, h.handleWithRetry(testMessage()))
	assert.Equal(t, 2, handler.calls, "one retry after the initial failure")
}

func TestHandleWithRetryNonRetryableShortCircuits(t *testing.T) {
	handler := &scriptedHandler{failures: 10, retryable: false}
	h := &consumerGroupHandler{handler: handler, logger: quietLogger(), metrics: testMetrics}

	assert.Error(t, h.handleWithRetry(testMessage()))
	assert.Equal(t, 1, handler.calls, "non-retryable errors must not be retried")
}

func TestSendToDLQ(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndSucceed()

	h := &consumerGroupHandler{
		handler:  &scriptedHandler{},
		producer: producer,
		logger:   quietLogger(),
		metrics:  testMetrics,
	}

	require.NoError(t, h.sendToDLQ(testMessage(), errors.New("exhausted")))
	require.NoError(t, producer.Close())
}

func TestSendToDLQIncrementsRetryCount(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)

	var captured *sarama.ProducerMessage
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		captured = msg
		return nil
	})

	h := &consumerGroupHandler{
		handler:  &scriptedHandler{},
		producer: producer,
		logger:   quietLogger(),
		metrics:  testMetrics,
	}

	require.NoError(t, h.sendToDLQ(testMessage(), errors.New("still failing")))
	require.NotNil(t, captured)
	assert.Equal(t, DLQTopic(NotificationTopic), captured.Topic)

	var metadata MessageMetadata
	for _, header := range captured.Headers {
		if string(header.Key) == "metadata" {
			require.NoError(t, json.Unmarshal(header.Value, &metadata))
		}
	}
	assert.Equal(t, 1, metadata.RetryCount)
	assert.Equal(t, NotificationTopic, metadata.OriginalTopic)
	assert.Equal(t, "still failing", metadata.ErrorMessage)
	assert.False(t, metadata.FirstFailure.IsZero())

	require.NoError(t, producer.Close())
}
