package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDLQTopic(t *testing.T) {
	assert.Equal(t, "notification.send.dlq", DLQTopic(NotificationTopic))
	assert.Equal(t, "order.status.changed.dlq", DLQTopic(OrderStatusChangedTopic))
}

func TestNextRetryDelayDoublesAndCaps(t *testing.T) {
	delay := InitialRetryDelay
	assert.Equal(t, 2*time.Second, NextRetryDelay(delay))
	assert.Equal(t, 4*time.Second, NextRetryDelay(2*time.Second))
	assert.Equal(t, 16*time.Second, NextRetryDelay(8*time.Second))
	assert.Equal(t, MaxRetryDelay, NextRetryDelay(16*time.Second))
	assert.Equal(t, MaxRetryDelay, NextRetryDelay(MaxRetryDelay))
}

func TestExtractMetadataFirstFailure(t *testing.T) {
	message := &sarama.ConsumerMessage{Topic: NotificationTopic}

	metadata := ExtractMetadata(message)
	assert.Equal(t, 0, metadata.RetryCount)
	assert.Equal(t, NotificationTopic, metadata.OriginalTopic)
	assert.True(t, metadata.FirstFailure.IsZero())
}

func TestExtractMetadataFromHeaders(t *testing.T) {
	first := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	raw, err := json.Marshal(MessageMetadata{
		RetryCount:   2,
		FirstFailure: first,
		ErrorMessage: "smtp unavailable",
	})
	require.NoError(t, err)

	message := &sarama.ConsumerMessage{
		Topic: DLQTopic(NotificationTopic),
		Headers: []*sarama.RecordHeader{
			{Key: []byte("failure_time"), Value: []byte("2024-05-01T12:00:00Z")},
			{Key: []byte("metadata"), Value: raw},
		},
	}

	metadata := ExtractMetadata(message)
	assert.Equal(t, 2, metadata.RetryCount)
	assert.Equal(t, "smtp unavailable", metadata.ErrorMessage)
	assert.True(t, metadata.FirstFailure.Equal(first))
	// The topic on the message wins over whatever was serialized.
	assert.Equal(t, DLQTopic(NotificationTopic), metadata.OriginalTopic)
}

func TestMaxReplayAttemptsDerivedFromRetries(t *testing.T) {
	assert.Equal(t, MaxRetries*2, MaxReplayAttempts)
}
