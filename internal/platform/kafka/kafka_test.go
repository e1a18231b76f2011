package kafka

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dgtt/internal/platform/config"
)

func TestNewWithoutBrokersIsDisabled(t *testing.T) {
	c, err := New(context.Background(), config.KafkaConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNewRequiresTopic(t *testing.T) {
	_, err := New(context.Background(), config.KafkaConfig{Brokers: []string{"localhost:9092"}})
	assert.EqualError(t, err, "kafka topic is required")
}
