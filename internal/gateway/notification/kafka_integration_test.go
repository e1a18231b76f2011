//go:build integration

package notification_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"dgtt/internal/gateway/notification"
	"dgtt/internal/platform/config"
	"dgtt/internal/platform/kafka"
	"dgtt/pkg/testutil/containers"
)

func TestKafkaSinkAgainstRedpanda(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rp := containers.GetManager().GetRedpanda(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cfg := config.KafkaConfig{
		Brokers:           []string{rp.Broker},
		Topic:             "dgtt.test.notifications",
		ClientID:          "dgtt-test",
		Partitions:        1,
		ReplicationFactor: 1,
	}
	client, err := kafka.New(ctx, cfg)
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.EnsureTopic(ctx))
	require.NoError(t, client.EnsureTopic(ctx), "second call tolerates an existing topic")

	sink := notification.NewKafkaSink(client, cfg.Topic)
	msg := notification.Message{
		Event:      notification.EventPermitIssuance,
		EntityType: "CANDIDAT",
		EntityID:   "c-9",
		Reference:  "LIC1700000000000ABCDEF12",
		OccurredAt: time.Now().UTC(),
	}
	require.NoError(t, sink.Send(ctx, msg))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.Empty(t, fetches.Errors())
	records := fetches.Records()
	require.NotEmpty(t, records)

	var got notification.Message
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	require.Equal(t, notification.EventPermitIssuance, got.Event)
	require.Equal(t, "c-9", string(records[0].Key))
}
