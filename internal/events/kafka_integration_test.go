//go:build integration

package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"govdociq/internal/events"
	"govdociq/pkg/testutil/containers"
)

func TestKafkaBusPublish(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	redpanda := containers.GetManager().GetRedpanda(t)
	const topic = "govdociq.events.test"
	require.NoError(t, redpanda.CreateTopic(ctx, topic))

	bus, err := events.NewKafkaBus(redpanda.Brokers, topic, nil)
	require.NoError(t, err)
	defer bus.Close()

	env, err := events.NewEnvelope(events.DocumentApproved, "tenant-a", "doc-1", "SYSTEM", "", map[string]any{
		"decision": "APPROVE",
	})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, env))

	// Invalid payloads never reach the broker.
	bad := env
	bad.EventType = events.DocumentRejected
	err = bus.Publish(ctx, bad)
	require.Error(t, err)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(redpanda.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.Len(t, records, 1)

	record := records[0]
	require.Equal(t, "doc-1", string(record.Key))

	headers := map[string]string{}
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}
	require.Equal(t, events.DocumentApproved, headers["event_type"])
	require.Equal(t, "tenant-a", headers["tenant_id"])

	var decoded events.Envelope
	require.NoError(t, json.Unmarshal(record.Value, &decoded))
	require.Equal(t, events.DocumentApproved, decoded.EventType)
	require.Equal(t, "APPROVE", decoded.Payload["decision"])
}
