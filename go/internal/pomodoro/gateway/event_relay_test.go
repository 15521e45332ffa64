package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	natstest "github.com/nats-io/nats-server/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/studybuddy/go/internal/pomodoro/events"
)

func runJetStream(t *testing.T) *server.Server {
	t.Helper()
	opts := natstest.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	s := natstest.RunServer(&opts)
	t.Cleanup(s.Shutdown)
	return s
}

func startRelay(t *testing.T, url string) (*ConnectionManager, *EventRelay) {
	t.Helper()

	cm := startManager(t)
	cfg := DefaultRelayConfig()
	cfg.URL = url
	cfg.ReconnectWait = 50 * time.Millisecond
	relay, err := NewEventRelay(cfg, cm)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go relay.Start(ctx)
	t.Cleanup(func() {
		cancel()
		relay.Stop()
	})

	require.Eventually(t, func() bool {
		relay.mu.Lock()
		defer relay.mu.Unlock()
		return relay.consumeCtx != nil
	}, 5*time.Second, 10*time.Millisecond)
	return cm, relay
}

func TestEventRelayFansOutAcrossInstances(t *testing.T) {
	s := runJetStream(t)
	topic := events.GroupTopic(forcedGroup)

	_, origin := startRelay(t, s.ClientURL())
	remote, _ := startRelay(t, s.ClientURL())
	client, conn := attachClient(t, remote, topic)
	require.NoError(t, conn.Prime(nil))

	require.NoError(t, origin.Publish(context.Background(), topic, events.Error("from another instance")))

	f := readFrame(t, client)
	assert.Equal(t, "error", f.Type)
	assert.Equal(t, "from another instance", f.Message)
}

func TestEventRelayDeliversLocallyOnce(t *testing.T) {
	s := runJetStream(t)
	topic := events.GroupTopic(forcedGroup)

	cm, relay := startRelay(t, s.ClientURL())
	client, conn := attachClient(t, cm, topic)
	require.NoError(t, conn.Prime(nil))

	require.NoError(t, relay.Publish(context.Background(), topic, events.Error("first")))
	require.NoError(t, relay.Publish(context.Background(), topic, events.Error("second")))

	assert.Equal(t, "first", readFrame(t, client).Message)
	assert.Equal(t, "second", readFrame(t, client).Message)

	client.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := client.ReadMessage()
	assert.Error(t, err, "no frame is delivered twice")
}

func TestEventRelayFallsBackToLocalDelivery(t *testing.T) {
	s := runJetStream(t)
	topic := events.GroupTopic(forcedGroup)

	cm, relay := startRelay(t, s.ClientURL())
	client, conn := attachClient(t, cm, topic)
	require.NoError(t, conn.Prime(nil))

	s.Shutdown()
	require.Eventually(t, func() bool {
		return !relay.Connected()
	}, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	require.Error(t, relay.Publish(ctx, topic, events.Error("stream unreachable")))

	assert.Equal(t, "stream unreachable", readFrame(t, client).Message)

	relay.fallbackMu.Lock()
	defer relay.fallbackMu.Unlock()
	assert.Len(t, relay.fallback, 1)
}

func TestEventRelaySkipsFramesDeliveredOnFallback(t *testing.T) {
	cm := startManager(t)
	topic := events.GroupTopic(forcedGroup)
	client, conn := attachClient(t, cm, topic)
	require.NoError(t, conn.Prime(nil))

	relay := &EventRelay{
		config:   DefaultRelayConfig(),
		local:    cm,
		instance: "instance-a",
		fallback: make(map[string]time.Time),
	}

	encode := func(eventID, text string) []byte {
		payload, err := json.Marshal(events.Error(text))
		require.NoError(t, err)
		data, err := json.Marshal(envelope{
			EventID:   eventID,
			Topic:     topic,
			Type:      "error",
			Origin:    "instance-a",
			Timestamp: time.Now(),
			Payload:   payload,
		})
		require.NoError(t, err)
		return data
	}

	relay.markDelivered("evt-1")
	relay.handleEnvelope("pomodoro.events.group.7", encode("evt-1", "stored despite the failed publish"))
	relay.handleEnvelope("pomodoro.events.group.7", encode("evt-2", "fresh"))

	assert.Equal(t, "fresh", readFrame(t, client).Message)
	assert.Empty(t, relay.fallback)
}
