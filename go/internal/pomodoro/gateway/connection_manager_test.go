package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/studybuddy/go/internal/models"
	"github.com/mcdev12/studybuddy/go/internal/pomodoro/events"
)

func startManager(t *testing.T) *ConnectionManager {
	t.Helper()
	cm := NewConnectionManager(DefaultConnectionConfig(), NewRegistry())
	ctx, cancel := context.WithCancel(context.Background())
	go cm.Start(ctx)
	t.Cleanup(cancel)
	return cm
}

// attachClient dials a socket attached to topic and returns both ends. The
// server end is still held.
func attachClient(t *testing.T, cm *ConnectionManager, topic events.Topic) (*websocket.Conn, *Connection) {
	t.Helper()

	attached := make(chan *Connection, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := cm.Upgrade(w, r)
		if err != nil {
			return
		}
		user := models.User{ID: aliceID, Username: "alice"}
		attached <- cm.Attach(ws, user, forcedGroup, []events.Topic{topic}, nil)
	}))
	t.Cleanup(server.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case conn := <-attached:
		return client, conn
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not attached")
		return nil, nil
	}
}

func TestPrimeIsSentBeforeHeldFrames(t *testing.T) {
	cm := startManager(t)
	topic := events.GroupTopic(forcedGroup)
	client, conn := attachClient(t, cm, topic)

	require.NoError(t, cm.Publish(context.Background(), topic, events.Error("published while loading")))
	require.Eventually(t, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return len(conn.pending) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Prime(events.Error("initial")))
	assert.Equal(t, "initial", readFrame(t, client).Message)
	assert.Equal(t, "published while loading", readFrame(t, client).Message)

	require.NoError(t, cm.Publish(context.Background(), topic, events.Error("live")))
	assert.Equal(t, "live", readFrame(t, client).Message)
}

func TestConnectionCloseIsIdempotent(t *testing.T) {
	cm := startManager(t)
	topic := events.GroupTopic(forcedGroup)
	client, conn := attachClient(t, cm, topic)
	require.NoError(t, conn.Prime(nil))

	require.Equal(t, 1, cm.Subscribers(topic))
	require.Equal(t, map[int64]int{forcedGroup: 1}, cm.registry.Counts())

	conn.Close()
	conn.Close()

	assert.Equal(t, 0, cm.Subscribers(topic))
	assert.Empty(t, cm.registry.Counts())
	assert.Zero(t, cm.GetConnectionStats().TotalConnections)
	assert.NoError(t, cm.Publish(context.Background(), topic, events.Error("after close")))

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := client.ReadMessage()
	assert.Error(t, err)
}
