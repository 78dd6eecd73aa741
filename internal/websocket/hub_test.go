package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drillagg/pkg/contracts/domain"
)

func dial(t *testing.T, hub *Hub) *gorilla.Conn {
	t.Helper()

	server := httptest.NewServer(Handler(hub, func(*http.Request) bool { return true }))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *gorilla.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHubWelcomesAndBroadcastsEvents(t *testing.T) {
	hub := NewHub(nil)
	hub.Start()
	defer hub.Stop()

	conn := dial(t, hub)

	welcome := readMessage(t, conn)
	assert.Equal(t, TypeConnection, welcome.Type)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(domain.RunEvent{
		Type:     domain.EventDocumentDone,
		RunID:    "run-1",
		Document: "A.xlsx",
		Records:  3,
	})

	msg := readMessage(t, conn)
	assert.Equal(t, string(domain.EventDocumentDone), msg.Type)
	assert.Equal(t, "run-1", msg.TraceID)
	assert.False(t, msg.Timestamp.IsZero())

	data, ok := msg.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "A.xlsx", data["document"])
	assert.EqualValues(t, 3, data["records"])
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	hub := NewHub(nil)
	hub.Start()
	defer hub.Stop()

	conn := dial(t, hub)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestHubStopClosesClients(t *testing.T) {
	hub := NewHub(nil)
	hub.Start()

	conn := dial(t, hub)
	readMessage(t, conn)

	hub.Stop()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.ClientCount())

	// Publishing after Stop must not block or panic
	hub.Publish(domain.RunEvent{Type: domain.EventRunCompleted})
	assert.False(t, hub.Serve(nil))
}

func TestPublishWithoutClients(t *testing.T) {
	hub := NewHub(nil)
	hub.Start()
	defer hub.Stop()

	for i := 0; i < broadcastBuffer*2; i++ {
		hub.Publish(domain.RunEvent{Type: domain.EventRunStarted})
	}
	assert.Equal(t, 0, hub.ClientCount())
}
