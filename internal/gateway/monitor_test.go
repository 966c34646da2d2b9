package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okovalenko/tgrelay/internal/logging"
)

func monitorTestServer(t *testing.T, token string) (*MonitorHub, string) {
	t.Helper()
	hub := NewMonitorHub(token, logging.New(nil, "silent"))
	ts := httptest.NewServer(http.HandlerFunc(hub.handleWebSocket))
	t.Cleanup(ts.Close)
	t.Cleanup(hub.CloseAll)
	return hub, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func TestMonitor_ReceivesEvents(t *testing.T) {
	hub, url := monitorTestServer(t, "sekrit")

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token=sekrit", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	hub.Publish(MonitorEvent{
		Type:           "message",
		ConversationID: "100:7",
		Version:        3,
		Degraded:       true,
	})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var event MonitorEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, "message", event.Type)
	assert.Equal(t, "100:7", event.ConversationID)
	assert.Equal(t, int64(3), event.Version)
	assert.True(t, event.Degraded)
	assert.False(t, event.Timestamp.IsZero())
}

func TestMonitor_WrongTokenRejected(t *testing.T) {
	_, url := monitorTestServer(t, "sekrit")

	_, resp, err := websocket.DefaultDialer.Dial(url+"?token=wrong", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMonitor_DisabledWithoutToken(t *testing.T) {
	_, url := monitorTestServer(t, "")

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// The upgrade must also work behind the full middleware chain, where
// the response writer is wrapped.
func TestMonitor_ConnectsThroughServerRoutes(t *testing.T) {
	srv := testServer(t, &fakeHandler{}, &fakeSender{})
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	t.Cleanup(srv.monitor.CloseAll)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=monitortoken"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return srv.monitor.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	srv.monitor.Publish(MonitorEvent{Type: "message", ConversationID: "100:7", Version: 1})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var event MonitorEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, "100:7", event.ConversationID)
}

func TestMonitor_DisconnectedClientRemoved(t *testing.T) {
	hub, url := monitorTestServer(t, "sekrit")

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token=sekrit", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 },
		time.Second, 10*time.Millisecond)
}
