package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamwatch/streamwatch-backend/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAlert(severity models.Severity) models.AlertMessage {
	return models.AlertMessage{
		Type:      models.AlertTypeNew,
		Timestamp: time.Now().UTC(),
		Alert: models.AlertPayload{
			SignatureID: "sig-1",
			Type:        "connection_timeout",
			Severity:    severity,
		},
	}
}

func dialTestServer(t *testing.T, ctx context.Context, hub *Hub) *gws.Conn {
	t.Helper()
	handler := NewHandler(ctx, hub, testLogger())
	srv := httptest.NewServer(http.HandlerFunc(handler.ServeWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBroadcastReachesSubscriber(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(ctx)
	go hub.Run()
	defer hub.Stop()

	conn := dialTestServer(t, ctx, hub)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Broadcast(models.ChannelAnomalyAlerts, testAlert(models.SeverityError)))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg models.AlertMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, models.AlertTypeNew, msg.Type)
	assert.Equal(t, "sig-1", msg.Alert.SignatureID)
}

func TestBroadcastSkipsUnsubscribedChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(ctx)
	go hub.Run()
	defer hub.Stop()

	conn := dialTestServer(t, ctx, hub)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	// Clients only get anomaly_alerts until they opt in.
	require.NoError(t, hub.Broadcast(models.ChannelEscalations, testAlert(models.SeverityCritical)))
	require.NoError(t, hub.Broadcast(models.ChannelAnomalyAlerts, testAlert(models.SeverityWarning)))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg models.AlertMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, models.SeverityWarning, msg.Alert.Severity)
}

func TestSubscribeToEscalations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(ctx)
	go hub.Run()
	defer hub.Stop()

	conn := dialTestServer(t, ctx, hub)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	sub := map[string]interface{}{
		"action":   "subscribe",
		"channels": []string{models.ChannelEscalations},
	}
	require.NoError(t, conn.WriteJSON(sub))

	// The subscription races the broadcast; poll until it lands.
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		for client := range hub.clients {
			if client.subscribed(models.ChannelEscalations) {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Broadcast(models.ChannelEscalations, testAlert(models.SeverityCritical)))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg models.AlertMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, models.SeverityCritical, msg.Alert.Severity)
}

func TestBroadcastWithNoClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(ctx)
	go hub.Run()
	defer hub.Stop()

	assert.NoError(t, hub.Broadcast(models.ChannelAnomalyAlerts, testAlert(models.SeverityInfo)))
	assert.Equal(t, 0, hub.ClientCount())
}

func TestStopDisconnectsClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(ctx)
	go hub.Run()

	conn := dialTestServer(t, ctx, hub)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	hub.Stop()
	assert.Equal(t, 0, hub.ClientCount())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
