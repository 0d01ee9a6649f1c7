package broadcast_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/kilnworks/autodev/internal/broadcast"
	"github.com/kilnworks/autodev/internal/common/logger"
)

func startTestHub(t *testing.T) (*broadcast.Hub, string, func()) {
	t.Helper()
	hub := broadcast.NewHub(logger.Default())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		projectID := r.URL.Query().Get("projectId")
		client := broadcast.NewClient("test-client", conn, hub, projectID, logger.Default())
		hub.Register(client)
		go client.WritePump()
		client.ReadPump()
	}))

	return hub, srv.URL, func() {
		cancel()
		srv.Close()
	}
}

func TestHub_PublishReachesSubscribedClient(t *testing.T) {
	hub, url, cleanup := startTestHub(t)
	defer cleanup()

	wsURL := "ws" + strings.TrimPrefix(url, "http") + "/?projectId=p1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.SubscriberCount("p1") == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish(broadcast.StatusMessage("p1", "running"))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg broadcast.Message
	require.NoError(t, json.Unmarshal(data, &msg))
	require.Equal(t, broadcast.MessageStatus, msg.Type)
	require.Equal(t, "p1", msg.ProjectID)
}

func TestHub_PublishDoesNotReachOtherProject(t *testing.T) {
	hub, url, cleanup := startTestHub(t)
	defer cleanup()

	wsURL := "ws" + strings.TrimPrefix(url, "http") + "/?projectId=p1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.SubscriberCount("p1") == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish(broadcast.StatusMessage("other-project", "running"))

	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, _, err = conn.ReadMessage()
	require.Error(t, err, "client subscribed to p1 must not receive messages for other-project")
}
