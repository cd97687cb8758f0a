package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-backend/backend/internal/auth"
	"social-backend/backend/internal/ledger"
	"social-backend/backend/internal/notification"
)

func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		if id := c.Query("as"); id != "" {
			auth.WithAccountID(c, id)
		}
		hub.ServeWS(c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, accountID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?as=" + accountID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForConnections(t *testing.T, hub *Hub, accountID string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.Connections(accountID) == n
	}, time.Second, 10*time.Millisecond)
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev map[string]interface{}
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestHub_PublishMessageReachesBothParticipants(t *testing.T) {
	hub := NewHub("*")
	srv := newTestServer(t, hub)

	ana := dial(t, srv, "ana")
	bia := dial(t, srv, "bia")
	waitForConnections(t, hub, "ana", 1)
	waitForConnections(t, hub, "bia", 1)

	conv := ledger.Conversation{ID: "c1", Participants: []string{"ana", "bia"}}
	msg := ledger.Message{ID: "m1", ConversationID: "c1", SenderID: "ana", Content: "oi"}
	hub.PublishMessage(context.Background(), conv, msg)

	for _, conn := range []*websocket.Conn{ana, bia} {
		ev := readEvent(t, conn)
		assert.Equal(t, EventMessageCreated, ev["type"])
		payload, ok := ev["payload"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "oi", payload["content"])
	}
}

func TestHub_PublishNotificationOnlyReachesOwner(t *testing.T) {
	hub := NewHub("*")
	srv := newTestServer(t, hub)

	ana := dial(t, srv, "ana")
	bia := dial(t, srv, "bia")
	waitForConnections(t, hub, "ana", 1)
	waitForConnections(t, hub, "bia", 1)

	hub.PublishNotification(context.Background(), notification.Notification{ID: "n1", OwnerID: "bia", Message: "hello"})

	ev := readEvent(t, bia)
	assert.Equal(t, EventNotificationCreated, ev["type"])

	require.NoError(t, ana.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := ana.ReadMessage()
	assert.Error(t, err)
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub := NewHub("*")
	srv := newTestServer(t, hub)

	conn := dial(t, srv, "ana")
	waitForConnections(t, hub, "ana", 1)

	require.NoError(t, conn.Close())
	waitForConnections(t, hub, "ana", 0)
}

func TestHub_RejectsAnonymous(t *testing.T) {
	hub := NewHub("*")
	srv := newTestServer(t, hub)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
