package realtime

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commonwealth/internal/domain"
	"commonwealth/internal/pkg/jwt"
)

func setupServer(t *testing.T) (*Hub, *jwt.Service, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	tokens := jwt.New("test-secret", time.Hour)

	r := gin.New()
	RegisterRoutes(r, NewHandler(hub, tokens, nil))
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return hub, tokens, "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/notifications"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPublish_ReachesConnectedRecipients(t *testing.T) {
	hub, tokens, url := setupServer(t)

	token, err := tokens.GenerateToken(7, "member")
	require.NoError(t, err)
	first := dial(t, url+"?token="+token)
	second := dial(t, url+"?token="+token)

	require.Eventually(t, func() bool { return hub.Connected(7) == 2 }, time.Second, 10*time.Millisecond)

	n := &domain.Notification{ID: 11, CategoryID: domain.CategoryNewComment}
	require.NoError(t, hub.Publish(context.Background(), n, []domain.Recipient{
		{UserID: 7, Offset: 3},
		{UserID: 8, Offset: 1},
	}))

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)

		var ev Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		assert.Equal(t, Event{Type: EventNotification, Offset: 3, NotificationID: 11, CategoryID: "new-comment-creation"}, ev)
	}
}

func TestDisconnectUnregisters(t *testing.T) {
	hub, tokens, url := setupServer(t)
	token, err := tokens.GenerateToken(5, "member")
	require.NoError(t, err)

	conn := dial(t, url+"?token="+token)
	require.Eventually(t, func() bool { return hub.Connected(5) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()
	assert.Eventually(t, func() bool { return hub.Connected(5) == 0 }, time.Second, 10*time.Millisecond)
}

func TestConnect_RequiresValidToken(t *testing.T) {
	_, _, url := setupServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	_, resp, err = websocket.DefaultDialer.Dial(url+"?token=garbage", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestPublish_SkipsSlowClients(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	c := &connection{userID: 1, send: make(chan []byte, 1)}
	hub.register(c)

	n := &domain.Notification{ID: 1, CategoryID: domain.CategoryNewThread}
	recipients := []domain.Recipient{{UserID: 1, Offset: 1}}
	require.NoError(t, hub.Publish(context.Background(), n, recipients))
	require.NoError(t, hub.Publish(context.Background(), n, recipients))

	assert.Len(t, c.send, 1)
}
