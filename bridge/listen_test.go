package bridge_test

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

	"github.com/linesmerrill/lead-push/bridge"
	"github.com/linesmerrill/lead-push/models"
)

func relayServer(t *testing.T, messages [][]byte, hold bool) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, m := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, m); err != nil {
				return
			}
		}
		if hold {
			// keep the stream open until the client goes away
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestListenDispatchesRelayedMessages(t *testing.T) {
	env := envelope(t, models.NotificationPayload{ID: "n-1", Title: "New lead"})
	srv := relayServer(t, [][]byte{
		[]byte(`{"type":"SOMETHING_ELSE"}`),
		env,
		env,
	}, false)
	defer srv.Close()

	b := bridge.New(&mockAgent{}, &mockRegistry{}, "server-key")
	var got []string
	b.OnForegroundMessage(func(p models.NotificationPayload) { got = append(got, p.Title) })

	err := b.Listen(context.Background(), wsURL(srv), http.Header{"Authorization": {"Bearer token-1"}})

	require.NoError(t, err)
	assert.Equal(t, []string{"New lead"}, got)
}

func TestListenStopsOnContextCancel(t *testing.T) {
	srv := relayServer(t, nil, true)
	defer srv.Close()

	b := bridge.New(&mockAgent{}, &mockRegistry{}, "server-key")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- b.Listen(ctx, wsURL(srv), http.Header{"Authorization": {"Bearer token-1"}})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return after cancel")
	}
}

func TestListenDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	err := bridge.New(&mockAgent{}, &mockRegistry{}, "server-key").Listen(context.Background(), wsURL(srv), nil)

	assert.Error(t, err)
}
