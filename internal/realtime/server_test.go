package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestServeEchoesReplies(t *testing.T) {
	srv := NewServer()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.Serve(w, r, "user-1", func(_ context.Context, payload []byte) any {
			return map[string]string{"reply": strings.ToUpper(string(payload))}
		})
	}))
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	for _, msg := range []string{"hello", "again"} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
		var frame map[string]string
		require.NoError(t, conn.ReadJSON(&frame))
		require.Equal(t, strings.ToUpper(msg), frame["reply"])
	}
}

func TestServeSendsNormalClosureWhenContextEnds(t *testing.T) {
	srv := NewServer()
	shutdown, stopAll := context.WithCancel(context.Background())
	defer stopAll()
	served := make(chan struct{})

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go func() {
			select {
			case <-shutdown.Done():
				cancel()
			case <-ctx.Done():
			}
		}()
		srv.Serve(w, r.WithContext(ctx), "user-1", func(_ context.Context, payload []byte) any {
			return map[string]string{"reply": string(payload)}
		})
		close(served)
	}))
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hi")))
	var frame map[string]string
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, "hi", frame["reply"])

	stopAll()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	require.Equal(t, websocket.CloseNormalClosure, closeErr.Code)

	select {
	case <-served:
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after closing")
	}
}

func TestCheckOrigin(t *testing.T) {
	srv := NewServer("https://app.skycast.test/")

	req := httptest.NewRequest(http.MethodGet, "http://api.skycast.test/chatbot/ws", nil)
	require.True(t, srv.checkOrigin(req))

	req.Header.Set("Origin", "https://app.skycast.test")
	require.True(t, srv.checkOrigin(req))

	req.Header.Set("Origin", "http://api.skycast.test:8080")
	require.True(t, srv.checkOrigin(req))

	req.Header.Set("Origin", "http://localhost:3000")
	require.True(t, srv.checkOrigin(req))

	req.Header.Set("Origin", "https://evil.test")
	require.False(t, srv.checkOrigin(req))

	require.True(t, NewServer("*").checkOrigin(req))
}
