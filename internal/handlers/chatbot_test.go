package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/skycast/internal/chat"
	"github.com/charlesng35/skycast/internal/handlers/testutil"
)

type replyPayload struct {
	Reply string `json:"reply"`
}

func TestChatbotHandler_Chat(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Register("Alice", "alice@example.com", "secret1")
	token := env.Login("alice@example.com", "secret1")

	w := env.Request(http.MethodPost, "/chatbot/chat", map[string]string{"message": "What should I wear?", "city": "Lisbon"}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var reply replyPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &reply)
	require.Equal(t, "Bring sunglasses.", reply.Reply)

	empty := env.Request(http.MethodPost, "/chatbot/chat", map[string]string{"message": " "}, token)
	require.Equal(t, http.StatusBadRequest, empty.Code)

	noAuth := env.Request(http.MethodPost, "/chatbot/chat", map[string]string{"message": "hi"}, "")
	require.Equal(t, http.StatusUnauthorized, noAuth.Code)
}

func TestChatbotHandler_QuotaFallback(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Register("Alice", "alice@example.com", "secret1")
	token := env.Login("alice@example.com", "secret1")
	env.Chat.Err = chat.ErrQuotaExceeded

	w := env.Request(http.MethodPost, "/chatbot/chat", map[string]string{"message": "weather?", "city": "Lisbon"}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var reply replyPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &reply)
	require.Equal(t, "Today's weather in Lisbon: 21°C, windspeed 3.5 m/s, humidity 60%.", reply.Reply)
}

func TestChatbotHandler_Disabled(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithoutChat())
	env.Register("Alice", "alice@example.com", "secret1")
	token := env.Login("alice@example.com", "secret1")

	w := env.Request(http.MethodPost, "/chatbot/chat", map[string]string{"message": "hi"}, token)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, "CHAT_DISABLED", testutil.ErrorCode(t, w))
}

func TestChatbotHandler_WebSocket(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Register("Alice", "alice@example.com", "secret1")
	token := env.Login("alice@example.com", "secret1")

	ts := httptest.NewServer(env.Router)
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/chatbot/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+token, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"message": "Umbrella?", "city": "Lisbon"}))
	var reply replyPayload
	require.NoError(t, conn.ReadJSON(&reply))
	require.Equal(t, "Bring sunglasses.", reply.Reply)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{broken")))
	var failure struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, conn.ReadJSON(&failure))
	require.Equal(t, "BAD_REQUEST", failure.Error.Code)

	require.NoError(t, conn.WriteJSON(map[string]string{"message": ""}))
	require.NoError(t, conn.ReadJSON(&failure))
	require.Equal(t, "BAD_REQUEST", failure.Error.Code)
}
