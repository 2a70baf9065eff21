package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/skycast/internal/realtime"
	"github.com/charlesng35/skycast/internal/services"
	"github.com/charlesng35/skycast/pkg/errors"
	"github.com/charlesng35/skycast/pkg/response"
)

// ChatbotHandler relays questions to the weather assistant over HTTP or a websocket.
type ChatbotHandler struct {
	chat   *services.ChatService
	server *realtime.Server
}

func NewChatbotHandler(chat *services.ChatService, server *realtime.Server) *ChatbotHandler {
	return &ChatbotHandler{chat: chat, server: server}
}

type chatRequest struct {
	Message string `json:"message" validate:"notblank,max=2000"`
	City    string `json:"city" validate:"max=200"`
}

type chatReply struct {
	Reply string `json:"reply"`
}

type chatErrorFrame struct {
	Error response.ErrorInfo `json:"error"`
}

// POST /chatbot/chat
func (h *ChatbotHandler) Chat(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}
	var req chatRequest
	if !bindAndValidate(c, &req) {
		return
	}
	reply, err := h.chat.Reply(requestContext(c), services.ChatRequest{Message: req.Message, City: req.City})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, chatReply{Reply: reply})
}

// GET /chatbot/ws. Each {message, city} frame is answered with {reply} or {error}.
func (h *ChatbotHandler) Stream(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if !h.chat.Enabled() {
		response.Error(c, services.ErrChatDisabled)
		return
	}
	h.server.Serve(c.Writer, c.Request, userID, h.answerFrame)
}

func (h *ChatbotHandler) answerFrame(ctx context.Context, payload []byte) any {
	var req chatRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return errorFrame(errors.NewBadRequest("invalid JSON payload"))
	}
	reply, err := h.chat.Reply(ctx, services.ChatRequest{Message: req.Message, City: req.City})
	if err != nil {
		return errorFrame(err)
	}
	return chatReply{Reply: reply}
}

func errorFrame(err error) chatErrorFrame {
	appErr := errors.FromError(err)
	return chatErrorFrame{Error: response.ErrorInfo{Code: appErr.Code, Message: appErr.Message}}
}
