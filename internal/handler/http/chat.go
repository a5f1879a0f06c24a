package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/utafrali/marketplace/pkg/httputil"
	"github.com/utafrali/marketplace/pkg/middleware"
	"github.com/utafrali/marketplace/pkg/pagination"
)

const streamHeartbeat = 25 * time.Second

// ChatHandler handles HTTP requests for conversations and messages.
type ChatHandler struct {
	service ChatService
	stream  NotificationStream
	logger  *slog.Logger
}

// NewChatHandler creates a new chat HTTP handler. stream may be nil, in
// which case the event stream endpoint is not served.
func NewChatHandler(svc ChatService, stream NotificationStream, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{service: svc, stream: stream, logger: logger}
}

// StartConversationRequest is the JSON body for opening a conversation.
type StartConversationRequest struct {
	RecipientID string  `json:"recipient_id" validate:"required,notblank"`
	ProductID   *string `json:"product_id" validate:"omitempty,uuid"`
}

// SendMessageRequest is the JSON body for posting a message.
type SendMessageRequest struct {
	Body string `json:"body" validate:"required"`
}

// ListConversations handles GET /api/v1/conversations
func (h *ChatHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	env, err := h.service.ListConversations(r.Context(), middleware.UserIDFromContext(r.Context()), pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, env)
}

// StartConversation handles POST /api/v1/conversations
func (h *ChatHandler) StartConversation(w http.ResponseWriter, r *http.Request) {
	var req StartConversationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	conv, err := h.service.StartConversation(r.Context(), middleware.UserIDFromContext(r.Context()), req.RecipientID, req.ProductID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, conv)
}

// ListMessages handles GET /api/v1/conversations/{id}/messages
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	env, err := h.service.ListMessages(r.Context(), id, middleware.UserIDFromContext(r.Context()), pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, env)
}

// SendMessage handles POST /api/v1/conversations/{id}/messages
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req SendMessageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	msg, err := h.service.SendMessage(r.Context(), id, middleware.UserIDFromContext(r.Context()), req.Body)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, msg)
}

// MarkRead handles POST /api/v1/conversations/{id}/read
func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.MarkRead(r.Context(), id, middleware.UserIDFromContext(r.Context())); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UnreadCount handles GET /api/v1/conversations/unread
func (h *ChatHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.UnreadCount(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, map[string]int{"unread_count": n})
}

// Stream handles GET /api/v1/conversations/stream as server-sent events.
// Each notification becomes one event named after its type.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)

	sub, err := h.stream.Subscribe(ctx, userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	defer sub.Close()

	rc := http.NewResponseController(w)
	// The server write timeout would otherwise cut long-lived streams.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.WarnContext(ctx, "event stream not supported", slog.String("error", err.Error()))
		return
	}

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case n, ok := <-sub.C():
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", n.Type, n.Payload); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
