package stream

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/receptionist-widget/internal/format"
	chatService "github.com/zhouzirui/receptionist-widget/internal/service/chat"
	"github.com/zhouzirui/receptionist-widget/internal/service/conversation"
	"github.com/zhouzirui/receptionist-widget/internal/view"
	"github.com/zhouzirui/receptionist-widget/pkg/utils"
)

const defaultHeartbeat = 15 * time.Second

// Handler pushes rendered conversation snapshots to widgets over SSE or
// WebSocket.
type Handler struct {
	chatSvc   *chatService.Service
	formatter *format.Formatter
	logger    *zap.Logger
	heartbeat time.Duration
	upgrader  websocket.Upgrader
}

// New creates a new stream handler. checkOrigin vets WebSocket handshakes;
// nil keeps gorilla's same-origin check.
func New(chatSvc *chatService.Service, formatter *format.Formatter, checkOrigin func(*http.Request) bool, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		chatSvc:   chatSvc,
		formatter: formatter,
		logger:    logger,
		heartbeat: defaultHeartbeat,
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterSessionRoutes 注册 /{sessionID} 下的推送路由
func (h *Handler) RegisterSessionRoutes(r chi.Router) {
	r.Get("/events", h.handleEvents)
	r.Get("/ws", h.handleWebSocket)
}

func (h *Handler) lookup(r *http.Request) (*conversation.Conversation, error) {
	return h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
}

func (h *Handler) render(s conversation.Snapshot) view.Snapshot {
	return view.Build(s, h.formatter)
}

// handleEvents streams a "snapshot" event after every change, plus a
// periodic "heartbeat" so proxies keep the connection open.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	conv, err := h.lookup(r)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	utils.SetupSSEHeaders(w)

	ctx := r.Context()
	logger := h.logger.With(zap.String("session", conv.SessionID()))
	logger.Debug("sse stream opened")
	defer logger.Debug("sse stream closed")

	updates, unsubscribe := conv.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, "snapshot", h.render(snap)); err != nil {
				logger.Debug("sse write failed", zap.Error(err))
				return
			}
		case t := <-ticker.C:
			if err := utils.SendSSEEvent(w, flusher, "heartbeat", map[string]string{
				"time": t.UTC().Format(time.RFC3339),
			}); err != nil {
				return
			}
		}
	}
}
