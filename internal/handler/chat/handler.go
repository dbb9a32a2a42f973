package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/receptionist-widget/internal/format"
	chatService "github.com/zhouzirui/receptionist-widget/internal/service/chat"
	"github.com/zhouzirui/receptionist-widget/internal/service/conversation"
	"github.com/zhouzirui/receptionist-widget/internal/view"
	"github.com/zhouzirui/receptionist-widget/pkg/utils"
)

const maxMessageBytes = 16 << 10

// Handler 聊天组件的HTTP处理器
type Handler struct {
	chatSvc   *chatService.Service
	formatter *format.Formatter
	logger    *zap.Logger
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, formatter *format.Formatter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		chatSvc:   chatSvc,
		formatter: formatter,
		logger:    logger,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
}

// RegisterSessionRoutes 注册 /{sessionID} 下的路由
func (h *Handler) RegisterSessionRoutes(r chi.Router) {
	r.Get("/messages", h.handleGetMessages)
	r.Post("/messages", h.handleSendMessage)
	r.Post("/reset", h.handleReset)
	r.Delete("/", h.handleCloseSession)
}

// Lookup resolves the session named in the URL, writing the error response
// itself when it fails.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) (*conversation.Conversation, bool) {
	conv, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	switch {
	case err == nil:
		return conv, true
	case errors.Is(err, chatService.ErrSessionRequired):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondError(w, http.StatusNotFound, err.Error())
	}
	return nil, false
}

// handleCreateSession 创建会话，可选携带浏览器保存的 visitorId
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		VisitorID string `json:"visitorId"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxMessageBytes)
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conv := h.chatSvc.CreateSession(r.Context(), payload.VisitorID)
	utils.RespondJSON(w, http.StatusCreated, view.Build(conv.Snapshot(), h.formatter))
}

func (h *Handler) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.Lookup(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, view.Build(conv.Snapshot(), h.formatter))
}

// handleSendMessage 发送访客消息，回复通过 ws/events 推送
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.Lookup(w, r)
	if !ok {
		return
	}

	var payload struct {
		Message string `json:"message"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxMessageBytes)
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// the exchange outlives this request
	if _, err := conv.SendAsync(context.WithoutCancel(r.Context()), payload.Message); err != nil {
		switch {
		case errors.Is(err, conversation.ErrEmptyMessage):
			utils.RespondError(w, http.StatusBadRequest, "message is required")
		case errors.Is(err, conversation.ErrBusy):
			utils.RespondError(w, http.StatusConflict, err.Error())
		case errors.Is(err, conversation.ErrClosed):
			utils.RespondError(w, http.StatusNotFound, chatService.ErrSessionNotFound.Error())
		default:
			h.logger.Error("send failed", zap.String("session", conv.SessionID()), zap.Error(err))
			utils.RespondError(w, http.StatusInternalServerError, "send failed")
		}
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, view.Build(conv.Snapshot(), h.formatter))
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.Lookup(w, r)
	if !ok {
		return
	}
	snap := conv.Reset(r.Context())
	utils.RespondJSON(w, http.StatusOK, view.Build(snap, h.formatter))
}

func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.CloseSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
