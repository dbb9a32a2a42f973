package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/receptionist-widget/internal/format"
	"github.com/zhouzirui/receptionist-widget/internal/handler/chat"
	"github.com/zhouzirui/receptionist-widget/internal/handler/stream"
	"github.com/zhouzirui/receptionist-widget/internal/handler/widget"
	middlewarePkg "github.com/zhouzirui/receptionist-widget/internal/middleware"
	chatService "github.com/zhouzirui/receptionist-widget/internal/service/chat"
	"github.com/zhouzirui/receptionist-widget/pkg/utils"
)

// NewRouter wires HTTP routes to core services. origins guards both CORS and
// the WebSocket handshake.
func NewRouter(chatSvc *chatService.Service, formatter *format.Formatter, origins *middlewarePkg.OriginPolicy, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if origins == nil {
		origins = middlewarePkg.NewOriginPolicy(nil)
	}
	r.Use(origins.CORS)

	chatHandler := chat.New(chatSvc, formatter, logger.Named("chat"))
	streamHandler := stream.New(chatSvc, formatter, origins.Allowed, logger.Named("stream"))

	widget.RegisterRoutes(r)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": chatSvc.Count(),
		})
	})

	r.Route("/widget", func(wr chi.Router) {
		chatHandler.RegisterRoutes(wr)
		wr.Route("/{sessionID}", func(sr chi.Router) {
			chatHandler.RegisterSessionRoutes(sr)
			streamHandler.RegisterSessionRoutes(sr)
		})
	})

	return r
}
