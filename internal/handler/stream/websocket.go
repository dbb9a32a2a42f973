package stream

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/receptionist-widget/internal/service/conversation"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxInboundSize = 16 << 10
)

type inboundMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleWebSocket 处理WebSocket连接
//
// Inbound frames are {"type":"send","message":...} or {"type":"reset"}.
// Outbound frames are "snapshot" after every change and "error" when a
// command is rejected.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conv, err := h.lookup(r)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	logger := h.logger.With(zap.String("session", conv.SessionID()))
	logger.Debug("websocket connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(maxInboundSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	updates, unsubscribe := conv.Subscribe()
	defer unsubscribe()

	errorsOut := make(chan outgoingMessage, 4)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer cancel()
		h.writeLoop(ctx, conn, conv.SessionID(), updates, errorsOut)
	}()

	h.readLoop(ctx, conn, conv, errorsOut, logger)

	cancel()
	<-writerDone
	logger.Debug("websocket closed")
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, conv *conversation.Conversation, errorsOut chan<- outgoingMessage, logger *zap.Logger) {
	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		switch msg.Type {
		case "send":
			// the exchange outlives this connection
			if _, err := conv.SendAsync(context.WithoutCancel(ctx), msg.Message); err != nil {
				h.queueError(errorsOut, conv.SessionID(), err)
			}
		case "reset":
			conv.Reset(ctx)
		default:
			h.queueError(errorsOut, conv.SessionID(), errors.New("unsupported message type: "+msg.Type))
		}
	}
}

func (h *Handler) queueError(out chan<- outgoingMessage, sessionID string, err error) {
	code := "error"
	switch {
	case errors.Is(err, conversation.ErrEmptyMessage):
		code = "empty"
	case errors.Is(err, conversation.ErrBusy):
		code = "busy"
	case errors.Is(err, conversation.ErrClosed):
		code = "closed"
	}
	msg := outgoingMessage{
		Type:      "error",
		SessionID: sessionID,
		Data:      map[string]string{"code": code, "message": err.Error()},
		Timestamp: time.Now().UnixMilli(),
	}
	select {
	case out <- msg:
	default:
		h.logger.Debug("dropping websocket error frame", zap.String("session", sessionID))
	}
}

// writeLoop owns every data write on conn.
func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, sessionID string, updates <-chan conversation.Snapshot, errorsOut <-chan outgoingMessage) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	write := func(msg outgoingMessage) error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(msg)
	}

	for {
		var err error
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case snap, ok := <-updates:
			if !ok {
				// conversation closed or evicted
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"), time.Now().Add(writeWait))
				return
			}
			err = write(outgoingMessage{
				Type:      "snapshot",
				SessionID: sessionID,
				Data:      h.render(snap),
				Timestamp: time.Now().UnixMilli(),
			})
		case msg := <-errorsOut:
			err = write(msg)
		case <-ticker.C:
			err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		}
		if err != nil {
			h.logger.Debug("websocket write failed", zap.String("session", sessionID), zap.Error(err))
			conn.Close()
			return
		}
	}
}
