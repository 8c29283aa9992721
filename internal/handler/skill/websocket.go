package skill

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	skillmodel "github.com/zhouzirui/webskill/backend/internal/model/skill"
	sessionservice "github.com/zhouzirui/webskill/backend/internal/service/session"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// WebSocketHandler 伴随页面消息通道处理器
type WebSocketHandler struct {
	dispatcher Dispatcher
	sessions   *sessionservice.Service
	upgrader   websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(dispatcher Dispatcher, sessions *sessionservice.Service) *WebSocketHandler {
	if sessions == nil {
		sessions = sessionservice.NewService()
	}
	return &WebSocketHandler{
		dispatcher: dispatcher,
		sessions:   sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterWebSocketRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type connection struct {
	conn      *websocket.Conn
	sessionID string
	userID    string
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "sessionID is required", http.StatusBadRequest)
		return
	}

	sess, err := h.sessions.Open(r.Context(), sessionID, r.URL.Query().Get("userId"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	defer h.sessions.Close(context.Background(), sessionID)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[websocket] new connection for session: %s", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c := &connection{conn: conn, sessionID: sessionID, userID: sess.UserID}
	writes := make(chan skillmodel.Frame, 16)
	go h.writeLoop(ctx, cancel, c, writes)

	h.send(ctx, writes, c, skillmodel.FrameConnected, map[string]any{"userId": sess.UserID})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		_ = h.sessions.Touch(ctx, sessionID)

		h.handleMessage(ctx, writes, c, data)
	}
}

// handleMessage 将页面消息包装为事件信封并派发
func (h *WebSocketHandler) handleMessage(ctx context.Context, writes chan<- skillmodel.Frame, c *connection, data []byte) {
	if !json.Valid(data) {
		h.send(ctx, writes, c, skillmodel.FrameError, map[string]string{"message": "invalid message payload"})
		return
	}

	env := messageEnvelope(c, data)
	resp, err := h.dispatcher.Dispatch(ctx, env)
	if err != nil {
		log.Printf("[websocket] dispatch failed session=%s: %v", c.sessionID, err)
		h.send(ctx, writes, c, skillmodel.FrameError, map[string]string{"message": "routing failed"})
		return
	}

	for _, d := range resp.Response.Directives {
		if d.Type() != skillmodel.DirectiveHTMLHandleMessage {
			continue
		}
		h.send(ctx, writes, c, skillmodel.FrameMessage, d["message"])
	}
}

func messageEnvelope(c *connection, data []byte) *skillmodel.Envelope {
	user := skillmodel.User{UserID: c.userID}
	return &skillmodel.Envelope{
		Version: skillmodel.ResponseVersion,
		Session: &skillmodel.Session{SessionID: c.sessionID, User: user},
		Context: &skillmodel.Context{System: skillmodel.System{User: user}},
		Request: skillmodel.Request{
			Type:      skillmodel.RequestTypeMessage,
			RequestID: "webskill.request." + uuid.NewString(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Message:   json.RawMessage(data),
		},
	}
}

func (h *WebSocketHandler) send(ctx context.Context, writes chan<- skillmodel.Frame, c *connection, frameType string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("[websocket] encode frame failed: %v", err)
		return
	}
	frame := skillmodel.Frame{
		Type:      frameType,
		SessionID: c.sessionID,
		Data:      raw,
		Timestamp: time.Now().Unix(),
	}
	select {
	case writes <- frame:
	case <-ctx.Done():
	}
}

// writeLoop 串行写出帧并定期发送ping
func (h *WebSocketHandler) writeLoop(ctx context.Context, cancel context.CancelFunc, c *connection, writes <-chan skillmodel.Frame) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-writes:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				log.Printf("[websocket] write frame failed: %v", err)
				cancel()
				c.conn.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				cancel()
				c.conn.Close()
				return
			}
		}
	}
}
