package logs

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/webskill/backend/internal/service/logstream"
	"github.com/zhouzirui/webskill/backend/pkg/utils"
)

const heartbeatInterval = 8 * time.Second

// Handler 以SSE形式推送观测日志
type Handler struct {
	hub *logstream.Hub
}

// New 创建日志流处理器
func New(hub *logstream.Hub) *Handler {
	return &Handler{hub: hub}
}

// RegisterRoutes 注册日志相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/logs/stream", h.handleStream)
}

// handleStream 订阅日志并持续推送，定期发送心跳
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "log stream unavailable")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	id, lines, cancel := h.hub.Subscribe()
	defer cancel()

	utils.SetupSSEHeaders(w)
	ctx := r.Context()
	log.Printf("[sse] opening log stream subscriber=%s", id)

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	utils.SendSSEEvent(w, flusher, "status", map[string]any{
		"message":     "stream established",
		"subscribers": h.hub.Subscribers(),
		"dropped":     h.hub.Dropped(),
	})

	for {
		select {
		case <-ctx.Done():
			log.Printf("[sse] closing log stream subscriber=%s", id)
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			utils.SendSSEEvent(w, flusher, "log", line)
		case t := <-ticker.C:
			utils.SendSSEEvent(w, flusher, "heartbeat", map[string]any{
				"time":    t.UTC().Format(time.RFC3339),
				"dropped": h.hub.Dropped(),
			})
		}
	}
}
