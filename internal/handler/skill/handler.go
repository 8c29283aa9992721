package skill

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	skillmodel "github.com/zhouzirui/webskill/backend/internal/model/skill"
	"github.com/zhouzirui/webskill/backend/internal/observability"
	"github.com/zhouzirui/webskill/backend/internal/service/dispatch"
	sessionservice "github.com/zhouzirui/webskill/backend/internal/service/session"
	"github.com/zhouzirui/webskill/backend/pkg/utils"
)

// maxEnvelopeBytes 限制单个请求体大小
const maxEnvelopeBytes = 1 << 20

// Dispatcher 将事件信封路由为响应
type Dispatcher interface {
	Dispatch(ctx context.Context, env *skillmodel.Envelope) (*skillmodel.ResponseEnvelope, error)
}

// Handler 技能端点的HTTP处理器
type Handler struct {
	dispatcher Dispatcher
	sessions   *sessionservice.Service
	ws         *WebSocketHandler
}

// New 创建技能处理器
func New(dispatcher Dispatcher, sessions *sessionservice.Service) *Handler {
	if sessions == nil {
		sessions = sessionservice.NewService()
	}
	return &Handler{
		dispatcher: dispatcher,
		sessions:   sessions,
		ws:         NewWebSocketHandler(dispatcher, sessions),
	}
}

// RegisterRoutes 注册技能相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/skill", func(sr chi.Router) {
		sr.Post("/", h.handleEnvelope)
		sr.Get("/sessions", h.handleListSessions)
		sr.Get("/sessions/{sessionID}", h.handleGetSession)
		h.ws.RegisterWebSocketRoutes(sr)
	})
}

// handleEnvelope 处理宿主投递的事件
func (h *Handler) handleEnvelope(w http.ResponseWriter, r *http.Request) {
	var env skillmodel.Envelope
	if err := utils.DecodeJSON(w, r, maxEnvelopeBytes, &env); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request envelope", err.Error())
		return
	}
	if env.Request.Type == "" {
		utils.RespondError(w, http.StatusBadRequest, "request type is required")
		return
	}

	ctx := observability.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
	resp, err := h.dispatcher.Dispatch(ctx, &env)
	if err != nil {
		observability.LoggerFromContext(ctx).Error("dispatch failed", "type", env.Request.Type, "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		utils.RespondError(w, status, "routing failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, resp)
}

// handleListSessions 列出已连接的伴随页面
func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.sessions.List(r.Context()))
}

// handleGetSession 查询单个伴随页面会话
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		if errors.Is(err, sessionservice.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "session not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	utils.RespondJSON(w, http.StatusOK, sess)
}

var _ Dispatcher = (*dispatch.Router)(nil)
