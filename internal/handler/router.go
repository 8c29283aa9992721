package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/zhouzirui/webskill/backend/internal/handler/logs"
	"github.com/zhouzirui/webskill/backend/internal/handler/skill"
	middlewarePkg "github.com/zhouzirui/webskill/backend/internal/middleware"
	"github.com/zhouzirui/webskill/backend/internal/service/logstream"
	sessionService "github.com/zhouzirui/webskill/backend/internal/service/session"
	"github.com/zhouzirui/webskill/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. webAppOrigin restricts CORS
// to the companion page's origin; empty allows any origin.
func NewRouter(dispatcher skill.Dispatcher, sessions *sessionService.Service, hub *logstream.Hub, webAppOrigin string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(webAppOrigin))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	skillHandler := skill.New(dispatcher, sessions)
	logsHandler := logs.New(hub)

	r.Route("/api", func(api chi.Router) {
		// Skill endpoint and companion message channel
		skillHandler.RegisterRoutes(api)

		// Observability log tail
		logsHandler.RegisterRoutes(api)
	})

	return otelhttp.NewHandler(r, "webskill")
}
