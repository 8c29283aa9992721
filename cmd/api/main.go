package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/zhouzirui/webskill/backend/internal/config"
	"github.com/zhouzirui/webskill/backend/internal/handler"
	"github.com/zhouzirui/webskill/backend/internal/model/attributes"
	"github.com/zhouzirui/webskill/backend/internal/observability"
	"github.com/zhouzirui/webskill/backend/internal/service/logstream"
	sessionService "github.com/zhouzirui/webskill/backend/internal/service/session"
	skillService "github.com/zhouzirui/webskill/backend/internal/service/skill"
	"github.com/zhouzirui/webskill/backend/internal/storage/postgres"
	"github.com/zhouzirui/webskill/backend/internal/storage/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Telemetry.Enabled, cfg.Telemetry.Endpoint, "webskill")
	if err != nil {
		log.Printf("warning: failed to initialize tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Printf("warning: failed to flush traces: %v", err)
		}
	}()

	store, closeStore, err := openStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("failed to open attribute store: %v", err)
	}
	defer closeStore()

	if cfg.Skill.WebAppOrigin == "" {
		log.Println("WEBAPP_ORIGIN 未配置，LaunchRequest 将无法打开网页应用")
	}

	// UI log lines go to the structured log and to the SSE tail
	hub := logstream.NewHub(64)
	sink := observability.Tee(observability.NewSlogEmitter(nil), hub)

	dispatcher := skillService.NewRouter(skillService.Config{
		Origin:             cfg.Skill.WebAppOrigin,
		StrictInterceptors: cfg.Skill.StrictInterceptors,
	}, store, sink)
	sessions := sessionService.NewService()

	router := handler.NewRouter(dispatcher, sessions, hub, cfg.Skill.WebAppOrigin)

	startServer(ctx, cfg.Server, router)
}

// openStore 根据配置选择持久化属性的存储后端。
func openStore(ctx context.Context, cfg config.StorageConfig) (attributes.Store, func(), error) {
	switch cfg.Persistence {
	case config.PersistenceSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("attribute store: sqlite (%s)", cfg.SQLitePath)
		return store, func() { _ = store.Close() }, nil
	case config.PersistencePostgres:
		store, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		log.Println("attribute store: postgres")
		return store, store.Close, nil
	default:
		log.Println("attribute store: memory")
		return attributes.NewMemoryStore(), func() {}, nil
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("webskill backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Printf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
