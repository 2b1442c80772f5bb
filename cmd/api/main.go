package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"whatsapp-gateway/internal/auth"
	"whatsapp-gateway/internal/config"
	"whatsapp-gateway/internal/httpapi"
	"whatsapp-gateway/internal/outbound"
	"whatsapp-gateway/internal/stats"
	"whatsapp-gateway/internal/store"
	"whatsapp-gateway/internal/webhook"
	"whatsapp-gateway/pkg/logger"
	"whatsapp-gateway/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	messages := store.NewPostgresMessageRepo(db)
	calls := store.NewPostgresCallRepo(db)
	statuses := store.NewPostgresStatusRepo(db)
	outgoing := store.NewPostgresOutgoingRepo(db)
	recorder := stats.NewRecorder(rdb, log)

	deps := appDeps{
		cfg:  cfg,
		db:   db,
		auth: authManager,
		webhook: webhook.Handler{
			VerifyToken: cfg.WhatsApp.VerifyToken,
			Messages:    messages,
			Calls:       calls,
			Statuses:    statuses,
			Stats:       recorder,
		},
		send: outbound.SendHandler{
			Client:   outbound.NewClient(cfg.WhatsApp),
			Outgoing: outgoing,
			Stats:    recorder,
		},
		api: httpapi.Handlers{
			Auth:     authManager,
			Ops:      cfg.Ops,
			Messages: messages,
			Calls:    calls,
			Statuses: statuses,
			Outgoing: outgoing,
			Stats:    recorder,
		},
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	registerRoutes(r, deps)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
