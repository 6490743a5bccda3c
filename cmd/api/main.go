package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "cv-match/docs" // Swagger docs
	"cv-match/internal/api"
	"cv-match/internal/app"
	"cv-match/internal/config"
	"cv-match/internal/logger"

	"go.uber.org/zap"
)

// @title CV Match API
// @version 1.0
// @description Resume-to-job matching: resume parsing, LLM standardization, embeddings and vector ranking

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @BasePath /api

func main() {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal("config: ", err)
	}

	zl, err := logger.New(cfg.LogJSON, cfg.LogDebug)
	if err != nil {
		log.Fatal("logger: ", err)
	}
	defer func() { _ = zl.Sync() }()
	zap.ReplaceGlobals(zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()
	a.StartCacheJanitor(ctx, 5*time.Minute)

	apiSrv := api.NewAPI(api.Options{
		Repo:        a.Repo,
		Ingestor:    a.Orchestrator,
		Matcher:     a.Engine,
		Log:         zl,
		DefaultTopN: cfg.MatchTopN,
		QueueSize:   cfg.QueueSize,
		Workers:     cfg.Workers,
	})
	apiSrv.StartBackgroundWorkers(context.Background())
	router := api.NewRouter(apiSrv)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zl.Warn("server shutdown", zap.Error(err))
		}
		close(idleConnsClosed)
	}()

	zl.Info("API server listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zl.Fatal("listen", zap.Error(err))
	}

	<-idleConnsClosed
	// drain queued processing before the stores close
	apiSrv.StopBackgroundWorkers()
	zl.Info("server stopped")
}

