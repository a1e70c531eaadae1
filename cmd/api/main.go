package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/contentgen/contentgen-backend/internal/api"
	"github.com/contentgen/contentgen-backend/internal/auth"
	"github.com/contentgen/contentgen-backend/internal/blob"
	"github.com/contentgen/contentgen-backend/internal/config"
	"github.com/contentgen/contentgen-backend/internal/draft"
	"github.com/contentgen/contentgen-backend/internal/generation"
	"github.com/contentgen/contentgen-backend/internal/log"
	"github.com/contentgen/contentgen-backend/internal/metrics"
	"github.com/contentgen/contentgen-backend/internal/persist"
	"github.com/contentgen/contentgen-backend/internal/records"
	"github.com/contentgen/contentgen-backend/internal/workflow"
	"github.com/contentgen/contentgen-backend/internal/ws"
	"github.com/contentgen/contentgen-backend/pkg/kv"
	_ "github.com/contentgen/contentgen-backend/pkg/kv/memory"
	_ "github.com/contentgen/contentgen-backend/pkg/kv/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.NewSugar(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infow("Starting ContentGen API server",
		"env", cfg.Env,
		"addr", cfg.HTTPAddr,
	)

	metricsObj, metricsHandler, err := metrics.Setup("contentgen-api")
	if err != nil {
		logger.Fatalw("Failed to setup metrics", "error", err)
	}

	store, err := records.New(cfg.Database.Backend, cfg.Database.PostgresDSN)
	if err != nil {
		logger.Fatalw("Failed to initialize record store", "error", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := store.Ping(ctx); err != nil {
		cancel()
		logger.Fatalw("Record store ping failed", "error", err)
	}
	cancel()
	logger.Infow("Record store initialized", "backend", cfg.Database.Backend)

	kvStore, err := kv.NewStoreFromConfig(kv.Config{
		Backend:  kv.Backend(cfg.Cache.Backend),
		RedisURL: cfg.Cache.RedisURL,
	})
	if err != nil {
		logger.Fatalw("Failed to setup kv store", "error", err)
	}
	defer kvStore.Close()
	logger.Infow("KV store initialized", "backend", cfg.Cache.Backend)

	imageBlobs := blob.NewStore(kvStore, "post_images")
	documentBlobs := blob.NewStore(kvStore, "company_documents")

	allowedOrigins := cfg.AllowedOrigins()

	hub := ws.NewHub(allowedOrigins, logger, metricsObj)
	sseHandler := ws.NewSSEHandler(hub, logger)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go hub.Run(hubCtx)

	sessions := draft.NewManager(kvStore, cfg.Drafts.SessionTTL, logger, metricsObj)
	defer sessions.Close()

	genClient := generation.NewHTTPClient(
		cfg.Generation.HookURL,
		cfg.Generation.ImageURL,
		cfg.Generation.Timeout,
		logger,
	)

	coordinator := workflow.NewCoordinator(genClient, hub, logger, metricsObj)
	adapter := persist.NewAdapter(store, imageBlobs, hub, logger, cfg.Drafts.ScheduleOffset)

	var verifier auth.Verifier
	if cfg.IsProd() {
		verifier = &auth.KVVerifier{Store: kvStore}
	} else {
		logger.Warnw("Using insecure token verifier; tokens map directly to user ids")
		verifier = auth.InsecureVerifier{}
	}

	handler := api.NewHandler(sessions, coordinator, adapter, store, documentBlobs, hub, sseHandler, cfg, logger, metricsObj)
	mw := api.NewMiddleware(logger, metricsObj)

	router := handler.Routes(mw, verifier, allowedOrigins, cfg.Security.RateLimitRPM)
	logger.Infow("CORS configured", "allowed_origins", allowedOrigins)

	router.Handle("/metrics", metricsHandler)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming endpoints manage their own deadlines
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Infow("API server starting", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatalw("Server startup failed", "error", err)
	case sig := <-shutdown:
		logger.Infow("Shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Errorw("Graceful shutdown failed", "error", err)
			server.Close()
		}

		logger.Infow("Server stopped")
	}
}
