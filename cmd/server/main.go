package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"abaquest/internal/catalog"
	"abaquest/internal/config"
	"abaquest/internal/handlers"
	"abaquest/internal/logger"
	"abaquest/internal/scheduler"
	"abaquest/internal/security"
	"abaquest/internal/service"
	"abaquest/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	status := handlers.NewStartupStatus(handlers.StepStorage, handlers.StepMigrations, handlers.StepCatalog, handlers.StepRoster, handlers.StepReady)

	// The API mux is swapped in once initialization finishes; until then
	// only /api/status answers.
	var api atomic.Pointer[http.ServeMux]
	boot := http.NewServeMux()
	boot.HandleFunc("GET /api/status", status.ShowStartupStatus)
	dispatch := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if mux := api.Load(); mux != nil {
			mux.ServeHTTP(w, r)
			return
		}
		boot.ServeHTTP(w, r)
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           handlers.Logging(log, handlers.Recover(status.RequireReady(dispatch))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", "error", err)
		}
	}()

	ctx := context.Background()

	status.SetCurrentStep(handlers.StepStorage)
	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal("failed to open storage", "error", err)
	}
	defer backend.Close()
	status.CompleteStep(handlers.StepStorage)
	status.CompleteStep(handlers.StepMigrations)
	log.Info("storage ready", "backend", backend.Kind)

	status.SetCurrentStep(handlers.StepCatalog)
	quests, err := catalog.LoadFile(cfg.CatalogPath)
	if err != nil {
		log.Fatal("failed to load quest catalog", "error", err)
	}
	status.CompleteStep(handlers.StepCatalog)

	identity := service.NewIdentityService(backend.Documents, log)
	status.SetCurrentStep(handlers.StepRoster)
	if cfg.SeedRoster {
		seeded, err := identity.EnsureRoster(ctx, service.DemoRoster())
		if err != nil {
			log.Warn("failed to seed roster", "error", err)
		} else if seeded {
			log.Info("demo roster seeded")
		}
	}
	status.CompleteStep(handlers.StepRoster)

	registry := service.NewLearnerRegistry(service.LearnerDeps{
		Catalog:      quests,
		Documents:    backend.Documents,
		Interactions: backend.Interactions,
		Logger:       log,
	}, identity)

	if cfg.TokenSecret == "" {
		log.Warn("TOKEN_SECRET not set; learners will be signed out on restart")
	}
	if cfg.OperatorPinHash == "" {
		log.Warn("OPERATOR_PIN_HASH not set; teacher routes are disabled")
	}
	tokens := security.NewTokenIssuer(cfg.TokenSecret, cfg.SessionDuration)
	limiter := security.NewRateLimiter(handlers.OperatorRateLimit, handlers.OperatorRateWindow)
	gates := service.NewGateRegistry(identity)

	router := &handlers.Router{
		Middleware: handlers.NewMiddleware(tokens, identity, registry, limiter, cfg.OperatorPinHash),
		Startup:    status,
		Identity:   handlers.NewIdentityHandler(identity, registry, tokens, gates),
		Quests:     handlers.NewQuestHandler(quests, registry, cfg.DefaultLocale),
		Progress:   handlers.NewProgressHandler(registry),
		Operator:   handlers.NewOperatorHandler(identity, registry, service.NewBackupService(backend.Documents, backend.Interactions, log)),
	}
	api.Store(router.Mux())

	jobs := scheduler.New(registry, cfg.SessionIdleTimeout, log, limiter, gates)
	if err := jobs.Start(); err != nil {
		log.Fatal("failed to start scheduler", "error", err)
	}
	defer jobs.Stop()

	status.MarkReady()
	log.Info("AbaQuest ready", "quests", len(quests.Quests()))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
	if n := registry.EvictIdle(shutdownCtx, 0); n > 0 {
		log.Info("open learners closed", "count", n)
	}
}
