// Package main runs the back office HTTP API.
//
// Without database settings the server starts in demo mode over an in-memory
// store, which is what local development and the frontend use.
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

	"github.com/rs/cors"

	"github.com/viniciusnovato/finance-sub000/internal/api"
	"github.com/viniciusnovato/finance-sub000/internal/auth"
	"github.com/viniciusnovato/finance-sub000/internal/config"
	"github.com/viniciusnovato/finance-sub000/internal/handlers"
	"github.com/viniciusnovato/finance-sub000/internal/services/backoffice"
	"github.com/viniciusnovato/finance-sub000/internal/services/cache"
	"github.com/viniciusnovato/finance-sub000/internal/services/memstore"
	"github.com/viniciusnovato/finance-sub000/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := utils.InitLogger(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer utils.Sync()
	logger := utils.Named("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := api.Options{Version: getEnvOrDefault("SERVICE_VERSION", "1.0.0"), Stage: cfg.Stage}
	demo := !cfg.HasDatabase()

	if demo {
		logger.Warn("No database configured, running in demo mode with an in-memory store")
		store := memstore.New()
		reportCache := cache.Connect(ctx, cfg)
		defer reportCache.Close()

		svcOpts, err := handlers.ServiceOptions(ctx, cfg, reportCache)
		if err != nil {
			logger.Fatal("Failed to configure service", utils.Error(err))
		}
		opts.Service = backoffice.New(backoffice.Stores{
			Clients:   store.Clients(),
			Contracts: store.Contracts(),
			Payments:  store.Payments(),
		}, svcOpts...)
		opts.Health = store
	} else {
		backend, err := handlers.NewBackend(ctx, cfg)
		if err != nil {
			logger.Fatal("Failed to start backend", utils.Error(err))
		}
		defer backend.Close()
		opts.Service = backend.Service
		opts.Health = backend.DB
	}

	switch {
	case cfg.JWTSecret != "":
		opts.Auth, err = auth.New(cfg.JWTSecret, cfg.JWTIssuer)
		if err != nil {
			logger.Fatal("Failed to configure authentication", utils.Error(err))
		}
	case demo:
		logger.Warn("JWT_SECRET not set, API routes are unauthenticated")
	default:
		logger.Fatal("JWT_SECRET is required when a database is configured")
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           c.Handler(api.NewRouter(opts)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server",
			utils.String("addr", srv.Addr),
			utils.String("stage", cfg.Stage),
			utils.Bool("demo", demo),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", utils.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", utils.Error(err))
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
