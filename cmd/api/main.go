// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chatloom/chatloom/internal/config"
	"github.com/chatloom/chatloom/internal/events"
	"github.com/chatloom/chatloom/internal/handler"
	"github.com/chatloom/chatloom/internal/llm"
	"github.com/chatloom/chatloom/internal/middleware"
	"github.com/chatloom/chatloom/internal/service"
	"github.com/chatloom/chatloom/internal/session"
	"github.com/chatloom/chatloom/internal/store"
	"github.com/chatloom/chatloom/pkg/logger"
	"github.com/chatloom/chatloom/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "chatloom", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Open the document store
	db, err := store.Open(cfg.DataDir, log)
	if err != nil {
		log.Error("failed to open store", zap.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	threadStore := store.NewThreadStore(db)

	// Initialize AI provider client
	apiKey := providerKey(cfg)
	aiClient, err := llm.NewClient(ctx, llm.Provider(cfg.Provider), apiKey, cfg.ModelName)
	if err != nil {
		log.Error("failed to create AI client", zap.String("provider", cfg.Provider), zap.Error(err))
		os.Exit(1)
	}
	retrying := llm.NewRetrying(aiClient, cfg.RetryMaxAttempts, cfg.RetryBaseDelay, log)

	// Connect the optional event publisher
	publisher, err := events.Connect(events.Config{URL: cfg.NATSURL, Token: cfg.NATSToken}, log)
	if err != nil {
		log.Warn("failed to connect to NATS, eventing disabled", zap.Error(err))
	}
	defer publisher.Close()

	// Initialize services
	sessions := session.NewManager(sessionStore, cfg.SessionCookieName, cfg.SessionTTL, cfg.SecureCookies)
	authSvc := service.NewAuthService(userStore, log)
	chatSvc := service.NewChatService(threadStore, retrying, publisher, log)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(db)
	authHandler := handler.NewAuthHandler(authSvc, sessions, log)
	threadHandler := handler.NewThreadHandler(chatSvc, log)
	chatHandler := handler.NewChatHandler(chatSvc, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes. The rate limiter is mounted after Auth on protected
	// routes so it keys on the authenticated user; the public auth
	// endpoints get the same limiter, which falls back to client IP.
	rateLimit := middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow)
	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(rateLimit)
				r.Post("/register", authHandler.Register)
				r.Post("/login", authHandler.Login)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(sessions))
				r.Use(rateLimit)
				r.Get("/logout", authHandler.Logout)
				r.Get("/current_user", authHandler.CurrentUser)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(sessions))
			r.Use(rateLimit)

			r.Get("/threads", threadHandler.List)
			r.Get("/threads/{threadId}", threadHandler.Get)
			r.Delete("/threads/{threadId}", threadHandler.Delete)

			r.Post("/chat", chatHandler.Send)
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort), zap.String("provider", cfg.Provider))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

func providerKey(cfg *config.Config) string {
	switch llm.Provider(cfg.Provider) {
	case llm.ProviderOpenAI:
		return cfg.OpenAIAPIKey
	case llm.ProviderAnthropic:
		return cfg.AnthropicAPIKey
	default:
		return cfg.GeminiAPIKey
	}
}
