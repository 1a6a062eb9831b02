// Better HAC - backend-for-frontend for the HAC school platform
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

	"github.com/chi1180/better-hac/internal/api"
	"github.com/chi1180/better-hac/internal/chat"
	"github.com/chi1180/better-hac/internal/config"
	"github.com/chi1180/better-hac/internal/image"
	"github.com/chi1180/better-hac/internal/middleware"
	"github.com/chi1180/better-hac/internal/proxy"
	"github.com/chi1180/better-hac/internal/session"
	"github.com/chi1180/better-hac/internal/store"
	"github.com/chi1180/better-hac/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "upstream", cfg.UpstreamBaseURL, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Initialize services.
	upstream := proxy.NewUpstream(cfg.UpstreamBaseURL, cfg.Timeout.Proxy)

	sessions, err := session.NewService(context.Background(), repo, cfg.UpstreamBaseURL, cfg.Timeout.SessionCheck)
	if err != nil {
		slog.Error("Failed to initialize session service", "error", err)
		os.Exit(1)
	}
	monitor := session.NewMonitor(sessions, cfg.Monitor)

	// Domain clients share the session's cookie jar and 401/403 interceptor.
	imageClient := image.NewClient(cfg.UpstreamBaseURL, sessions.HTTPClient(), cfg.Timeout.Image)
	images := image.NewService(imageClient, repo)
	chatClient := chat.NewClient(cfg.UpstreamBaseURL, sessions.HTTPClient(), cfg.Timeout.Proxy)

	// Initialize handlers.
	proxyHandler := proxy.NewHandler(upstream, repo, cfg)
	apiHandler := api.NewHandler(repo, sessions, monitor, images, chatClient)
	wsHandler := session.NewWebSocketHandler(sessions, monitor)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CORS(corsOrigins(cfg)))

	// Forwarding and status routes.
	proxyHandler.RegisterRoutes(r)

	// Local API routes.
	apiHandler.RegisterImageRoutes(r)
	apiHandler.RegisterSessionRoutes(r)
	apiHandler.RegisterChatRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/session", wsHandler.ServeHTTP)

	// Serve embedded frontend.
	r.Handle("/app", web.SPAHandler("/app"))
	r.Handle("/app/*", web.SPAHandler("/app"))

	// Unmatched routes get the structured 404 envelope.
	r.NotFound(proxy.NotFound)
	r.MethodNotAllowed(proxy.NotFound)

	// Create server.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * cfg.Timeout.Image, // image forwarding must outlive its upstream budget
		IdleTimeout:  120 * time.Second,
	}

	// Start session monitor.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitor.Start(ctx)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")
	monitor.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

func corsOrigins(cfg *config.Config) []string {
	if cfg.FrontendURL != "" {
		return []string{cfg.FrontendURL}
	}
	// Development: allow everything, but without credentials for wildcards.
	return []string{"*"}
}
