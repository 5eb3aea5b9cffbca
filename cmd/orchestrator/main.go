package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/agent-orchestrator/core/internal/adapter/fsrepo"
	orchhttp "github.com/agent-orchestrator/core/internal/adapter/http"
	"github.com/agent-orchestrator/core/internal/adapter/otel"
	"github.com/agent-orchestrator/core/internal/adapter/ristretto"
	"github.com/agent-orchestrator/core/internal/adapter/securefile"
	"github.com/agent-orchestrator/core/internal/adapter/ws"
	"github.com/agent-orchestrator/core/internal/config"
	"github.com/agent-orchestrator/core/internal/logger"
	"github.com/agent-orchestrator/core/internal/middleware"
	"github.com/agent-orchestrator/core/internal/resilience"
	"github.com/agent-orchestrator/core/internal/service"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "connect":
			if err := runConnect(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			return
		case "serve":
			// fall through to the server below
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q (expected serve or connect)\n", os.Args[1])
			os.Exit(2)
		}
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	log.Info("config loaded",
		"port", cfg.Server.Port,
		"data_dir", cfg.Storage.DataDir,
		"log_level", cfg.Logging.Level,
	)

	// --- Infrastructure ---

	creds, err := securefile.New(cfg.Storage.DataDir, cfg.Storage.KeyFile)
	if err != nil {
		return fmt.Errorf("credential store: %w", err)
	}

	db, err := fsrepo.New(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}

	listingCache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	shutdownTracer := otel.InitTracer(cfg.Logging.Service)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(ctx)
	}()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	httpClient := &http.Client{
		Timeout:   cfg.HTTP.Timeout,
		Transport: resilience.NewTransport(nil, 5, 30*time.Second),
	}

	// --- Services ---

	hub := ws.NewHub()
	registry, err := service.NewRegistry(cfg.Storage.DataDir, creds, httpClient, log)
	if err != nil {
		return fmt.Errorf("provider registry: %w", err)
	}
	providerSvc := service.NewProviderService(registry, hub, metrics, log)
	marketplaceSvc := service.NewMarketplaceService(registry, db, listingCache, hub, metrics, log)
	marketplaceSvc.SetListingTTL(cfg.Cache.ListingTTL)

	// --- HTTP ---

	handlers := &orchhttp.Handlers{
		Registry:    registry,
		Providers:   providerSvc,
		Marketplace: marketplaceSvc,
		Agents:      service.NewAgentService(db),
		Skills:      service.NewSkillService(db),
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(orchhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(middleware.RequestID)
	r.Use(orchhttp.Logger)
	r.Use(otel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	// Health endpoint with service status
	r.Get("/health", healthHandler(registry, hub))

	// WebSocket endpoint
	r.Get("/ws", hub.HandleWS)

	// API routes
	orchhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	// No WriteTimeout: device flow completion blocks until the user
	// authorizes in the browser, and /ws connections are long-lived.
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
		}
	}()

	<-done
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// healthHandler returns an http.HandlerFunc that reports service health.
func healthHandler(registry *service.Registry, hub *ws.Hub) http.HandlerFunc {
	type healthStatus struct {
		Status      string `json:"status"`
		Providers   int    `json:"providers"`
		Connections int    `json:"ws_connections"`
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		status := healthStatus{
			Status:      "ok",
			Providers:   len(registry.Infos()),
			Connections: hub.ConnectionCount(),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(status)
	}
}
