package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ternarybob/arbor"

	"zendesk-feedback-monitor/internal/common"
	"zendesk-feedback-monitor/internal/handlers"
	"zendesk-feedback-monitor/internal/interfaces"
	"zendesk-feedback-monitor/internal/middleware"
)

const shutdownTimeout = 5 * time.Second

// webServer serves the Telex-facing endpoints and the operational surface
type webServer struct {
	config  *common.Config
	server  *http.Server
	router  chi.Router
	logger  arbor.ILogger
	running atomic.Bool
}

// NewWebServer builds the router and the HTTP server around it
func NewWebServer(cfg *common.Config, apiHandlers *handlers.APIHandlers, wsHub *handlers.WebSocketHub, logger arbor.ILogger) (interfaces.WebService, error) {
	if apiHandlers == nil || wsHub == nil {
		return nil, common.NewConfigurationError("MISSING_HANDLERS", "web server requires API handlers and a websocket hub")
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))

	// Telex integration
	r.Get("/zendesk-feedback", apiHandlers.FeedbackHandler)
	r.Get("/integration.json", apiHandlers.IntegrationHandler)
	r.With(middleware.RateLimit(
		cfg.Server.RateLimitRequests,
		time.Duration(cfg.Server.RateLimitWindowSeconds)*time.Second,
	)).Post("/tick", apiHandlers.TickHandler)
	r.Post("/update-interval", apiHandlers.UpdateIntervalHandler)

	// Operations
	r.Get("/health", apiHandlers.HealthHandler)
	r.Get("/version", apiHandlers.VersionHandler)
	r.Get("/history", apiHandlers.HistoryHandler)
	r.Delete("/history", apiHandlers.HistoryHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/ws", wsHub.WebSocketHandler)

	ws := &webServer{
		config: cfg,
		router: r,
		logger: logger,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	return ws, nil
}

func (ws *webServer) String() string {
	return "web-server"
}

// Handler exposes the router, mainly for tests
func (ws *webServer) Handler() http.Handler {
	return ws.router
}

// Serve listens until ctx is cancelled, then drains for up to five seconds
func (ws *webServer) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		ws.logger.Info().Int("port", ws.config.Server.Port).Msg("Starting web server")
		errCh <- ws.server.ListenAndServe()
	}()

	ws.running.Store(true)
	defer ws.running.Store(false)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		ws.logger.Error().Err(err).Msg("Web server error")
		return err

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		ws.logger.Info().Msg("Shutting down web server")
		if err := ws.server.Shutdown(shutdownCtx); err != nil {
			ws.logger.Warn().Err(err).Msg("Web server shutdown incomplete")
		}
		return ctx.Err()
	}
}

// IsRunning returns true while Serve is listening
func (ws *webServer) IsRunning() bool {
	return ws.running.Load()
}
