package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"trendforge/importer/internal/server/api"
	"trendforge/importer/internal/server/storage"
)

const shutdownTimeout = 30 * time.Second

// Deps are the collaborators exposed over HTTP.
type Deps struct {
	Repo     storage.TrendRepository
	Importer api.Importer
	Queue    api.QueueCounter
	Overview api.Overview
}

// requireAPIKey rejects requests whose X-API-Key header does not match key.
// An empty key disables the check, and /health is always open.
func requireAPIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}
			got := r.Header.Get("X-API-Key")
			switch {
			case got == "":
				http.Error(w, "API key required", http.StatusUnauthorized)
			case subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1:
				hlog.FromRequest(r).Warn().Msg("Rejected request with invalid API key")
				http.Error(w, "Invalid API key", http.StatusUnauthorized)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// withRequestLogging attaches logger to every request context and writes one
// access log line per request.
func withRequestLogging(h http.Handler, logger zerolog.Logger) http.Handler {
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("HTTP Request")
	})(h)
	h = hlog.RequestIDHandler("req_id", "Request-Id")(h)
	h = hlog.UserAgentHandler("user_agent")(h)
	h = hlog.RemoteAddrHandler("remote_addr")(h)
	h = hlog.URLHandler("url")(h)
	h = hlog.MethodHandler("method")(h)
	return hlog.NewHandler(logger)(h)
}

// NewHandler builds the routes and middleware of the admin API.
func NewHandler(deps Deps, logger zerolog.Logger, apiKey string) http.Handler {
	trends := api.NewTrendsHandler(deps.Repo)
	admin := api.NewAdminHandler(deps.Importer, deps.Repo, deps.Queue, deps.Overview)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/trends", trends.GetTrends)
	mux.HandleFunc("GET /v1/stats", admin.GetStats)
	mux.HandleFunc("POST /v1/fetch", admin.PostFetch)
	mux.HandleFunc("POST /v1/clear", admin.PostClear)
	mux.HandleFunc("GET /health", healthCheckHandler)

	logger.Info().Bool("api_key", apiKey != "").Msg("Admin API routes registered")
	return withRequestLogging(requireAPIKey(apiKey)(mux), logger)
}

// RunServer serves h on listenAddr until ctx is cancelled, then drains open
// connections for up to shutdownTimeout.
func RunServer(ctx context.Context, h http.Handler, listenAddr string, logger zerolog.Logger) error {
	logger = logger.With().Str("service", "trends-admin-api").Logger()

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// POST /v1/fetch downloads and stores the feed inside the request.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	listenErr := make(chan error, 1)
	go func() {
		logger.Info().Str("address", listenAddr).Msg("Admin API listening")
		listenErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-listenErr:
		logger.Error().Err(err).Msg("Admin API failed to start")
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down admin API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed, closing connections")
		srv.Close()
	}
	if err := <-listenErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("Admin API stopped with error")
	}

	logger.Info().Msg("Admin API stopped")
	return nil
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Error writing health check response")
	}
}
