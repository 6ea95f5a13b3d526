package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"

	"trendforge/importer/internal/ingest"
	"trendforge/importer/internal/server/storage"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// StatusResponse is the single message returned by admin actions.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Importer runs imports and clears imported data.
type Importer interface {
	FetchAndSaveTrends(ctx context.Context) (ingest.Summary, error)
	ClearData(ctx context.Context) error
}

// Overview describes the running configuration on the dashboard.
type Overview struct {
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	MaxTrends     int    `json:"max_trends"`
	MinTraffic    int    `json:"min_traffic"`
	ImportEnabled bool   `json:"import_enabled"`
	CronEnabled   bool   `json:"cron_enabled"`
	CronSchedule  string `json:"cron_schedule"`
	DomainID      string `json:"domain_id,omitempty"`
}

// StatsResponse is the dashboard payload.
type StatsResponse struct {
	*storage.Stats
	QueueLength int64    `json:"queue_length"`
	Config      Overview `json:"config"`
}

// QueueCounter reports the number of queued trends.
type QueueCounter interface {
	Len(ctx context.Context) (int64, error)
}

// AdminHandler serves the dashboard and the manual actions.
type AdminHandler struct {
	importer Importer
	repo     storage.TrendRepository
	queue    QueueCounter
	overview Overview
	now      func() time.Time
}

// NewAdminHandler creates a new handler instance.
func NewAdminHandler(importer Importer, repo storage.TrendRepository, queue QueueCounter, overview Overview) *AdminHandler {
	return &AdminHandler{importer: importer, repo: repo, queue: queue, overview: overview, now: time.Now}
}

// GetStats returns dashboard counters and the configuration overview.
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	stats, err := h.repo.Stats(r.Context(), h.now())
	if err != nil {
		log.Error().Err(err).Msg("Error computing stats")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{Stats: stats, Config: h.overview}
	if h.queue != nil {
		if n, err := h.queue.Len(r.Context()); err != nil {
			log.Warn().Err(err).Msg("Failed to read queue length")
		} else {
			resp.QueueLength = n
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// PostFetch runs an import immediately.
func (h *AdminHandler) PostFetch(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	sum, err := h.importer.FetchAndSaveTrends(r.Context())
	switch {
	case errors.Is(err, ingest.ErrImportDisabled):
		writeJSON(w, r, http.StatusConflict, StatusResponse{Status: StatusError, Message: "Trends import is disabled."})
	case errors.Is(err, ingest.ErrFeedURLNotConfigured):
		writeJSON(w, r, http.StatusConflict, StatusResponse{Status: StatusError, Message: "Trends feed URL is not configured."})
	case err != nil:
		log.Error().Err(err).Msg("Manual fetch failed")
		writeJSON(w, r, http.StatusBadGateway, StatusResponse{Status: StatusError, Message: "Failed to fetch trends: " + err.Error()})
	default:
		writeJSON(w, r, http.StatusOK, StatusResponse{Status: StatusOK, Message: FetchMessage(sum)})
	}
}

// PostClear deletes all trends and news items and empties the queue.
func (h *AdminHandler) PostClear(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	if err := h.importer.ClearData(r.Context()); err != nil {
		log.Error().Err(err).Msg("Clearing trends data failed")
		writeJSON(w, r, http.StatusInternalServerError, StatusResponse{Status: StatusError, Message: "Failed to clear trends data: " + err.Error()})
		return
	}
	writeJSON(w, r, http.StatusOK, StatusResponse{Status: StatusOK, Message: "All trends data has been cleared."})
}

// FetchMessage renders an import summary for people.
func FetchMessage(s ingest.Summary) string {
	msg := fmt.Sprintf("Imported %d new trends (%d below minimum traffic, %d filtered by TLD, %d duplicates, %d invalid).",
		s.Imported, s.SkippedTraffic, s.FilteredTLD, s.Duplicates, s.Invalid)
	if s.Requeued > 0 {
		msg += fmt.Sprintf(" Requeued %d unfinished trends.", s.Requeued)
	}
	return msg
}
