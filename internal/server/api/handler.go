package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/hlog"

	"trendforge/importer/internal/models"
	"trendforge/importer/internal/server/pagination"
	"trendforge/importer/internal/server/storage"
)

const defaultLimit = 50
const maxLimit = 500

// Response structure for the trends endpoint
type Response struct {
	Items      []models.Trend `json:"items"`
	NextCursor *string        `json:"next_cursor,omitempty"`
}

// TrendsHandler serves the trend listing.
type TrendsHandler struct {
	repo storage.TrendRepository
}

// NewTrendsHandler creates a new handler instance.
func NewTrendsHandler(repo storage.TrendRepository) *TrendsHandler {
	return &TrendsHandler{
		repo: repo,
	}
}

type listParams struct {
	limit     int
	cursorTS  *time.Time
	cursorID  *int64
	cursorRaw string
}

// parseListParams reads limit and cursor. The returned message is meant for the client.
func parseListParams(r *http.Request) (listParams, string, error) {
	p := listParams{limit: defaultLimit}
	q := r.URL.Query()

	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err == nil && (n <= 0 || n > maxLimit) {
			err = fmt.Errorf("limit %d out of range", n)
		}
		if err != nil {
			return p, fmt.Sprintf("Invalid 'limit' parameter: must be between 1 and %d", maxLimit), err
		}
		p.limit = n
	}

	if p.cursorRaw = q.Get("cursor"); p.cursorRaw != "" {
		ts, id, err := pagination.DecodeCursor(p.cursorRaw)
		if err != nil {
			return p, "Invalid 'cursor' parameter", err
		}
		p.cursorTS, p.cursorID = &ts, &id
	}
	return p, "", nil
}

// GetTrends lists imported trends, newest first, one page at a time.
func (h *TrendsHandler) GetTrends(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	params, msg, err := parseListParams(r)
	if err != nil {
		log.Warn().Err(err).Str("query", r.URL.RawQuery).Msg("Invalid trends query")
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	// One extra row tells whether another page exists.
	items, err := h.repo.FetchTrends(r.Context(), params.limit+1, params.cursorTS, params.cursorID)
	if err != nil {
		log.Error().Err(err).Str("cursor", params.cursorRaw).Msg("Error fetching trends from repository")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	resp := Response{Items: items}
	if len(items) > params.limit {
		resp.Items = items[:params.limit]
		last := resp.Items[len(resp.Items)-1]
		next := pagination.EncodeCursor(last.ImportedAt, last.ID)
		resp.NextCursor = &next
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	log := hlog.FromRequest(r)

	jsonBytes, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("Error marshaling JSON response")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, writeErr := w.Write(jsonBytes); writeErr != nil {
		log.Error().Err(writeErr).Msg("Error writing JSON response body to client")
	}
	log.Debug().Int("bytes_written", len(jsonBytes)).Msg("Response completed")
}
