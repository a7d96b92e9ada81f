package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"stock-pulse/config"
	"stock-pulse/internal/app"
	"stock-pulse/observability"
	"stock-pulse/services"

	"github.com/go-chi/chi/v5"
)

// Default page sizes for list endpoints
const (
	DefaultTopLimit   = 10
	DefaultMoversSize = 5
	MaxListLimit      = 500
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.&-]+$`)

// Handler handles HTTP API requests
type Handler struct {
	app      *app.App
	cfg      *config.Config
	breakers services.BreakerStatusProvider
}

// NewHandler creates a new Handler. A nil breakers uses the global registry.
func NewHandler(application *app.App, cfg *config.Config, breakers services.BreakerStatusProvider) *Handler {
	if breakers == nil {
		breakers = services.GetGlobalRegistry()
	}
	return &Handler{app: application, cfg: cfg, breakers: breakers}
}

// HandleHealth returns the health status of the application
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "ok",
		"services": map[string]string{
			"database": "unknown",
		},
	}

	if h.app.Repo() != nil {
		if err := h.app.Health(r.Context()); err == nil {
			status["services"].(map[string]string)["database"] = "connected"
		} else {
			status["services"].(map[string]string)["database"] = "disconnected"
			status["status"] = "degraded"
		}
	} else {
		status["services"].(map[string]string)["database"] = "not_configured"
	}

	cbStatus := h.breakers.Status()
	status["circuit_breakers"] = cbStatus

	for _, cb := range cbStatus {
		if cb.State == "open" {
			status["status"] = "degraded"
			break
		}
	}

	if run := h.app.LastBatchRun(); run != nil {
		status["last_batch"] = run
	}

	h.jsonResponse(w, status)
}

// HandleGetTopRanked returns the highest scored symbols
func (h *Handler) HandleGetTopRanked(w http.ResponseWriter, r *http.Request) {
	limit := h.ParseLimitParam(r, DefaultTopLimit)

	records, err := h.app.GetTopRanked(r.Context(), limit)
	if err != nil {
		h.internalError(w, r, "failed to fetch top ranked stocks", err)
		return
	}

	h.jsonResponse(w, records)
}

// HandleGetMarketMovers returns the top gainers and losers by score
func (h *Handler) HandleGetMarketMovers(w http.ResponseWriter, r *http.Request) {
	n := h.ParseLimitParam(r, DefaultMoversSize)

	movers, err := h.app.GetMarketMovers(r.Context(), n)
	if err != nil {
		h.internalError(w, r, "failed to fetch market movers", err)
		return
	}

	h.jsonResponse(w, movers)
}

// HandleGetDailyStockData returns the chart series and analysis for a symbol
func (h *Handler) HandleGetDailyStockData(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	if err := h.ValidateSymbol(symbol); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := h.app.GetDailyStockData(r.Context(), symbol)
	if err != nil {
		h.internalError(w, r, "failed to fetch stock data", err)
		return
	}
	if data == nil {
		h.jsonError(w, "no data", http.StatusNotFound)
		return
	}

	h.jsonResponse(w, data)
}

// HandleRunBatch starts a ranking batch in the background
func (h *Handler) HandleRunBatch(w http.ResponseWriter, r *http.Request) {
	started, err := h.app.RunBatch()
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if !started {
		h.jsonError(w, "batch already running", http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(StatusResponse{Status: "accepted", Message: "ranking batch started"})
}

// ValidateSymbol validates a stock symbol
func (h *Handler) ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}

	if len(symbol) > 20 {
		return fmt.Errorf("symbol too long (max 20 characters)")
	}

	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format (alphanumeric, dots, ampersands, and dashes only)")
	}

	return nil
}

// ParseLimitParam parses the limit query parameter, capped at MaxListLimit
func (h *Handler) ParseLimitParam(r *http.Request, defaultLimit int) int {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			return min(l, MaxListLimit)
		}
	}
	return defaultLimit
}

func (h *Handler) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// internalError logs err and replies with a generic 500
func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, message string, err error) {
	observability.Error(message, "path", r.URL.Path, "error", err)
	h.jsonError(w, message, http.StatusInternalServerError)
}

// StatusResponse represents a status response
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
