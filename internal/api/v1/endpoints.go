package v1

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HealthCheck reports named component states; nil means the component is healthy.
type HealthCheck func(ctx context.Context) map[string]error

type HealthHandler struct {
	check  HealthCheck
	stats  func() map[string]int
	logger *zap.Logger
}

func NewHealthHandler(check HealthCheck, stats func() map[string]int, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{check: check, stats: stats, logger: logger}
}

type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
	Stats      map[string]int    `json:"stats,omitempty"`
	Timestamp  int64             `json:"timestamp"`
}

// GetHealth handles GET /health
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:     "healthy",
		Components: map[string]string{},
		Timestamp:  time.Now().Unix(),
	}
	status := http.StatusOK

	if h.check != nil {
		for name, err := range h.check(ctx) {
			if err != nil {
				resp.Components[name] = "unhealthy: " + err.Error()
				resp.Status = "degraded"
				continue
			}
			resp.Components[name] = "healthy"
		}
	}
	if h.stats != nil {
		resp.Stats = h.stats()
	}
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}

	writeJSON(h.logger, w, status, resp)
}

// SetChartRoutes sets up the charting datafeed routes.
func SetChartRoutes(router *http.ServeMux, chartHandler *ChartHandler, streamHandler *StreamHandler, healthHandler *HealthHandler) {
	// Datafeed API Routes
	router.HandleFunc("GET /config", chartHandler.GetConfig)
	router.HandleFunc("GET /time", chartHandler.GetTime)
	router.HandleFunc("GET /search", chartHandler.SearchSymbols)
	router.HandleFunc("GET /symbols", chartHandler.ResolveSymbol)
	router.HandleFunc("GET /history", chartHandler.GetHistory)

	// Price Mode Routes
	router.HandleFunc("GET /price-mode", chartHandler.GetPriceMode)
	router.HandleFunc("POST /price-mode", chartHandler.SetPriceMode)

	// Live Bars
	router.HandleFunc("GET /stream", streamHandler.Stream)

	// System Health Routes
	router.HandleFunc("GET /health", healthHandler.GetHealth)
}
