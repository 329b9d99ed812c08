package v1

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chartfeed/internal/datafeed"

	"go.uber.org/zap"
)

// PriceModeSwitch reads and changes the engine-wide price mode.
type PriceModeSwitch interface {
	PriceType() datafeed.PriceMode
	UpdatePriceType(mode datafeed.PriceMode)
}

type ChartHandler struct {
	feed   datafeed.Datafeed
	modes  PriceModeSwitch
	logger *zap.Logger
}

func NewChartHandler(feed datafeed.Datafeed, modes PriceModeSwitch, logger *zap.Logger) *ChartHandler {
	return &ChartHandler{
		feed:   feed,
		modes:  modes,
		logger: logger,
	}
}

// HistoryResponse is the column-oriented bar payload charting clients expect.
// Times are bucket starts in seconds.
type HistoryResponse struct {
	Status string    `json:"s"`
	ErrMsg string    `json:"errmsg,omitempty"`
	Time   []int64   `json:"t,omitempty"`
	Open   []float64 `json:"o,omitempty"`
	High   []float64 `json:"h,omitempty"`
	Low    []float64 `json:"l,omitempty"`
	Close  []float64 `json:"c,omitempty"`
	Volume []float64 `json:"v,omitempty"`
}

type PriceModeRequest struct {
	Mode string `json:"mode"`
}

type PriceModeResponse struct {
	Mode string `json:"mode"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// GetConfig handles GET /config
func (h *ChartHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	var cfg datafeed.Configuration
	h.feed.OnReady(func(c datafeed.Configuration) { cfg = c })
	h.writeJSONResponse(w, http.StatusOK, cfg)
}

// GetTime handles GET /time
func (h *ChartHandler) GetTime(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(strconv.FormatInt(time.Now().Unix(), 10)))
}

// SearchSymbols handles GET /search?query=&limit=
func (h *ChartHandler) SearchSymbols(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	var results []datafeed.SymbolSearchResult
	h.feed.SearchSymbols(query, func(res []datafeed.SymbolSearchResult) { results = res })

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	h.writeJSONResponse(w, http.StatusOK, results)
}

// ResolveSymbol handles GET /symbols?symbol=
func (h *ChartHandler) ResolveSymbol(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("symbol")

	h.feed.ResolveSymbol(name,
		func(info datafeed.SymbolInfo) {
			h.writeJSONResponse(w, http.StatusOK, info)
		},
		func(reason string) {
			h.writeErrorResponse(w, http.StatusNotFound, reason)
		},
	)
}

// GetHistory handles GET /history?symbol=&resolution=&from=&to=
// from and to are unix seconds and optional.
func (h *ChartHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	symbol := strings.ToUpper(strings.TrimSpace(q.Get("symbol")))
	if symbol == "" {
		h.writeJSONResponse(w, http.StatusBadRequest, HistoryResponse{Status: "error", ErrMsg: "missing symbol parameter"})
		return
	}
	res, err := datafeed.ParseResolution(q.Get("resolution"))
	if err != nil {
		h.writeJSONResponse(w, http.StatusBadRequest, HistoryResponse{Status: "error", ErrMsg: err.Error()})
		return
	}

	var period datafeed.PeriodParams
	if period.From, err = parseUnixSeconds(q.Get("from")); err != nil {
		h.writeJSONResponse(w, http.StatusBadRequest, HistoryResponse{Status: "error", ErrMsg: "invalid from parameter"})
		return
	}
	if period.To, err = parseUnixSeconds(q.Get("to")); err != nil {
		h.writeJSONResponse(w, http.StatusBadRequest, HistoryResponse{Status: "error", ErrMsg: "invalid to parameter"})
		return
	}
	period.CountBack, _ = strconv.Atoi(q.Get("countback"))

	type outcome struct {
		bars   []datafeed.Bar
		meta   datafeed.HistoryMetadata
		reason string
		failed bool
	}
	done := make(chan outcome, 1)

	info := datafeed.SymbolInfo{Name: symbol, Ticker: symbol}
	h.feed.GetBars(info, res, period,
		func(bars []datafeed.Bar, meta datafeed.HistoryMetadata) {
			done <- outcome{bars: bars, meta: meta}
		},
		func(reason string) {
			done <- outcome{reason: reason, failed: true}
		},
	)

	select {
	case <-r.Context().Done():
		return
	case out := <-done:
		switch {
		case out.failed:
			h.writeJSONResponse(w, http.StatusBadGateway, HistoryResponse{Status: "error", ErrMsg: out.reason})
		case out.meta.NoData:
			h.writeJSONResponse(w, http.StatusOK, HistoryResponse{Status: "no_data"})
		default:
			h.writeJSONResponse(w, http.StatusOK, toHistoryResponse(out.bars))
		}
	}
}

// GetPriceMode handles GET /price-mode
func (h *ChartHandler) GetPriceMode(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, PriceModeResponse{Mode: string(h.modes.PriceType())})
}

// SetPriceMode handles POST /price-mode
func (h *ChartHandler) SetPriceMode(w http.ResponseWriter, r *http.Request) {
	var req PriceModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mode := datafeed.PriceMode(req.Mode)
	if !mode.IsValid() {
		h.writeErrorResponse(w, http.StatusBadRequest, "unsupported price mode: "+req.Mode)
		return
	}

	h.modes.UpdatePriceType(mode)
	h.logger.Info("price mode switched", zap.String("mode", req.Mode))
	h.writeJSONResponse(w, http.StatusOK, PriceModeResponse{Mode: string(mode)})
}

func toHistoryResponse(bars []datafeed.Bar) HistoryResponse {
	resp := HistoryResponse{
		Status: "ok",
		Time:   make([]int64, 0, len(bars)),
		Open:   make([]float64, 0, len(bars)),
		High:   make([]float64, 0, len(bars)),
		Low:    make([]float64, 0, len(bars)),
		Close:  make([]float64, 0, len(bars)),
		Volume: make([]float64, 0, len(bars)),
	}
	for _, b := range bars {
		resp.Time = append(resp.Time, b.Time/1000)
		resp.Open = append(resp.Open, b.Open)
		resp.High = append(resp.High, b.High)
		resp.Low = append(resp.Low, b.Low)
		resp.Close = append(resp.Close, b.Close)
		resp.Volume = append(resp.Volume, b.Volume)
	}
	return resp
}

func parseUnixSeconds(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	if sec <= 0 {
		return time.Time{}, nil
	}
	return time.Unix(sec, 0), nil
}

func (h *ChartHandler) writeJSONResponse(w http.ResponseWriter, status int, v any) {
	writeJSON(h.logger, w, status, v)
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (h *ChartHandler) writeErrorResponse(w http.ResponseWriter, status int, message string) {
	h.writeJSONResponse(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}
