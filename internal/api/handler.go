package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"fii-monitor/config"
	"fii-monitor/internal/app"
	"fii-monitor/models"
	"fii-monitor/observability"
	"fii-monitor/report"
	"fii-monitor/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var tickerPattern = regexp.MustCompile(`^[A-Z0-9]+(\.SA)?$`)

var validate = validator.New(validator.WithRequiredStructEnabled())

// quotesQuery is the query string of the quotes endpoint
type quotesQuery struct {
	Period string `validate:"omitempty,oneof=1d 5d 1mo 3mo 6mo 1y 2y 5y 10y ytd max"`
}

// Handler handles HTTP API requests
type Handler struct {
	app *app.App
	cfg *config.Config
}

// NewHandler creates a new Handler
func NewHandler(application *app.App, cfg *config.Config) *Handler {
	return &Handler{app: application, cfg: cfg}
}

// HandleHealth returns the health status of the application
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":    "ok",
		"message":   "FII monitor API running",
		"demo_mode": h.cfg.DemoMode,
	}

	// Add circuit breaker status
	cbStatus := services.GetGlobalRegistry().Status()
	status["circuit_breakers"] = cbStatus

	// Check if any breakers are open (degraded state)
	for _, cb := range cbStatus {
		if cb.State == "open" {
			status["status"] = "degraded"
			break
		}
	}

	h.jsonResponse(w, status)
}

// HandleGetFII returns one normalized fund with three months of history
func (h *Handler) HandleGetFII(w http.ResponseWriter, r *http.Request) {
	ticker, ok := h.tickerParam(w, r)
	if !ok {
		return
	}

	rec, err := h.app.GetRecord(r.Context(), ticker)
	if err != nil {
		h.fail(w, ticker, err)
		return
	}
	h.jsonResponse(w, report.NewRecordView(rec, true))
}

// HandleGetFIIs returns every requested fund that could be normalized.
// Malformed tickers are skipped; without a tickers parameter the configured
// watchlist is used.
func (h *Handler) HandleGetFIIs(w http.ResponseWriter, r *http.Request) {
	tickers := config.ParseTickers(r.URL.Query().Get("tickers"))
	if len(tickers) == 0 {
		tickers = h.cfg.Watchlist
	}
	valid := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if err := h.ValidateTicker(t); err != nil {
			observability.WithTicker(t).Warn("skipping invalid ticker", "error", err)
			continue
		}
		valid = append(valid, t)
	}
	if len(valid) == 0 {
		h.jsonError(w, "no valid tickers", http.StatusBadRequest)
		return
	}

	view, err := h.app.GetBatch(r.Context(), valid)
	if err != nil {
		h.fail(w, "", err)
		return
	}
	h.jsonResponse(w, view)
}

// HandleSearch checks whether a ticker has market data
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("q")))
	if q == "" {
		h.jsonError(w, "query parameter q is required", http.StatusBadRequest)
		return
	}
	if err := h.ValidateTicker(q); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	view, err := h.app.Search(r.Context(), q)
	if err != nil {
		h.fail(w, q, err)
		return
	}
	h.jsonResponse(w, view)
}

// HandleGetQuotes returns the bars and statistics of one window
func (h *Handler) HandleGetQuotes(w http.ResponseWriter, r *http.Request) {
	ticker, ok := h.tickerParam(w, r)
	if !ok {
		return
	}

	query := quotesQuery{Period: strings.ToLower(strings.TrimSpace(r.URL.Query().Get("periodo")))}
	if err := validate.Struct(query); err != nil {
		h.jsonError(w, fmt.Sprintf("invalid periodo %q, valid values: %s", query.Period, validPeriods()), http.StatusBadRequest)
		return
	}

	view, err := h.app.GetQuotes(r.Context(), ticker, models.Period(query.Period))
	if err != nil {
		h.fail(w, ticker, err)
		return
	}
	h.jsonResponse(w, view)
}

// HandleGetHourAnalysis returns the hour-of-day statistics of the last month
func (h *Handler) HandleGetHourAnalysis(w http.ResponseWriter, r *http.Request) {
	ticker, ok := h.tickerParam(w, r)
	if !ok {
		return
	}

	view, err := h.app.GetHourAnalysis(r.Context(), ticker)
	if err != nil {
		h.fail(w, ticker, err)
		return
	}
	h.jsonResponse(w, view)
}

// HandleGetDividends returns the distribution history
func (h *Handler) HandleGetDividends(w http.ResponseWriter, r *http.Request) {
	ticker, ok := h.tickerParam(w, r)
	if !ok {
		return
	}

	view, err := h.app.GetDividends(r.Context(), ticker)
	if err != nil {
		h.fail(w, ticker, err)
		return
	}
	h.jsonResponse(w, view)
}

// HandleGetSummary returns the combined snapshot
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	ticker, ok := h.tickerParam(w, r)
	if !ok {
		return
	}

	view, err := h.app.GetSummary(r.Context(), ticker)
	if err != nil {
		h.fail(w, ticker, err)
		return
	}
	h.jsonResponse(w, view)
}

// HandleAnalysis narrates the rankings posted by the dashboard
func (h *Handler) HandleAnalysis(w http.ResponseWriter, r *http.Request) {
	var req report.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		h.jsonError(w, fmt.Sprintf("invalid analysis request: %v", err), http.StatusBadRequest)
		return
	}

	view, err := h.app.Analyze(r.Context(), req)
	if err != nil {
		h.fail(w, "", err)
		return
	}
	h.jsonResponse(w, view)
}

// ValidateTicker validates a fund ticker, with or without the market suffix
func (h *Handler) ValidateTicker(ticker string) error {
	if ticker == "" {
		return fmt.Errorf("ticker is required")
	}

	if len(ticker) > 12 {
		return fmt.Errorf("ticker too long (max 12 characters)")
	}

	if !tickerPattern.MatchString(strings.ToUpper(ticker)) {
		return fmt.Errorf("invalid ticker format %q", ticker)
	}

	return nil
}

func (h *Handler) tickerParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	ticker := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "ticker")))
	if err := h.ValidateTicker(ticker); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return ticker, true
}

// fail maps an application error onto the error taxonomy and writes it
func (h *Handler) fail(w http.ResponseWriter, ticker string, err error) {
	status, message := StatusFor(err)
	if ticker != "" && status == http.StatusNotFound {
		message = fmt.Sprintf("no data found for %s", ticker)
	}
	observability.Warn("request failed", "ticker", ticker, "status", status, "error", err)
	h.jsonError(w, message, status)
}

// StatusFor returns the HTTP status and client message of an application error
func StatusFor(err error) (int, string) {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, app.ErrInvalidPeriod), errors.As(err, &validationErrs):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, models.ErrUpstreamUnavailable), errors.Is(err, models.ErrNoData):
		return http.StatusNotFound, "no data found"
	case errors.Is(err, models.ErrUpstreamTimeout):
		return http.StatusInternalServerError, "upstream data provider timed out"
	case errors.Is(err, app.ErrNarratorUnavailable):
		return http.StatusInternalServerError, app.ErrNarratorUnavailable.Error()
	case errors.Is(err, app.ErrAnalysisBusy):
		return http.StatusTooManyRequests, app.ErrAnalysisBusy.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func validPeriods() string {
	names := make([]string, len(models.Periods))
	for i, p := range models.Periods {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}

func (h *Handler) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"erro": message})
}
