package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fii-monitor/config"
	"fii-monitor/internal/app"
	"fii-monitor/models"
	"fii-monitor/services"
)

func fixedNow() time.Time {
	return time.Date(2025, 10, 15, 14, 30, 0, 0, models.MarketLocation())
}

type stubNarrator struct {
	text string
}

func (n *stubNarrator) Narrate(ctx context.Context, system, prompt string) (string, error) {
	return n.text, nil
}

func (n *stubNarrator) Model() string { return "stub" }

// testConfig returns a test configuration in demo mode
func testConfig() *config.Config {
	cfg := config.NewTestConfig()
	cfg.DemoMode = true
	return cfg
}

// testApp creates an App over the demo data source
func testApp(opts ...app.Option) *app.App {
	opts = append([]app.Option{app.WithClock(fixedNow)}, opts...)
	return app.New(testConfig(), services.NewDemoMarketData(fixedNow), opts...)
}

// testRouter creates a Chi router with test config for testing
func testRouter(application *app.App) http.Handler {
	cfg := application.Config()
	handler := NewHandler(application, cfg)
	return NewRouter(handler, cfg)
}

func do(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var response map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return w, response
}

func TestHandler_Health(t *testing.T) {
	for _, path := range []string{"/health", "/api/health"} {
		t.Run(path, func(t *testing.T) {
			w, response := do(t, testRouter(testApp()), http.MethodGet, path, "")

			if w.Code != http.StatusOK {
				t.Errorf("expected status 200, got %d", w.Code)
			}
			if status, ok := response["status"].(string); !ok || status != "ok" {
				t.Errorf("expected status ok, got %v", response["status"])
			}
			if response["demo_mode"] != true {
				t.Errorf("expected demo_mode true, got %v", response["demo_mode"])
			}
			if _, ok := response["circuit_breakers"]; !ok {
				t.Error("expected circuit_breakers in health response")
			}
		})
	}
}

func TestHandler_GetFII(t *testing.T) {
	router := testRouter(testApp())

	t.Run("known fund", func(t *testing.T) {
		w, response := do(t, router, http.MethodGet, "/api/fii/hglg11", "")
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		if response["ticker"] != "HGLG11.SA" {
			t.Errorf("unexpected ticker %v", response["ticker"])
		}
		history, ok := response["history"].([]interface{})
		if !ok || len(history) == 0 {
			t.Errorf("expected history, got %v", response["history"])
		}
		if response["dividend_yield_pct"] != 8.56 {
			t.Errorf("expected dividend yield 8.56, got %v", response["dividend_yield_pct"])
		}
	})

	t.Run("unknown fund", func(t *testing.T) {
		w, response := do(t, router, http.MethodGet, "/fii/ZZZZ11", "")
		if w.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", w.Code)
		}
		msg, _ := response["erro"].(string)
		if !strings.Contains(msg, "ZZZZ11") {
			t.Errorf("expected ticker in error message, got %q", msg)
		}
	})

	t.Run("invalid ticker", func(t *testing.T) {
		w, response := do(t, router, http.MethodGet, "/fii/hg-lg", "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", w.Code)
		}
		if _, ok := response["erro"]; !ok {
			t.Error("expected erro key")
		}
	})
}

func TestHandler_GetFIIs(t *testing.T) {
	w, response := do(t, testRouter(testApp()), http.MethodGet, "/api/fiis?tickers=hglg11,ZZZZ11,knri11", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if response["total"] != float64(2) {
		t.Errorf("expected total 2, got %v", response["total"])
	}
	fiis, _ := response["fiis"].([]interface{})
	if len(fiis) != 2 {
		t.Fatalf("expected 2 funds, got %d", len(fiis))
	}
	first := fiis[0].(map[string]interface{})
	second := fiis[1].(map[string]interface{})
	if first["ticker"] != "HGLG11.SA" || second["ticker"] != "KNRI11.SA" {
		t.Errorf("expected input order, got %v then %v", first["ticker"], second["ticker"])
	}
	if h, _ := first["history"].([]interface{}); len(h) != 0 {
		t.Errorf("batch records carry no history, got %d bars", len(h))
	}
	if _, ok := response["updated_at"]; !ok {
		t.Error("expected updated_at")
	}
}

func TestHandler_GetFIIs_SkipsMalformedTickers(t *testing.T) {
	router := testRouter(testApp())

	w, response := do(t, router, http.MethodGet, "/fiis?tickers=HGLG11,XPML-11,KNRI11", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if response["total"] != float64(2) {
		t.Errorf("expected total 2, got %v", response["total"])
	}

	w, response = do(t, router, http.MethodGet, "/fiis?tickers=XPML-11,BAD$", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	if response["erro"] != "no valid tickers" {
		t.Errorf("unexpected error message %v", response["erro"])
	}
}

func TestHandler_Search(t *testing.T) {
	router := testRouter(testApp())

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"found", "/search?q=knri11", http.StatusOK},
		{"missing query", "/api/search", http.StatusBadRequest},
		{"unknown", "/api/search?q=ZZZZ11", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, response := do(t, router, http.MethodGet, tt.path, "")
			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, w.Code)
			}
			if tt.status == http.StatusOK && response["exists"] != true {
				t.Errorf("expected exists true, got %v", response["exists"])
			}
		})
	}
}

func TestHandler_GetQuotes(t *testing.T) {
	router := testRouter(testApp())

	t.Run("default period", func(t *testing.T) {
		w, response := do(t, router, http.MethodGet, "/api/fii/HGLG11/quotes", "")
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}
		if response["period"] != "1y" {
			t.Errorf("expected period 1y, got %v", response["period"])
		}
		if response["intraday"] != false {
			t.Errorf("expected intraday false, got %v", response["intraday"])
		}
	})

	t.Run("intraday", func(t *testing.T) {
		w, response := do(t, router, http.MethodGet, "/api/fii/HGLG11/quotes?periodo=1d", "")
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}
		if response["intraday"] != true || response["degraded"] != false {
			t.Errorf("expected a fresh intraday answer, got intraday=%v degraded=%v", response["intraday"], response["degraded"])
		}
		stats, _ := response["statistics"].(map[string]interface{})
		if stats["count"] == float64(0) {
			t.Error("expected statistics over the intraday bars")
		}
	})

	t.Run("invalid period", func(t *testing.T) {
		w, response := do(t, router, http.MethodGet, "/api/fii/HGLG11/quotes?periodo=7d", "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", w.Code)
		}
		msg, _ := response["erro"].(string)
		if !strings.Contains(msg, "1mo") {
			t.Errorf("expected valid periods listed, got %q", msg)
		}
	})
}

func TestHandler_GetHourAnalysis(t *testing.T) {
	w, response := do(t, testRouter(testApp()), http.MethodGet, "/api/fii/VISC11/hour-analysis", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if response["total_hours"] != float64(7) {
		t.Errorf("expected 7 trading hours, got %v", response["total_hours"])
	}
	rec, _ := response["recommendation"].(map[string]interface{})
	if rec["buy_hour"] == nil || rec["sell_hour"] == nil {
		t.Errorf("expected a recommendation, got %v", rec)
	}
	stats, _ := response["statistics"].(map[string]interface{})
	if stats["count"] != response["total_bars"] {
		t.Errorf("expected hourly statistics over every bar, got %v", stats["count"])
	}
}

func TestHandler_GetDividends(t *testing.T) {
	w, response := do(t, testRouter(testApp()), http.MethodGet, "/api/fii/MXRF11/dividends", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	divs, _ := response["dividends"].([]interface{})
	if len(divs) != 24 {
		t.Errorf("expected 24 distributions, got %d", len(divs))
	}
}

func TestHandler_GetSummary(t *testing.T) {
	w, response := do(t, testRouter(testApp()), http.MethodGet, "/api/fii/BTLG11/summary", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	for _, key := range []string{"daily", "monthly", "annual", "dividends"} {
		if _, ok := response[key].(map[string]interface{}); !ok {
			t.Errorf("expected %s section, got %v", key, response[key])
		}
	}
}

const analysisBody = `{
  "gainers": [{"ticker": "HGLG11", "price": 153.5, "change_pct": 1.95}],
  "losers": [{"ticker": "KNRI11", "price": 98.75, "change_pct": -0.51}],
  "discounts": [],
  "stats": {"total": 2, "up": 1, "down": 1, "mean_change_pct": 0.72}
}`

func TestHandler_Analysis(t *testing.T) {
	t.Run("narrator not configured", func(t *testing.T) {
		w, response := do(t, testRouter(testApp()), http.MethodPost, "/api/analysis-ai", analysisBody)
		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", w.Code)
		}
		if response["erro"] != "AI narrator not configured" {
			t.Errorf("unexpected error %v", response["erro"])
		}
	})

	t.Run("success", func(t *testing.T) {
		router := testRouter(testApp(app.WithNarrator(&stubNarrator{text: "Logistics led."})))
		w, response := do(t, router, http.MethodPost, "/analysis-ai", analysisBody)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		if response["analysis"] != "Logistics led." || response["model"] != "stub" {
			t.Errorf("unexpected response %v", response)
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		w, _ := do(t, testRouter(testApp()), http.MethodPost, "/api/analysis-ai", "{not json")
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", w.Code)
		}
	})

	t.Run("item without ticker", func(t *testing.T) {
		body := `{"gainers": [{"price": 10}], "stats": {"total": 1}}`
		w, _ := do(t, testRouter(testApp()), http.MethodPost, "/api/analysis-ai", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", w.Code)
		}
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unavailable", models.NewUpstreamError(models.ErrUpstreamUnavailable, "X.SA", "5d/1d", nil), http.StatusNotFound},
		{"no data", fmt.Errorf("wrapped: %w", models.ErrNoData), http.StatusNotFound},
		{"timeout", models.NewUpstreamError(models.ErrUpstreamTimeout, "X.SA", "1d/5m", nil), http.StatusInternalServerError},
		{"invalid period", fmt.Errorf("%w: %q", app.ErrInvalidPeriod, "7d"), http.StatusBadRequest},
		{"narrator", app.ErrNarratorUnavailable, http.StatusInternalServerError},
		{"busy", app.ErrAnalysisBusy, http.StatusTooManyRequests},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if status, _ := StatusFor(tt.err); status != tt.status {
				t.Errorf("expected %d, got %d", tt.status, status)
			}
		})
	}
}

func TestHandler_ValidateTicker(t *testing.T) {
	h := NewHandler(testApp(), testConfig())
	tests := []struct {
		ticker  string
		wantErr bool
	}{
		{"HGLG11", false},
		{"HGLG11.SA", false},
		{"mxrf11", false},
		{"", true},
		{"HG-LG11", true},
		{"ABCDEFGHIJKLM", true},
	}
	for _, tt := range tests {
		t.Run(tt.ticker, func(t *testing.T) {
			err := h.ValidateTicker(tt.ticker)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTicker(%q) error = %v, wantErr %v", tt.ticker, err, tt.wantErr)
			}
		})
	}
}

func TestHandler_NotFound(t *testing.T) {
	w, _ := do(t, testRouter(testApp()), http.MethodGet, "/api/nonexistent", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	w, _ := do(t, testRouter(testApp()), http.MethodDelete, "/api/health", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}
}

func TestHandler_CORSHeaders(t *testing.T) {
	w, _ := do(t, testRouter(testApp()), http.MethodGet, "/api/health", "")
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("missing CORS Allow-Origin header")
	}
}

func TestHandler_OptionsRequest(t *testing.T) {
	w, _ := do(t, testRouter(testApp()), http.MethodOptions, "/api/analysis-ai", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200 for OPTIONS, got %d", w.Code)
	}
}
