package api

import (
	"net/http"

	"fii-monitor/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates and configures a Chi router with all routes
func NewRouter(h *Handler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.HTTP.RequestTimeout))
	r.Use(CORSMiddleware(cfg.HTTP.CORSAllowedOrigins))
	r.Use(MetricsMiddleware)

	// Metrics endpoint for Prometheus
	r.Handle("/metrics", promhttp.Handler())

	// The dashboard calls the /api prefix; older clients call the root
	mountRoutes(r, h)
	r.Route("/api", func(r chi.Router) {
		mountRoutes(r, h)
	})

	return r
}

func mountRoutes(r chi.Router, h *Handler) {
	r.Get("/health", h.HandleHealth)

	// Funds
	r.Get("/fiis", h.HandleGetFIIs)
	r.Get("/search", h.HandleSearch)
	r.Route("/fii/{ticker}", func(r chi.Router) {
		r.Get("/", h.HandleGetFII)
		r.Get("/quotes", h.HandleGetQuotes)
		r.Get("/hour-analysis", h.HandleGetHourAnalysis)
		r.Get("/dividends", h.HandleGetDividends)
		r.Get("/summary", h.HandleGetSummary)
	})

	// Narration
	r.Post("/analysis-ai", h.HandleAnalysis)
}

// CORSMiddleware returns CORS middleware with the specified allowed origins
func CORSMiddleware(allowedOrigins string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
