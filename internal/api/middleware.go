package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"fii-monitor/observability"

	"github.com/go-chi/chi/v5"
)

// unmatchedRoute labels requests no route claimed, keeping raw ticker paths
// out of the metric label set.
const unmatchedRoute = "unmatched"

// statusRecorder captures the status and body size written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	bytes       int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rec *statusRecorder) WriteHeader(code int) {
	if !rec.wroteHeader {
		rec.status = code
		rec.wroteHeader = true
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	rec.wroteHeader = true
	n, err := rec.ResponseWriter.Write(b)
	rec.bytes += n
	return n, err
}

// routeLabel returns the chi pattern that served r with the /api mount folded
// into the root one, so both prefixes share a series.
func routeLabel(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedRoute
	}
	pattern := rctx.RoutePattern()
	if pattern == "" || strings.HasSuffix(pattern, "/*") {
		return unmatchedRoute
	}
	if rest, ok := strings.CutPrefix(pattern, "/api/"); ok {
		pattern = "/" + rest
	}
	return pattern
}

// MetricsMiddleware records request count, latency and response size per route
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newStatusRecorder(w)

		next.ServeHTTP(rec, r)

		observability.GetMetrics().RecordHTTPRequest(r.Method, routeLabel(r),
			strconv.Itoa(rec.status), time.Since(start), rec.bytes)
	})
}
