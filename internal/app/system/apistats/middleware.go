// Package apistats records per-route API request counts and latencies.
package apistats

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dalemusser/stratawatch/internal/app/system/metrics"
	"github.com/go-chi/chi/v5"
)

// unmatched labels requests that no route matched, so arbitrary paths do not
// create new label values.
const unmatched = "unmatched"

// Middleware records each request in metrics.HTTPRequests and
// metrics.HTTPRequestDuration, labelled by its chi route pattern.
//
// Usage in routes:
//
//	r.Use(apistats.Middleware("ingest"))
func Middleware(api string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWrapper{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			next.ServeHTTP(wrapped, r)

			code := strconv.Itoa(wrapped.statusCode)
			route := routePattern(r)
			metrics.HTTPRequests.WithLabelValues(api, route, r.Method, code).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(api, route).Observe(time.Since(start).Seconds())
		})
	}
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatched
	}
	if p := rctx.RoutePattern(); p != "" {
		return p
	}
	return unmatched
}

// responseWrapper captures the status code written by the handler.
type responseWrapper struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWrapper) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWrapper) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Flush implements http.Flusher.
func (rw *responseWrapper) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
