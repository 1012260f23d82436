package apistats

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/stratawatch/internal/app/system/metrics"
	"github.com/go-chi/chi/v5"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware("test-logs"))
	r.Get("/users/{user}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{}"))
	})

	for _, path := range []string{"/users/alice", "/users/bob", "/ok"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := promtest.ToFloat64(metrics.HTTPRequests.WithLabelValues("test-logs", "/users/{user}", "GET", "404")); got != 2 {
		t.Errorf("404 count for /users/{user} = %v, want 2", got)
	}
	if got := promtest.ToFloat64(metrics.HTTPRequests.WithLabelValues("test-logs", "/ok", "GET", "200")); got != 1 {
		t.Errorf("200 count for /ok = %v, want 1", got)
	}
}

func TestResponseWrapper_FirstStatusWins(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWrapper{ResponseWriter: rec, statusCode: http.StatusOK}
	_, _ = rw.Write([]byte("x"))
	rw.WriteHeader(http.StatusInternalServerError)
	if rw.statusCode != http.StatusOK {
		t.Errorf("statusCode = %d, want 200", rw.statusCode)
	}
}
