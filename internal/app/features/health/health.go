// Package health serves liveness, readiness and component health.
package health

import (
	"context"
	"net/http"

	"github.com/dalemusser/stratawatch/internal/app/system/jsonutil"
	"github.com/dalemusser/stratawatch/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Pinger is satisfied by *mongo.Client.
type Pinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

// Monitors reports the live presence monitor count.
type Monitors interface {
	Len() int
}

// Classifier reports whether an anomaly model is loaded.
type Classifier interface {
	Available() bool
}

// Handler provides health check endpoints.
type Handler struct {
	mongo      Pinger
	monitors   Monitors
	classifier Classifier
	logger     *zap.Logger
}

// NewHandler creates a health Handler. A nil mongo skips the database check.
func NewHandler(mongo Pinger, monitors Monitors, classifier Classifier, logger *zap.Logger) *Handler {
	return &Handler{mongo: mongo, monitors: monitors, classifier: classifier, logger: logger}
}

// Response is the body of GET /health.
type Response struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services,omitempty"`
	Monitors int               `json:"monitors"`
}

// Routes returns /health (full check), /health/ready and /health/live.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.Check)
	r.Get("/ready", h.Ready)
	r.Get("/live", h.Live)
	return r
}

// MountRootEndpoints adds the Kubernetes probe paths /ready, /readyz and
// /livez on the root router.
func MountRootEndpoints(r chi.Router, h *Handler) {
	r.Get("/ready", h.Ready)
	r.Get("/readyz", h.Ready)
	r.Get("/livez", h.Live)
}

// Check reports each component. Only the database makes the service
// degraded; a missing model just disables anomaly detection.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	resp := Response{
		Status:   "ok",
		Services: make(map[string]string),
	}

	if err := h.ping(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Services["mongodb"] = "unavailable"
		h.logger.Warn("health check: mongodb ping failed", zap.Error(err))
	} else if h.mongo != nil {
		resp.Services["mongodb"] = "ok"
	}

	if h.classifier != nil && h.classifier.Available() {
		resp.Services["classifier"] = "ok"
	} else {
		resp.Services["classifier"] = "disabled"
	}

	if h.monitors != nil {
		resp.Monitors = h.monitors.Len()
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	jsonutil.JSON(w, status, resp)
}

// Ready checks if the service can accept events.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.ping(r.Context()); err != nil {
		h.logger.Warn("readiness check failed", zap.Error(err))
		jsonutil.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	jsonutil.OK(w, map[string]string{"status": "ready"})
}

// Live reports that the process is running.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	jsonutil.OK(w, map[string]string{"status": "alive"})
}

func (h *Handler) ping(ctx context.Context) error {
	if h.mongo == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.Ping())
	defer cancel()
	return h.mongo.Ping(ctx, readpref.Primary())
}
