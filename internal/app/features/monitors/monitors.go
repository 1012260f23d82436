// Package monitors exposes the live presence monitor registry.
package monitors

import (
	"net/http"

	"github.com/dalemusser/stratawatch/internal/app/system/apicors"
	"github.com/dalemusser/stratawatch/internal/app/system/apistats"
	"github.com/dalemusser/stratawatch/internal/app/system/auth"
	"github.com/dalemusser/stratawatch/internal/app/system/jsonutil"
	"github.com/dalemusser/stratawatch/internal/app/system/monitor"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Registry lists running monitors.
type Registry interface {
	Active() []monitor.Snapshot
}

// Handler serves GET /api/monitors.
type Handler struct {
	registry Registry
}

// NewHandler creates a monitors Handler.
func NewHandler(registry Registry) *Handler {
	return &Handler{registry: registry}
}

type listResponse struct {
	Count    int                `json:"count"`
	Monitors []monitor.Snapshot `json:"monitors"`
}

// List responds with every running monitor, ordered by user:
//
//	{"count": 1, "monitors": [{"user": "alice", "device": "a4:55:90:55:cc:03",
//	  "state": "connected", "started_at": "2025-06-01T09:00:00Z"}]}
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	active := h.registry.Active()
	jsonutil.OK(w, listResponse{Count: len(active), Monitors: active})
}

// Routes mounts the monitor listing, normally at /api/monitors.
func Routes(h *Handler, apiKey string, origins []string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(apicors.MiddlewareWithOrigins(origins...))
	r.Use(auth.APIKeyAuth(apiKey, logger))
	r.Use(apistats.Middleware("monitors"))
	r.Get("/", h.List)
	return r
}
