package ingest

import (
	"net/http"

	"github.com/dalemusser/stratawatch/internal/app/system/apicors"
	"github.com/dalemusser/stratawatch/internal/app/system/apistats"
	"github.com/dalemusser/stratawatch/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Routes returns a router with the ingestion endpoint at its root.
//
// It is mounted twice:
//   - POST /api/events
//   - POST /logs (path used by existing workstation agents)
//
// Authentication is via API key (Bearer token in Authorization header).
func Routes(h *Handler, apiKey string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(apicors.Middleware())
	r.Use(auth.APIKeyAuth(apiKey, logger))
	r.Use(apistats.Middleware("ingest"))

	r.Post("/", h.Create)

	return r
}
