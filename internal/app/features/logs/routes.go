package logs

import (
	"net/http"

	"github.com/dalemusser/stratawatch/internal/app/system/apicors"
	"github.com/dalemusser/stratawatch/internal/app/system/apistats"
	"github.com/dalemusser/stratawatch/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Routes mounts the read API, normally at /api/logs. The per-user route is
// only present when the handler has a UserHistory.
func Routes(h *Handler, apiKey string, origins []string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(apicors.MiddlewareWithOrigins(origins...))
	r.Use(auth.APIKeyAuth(apiKey, logger))
	r.Use(apistats.Middleware("logs"))

	r.Get("/", h.List)
	if h.byUser != nil {
		r.Get("/users/{user}", h.ByUser)
	}

	return r
}
