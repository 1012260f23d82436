// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"

	healthfeature "github.com/dalemusser/stratawatch/internal/app/features/health"
	ingestfeature "github.com/dalemusser/stratawatch/internal/app/features/ingest"
	logsfeature "github.com/dalemusser/stratawatch/internal/app/features/logs"
	monitorsfeature "github.com/dalemusser/stratawatch/internal/app/features/monitors"
	"github.com/dalemusser/stratawatch/internal/app/system/jsonutil"
	"github.com/dalemusser/stratawatch/internal/app/system/metrics"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler.
//
// Routes:
//   - POST /api/events, POST /logs: event ingestion (API key)
//   - GET  /api/logs, /api/logs/users/{user}: stored events (API key)
//   - GET  /api/monitors: running presence monitors (API key)
//   - GET  /health, /ready, /readyz, /livez: probes
//   - GET  /metrics: Prometheus
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	if rt == nil {
		return nil, errors.New("bootstrap: Startup has not run")
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Timeout(appCfg.RequestTimeout))
	r.Use(middleware.CORSFromConfig(coreCfg))
	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))

	// Probes and metrics (no auth)
	healthHandler := healthfeature.NewHandler(deps.MongoClient, rt.registry, rt.classifier, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	healthfeature.MountRootEndpoints(r, healthHandler)
	r.Handle("/metrics", metrics.Handler())

	// Event ingestion. /logs is the path existing workstation agents post to.
	ingestHandler := ingestfeature.NewHandler(rt.service, logger)
	r.Mount("/api/events", ingestfeature.Routes(ingestHandler, appCfg.APIKey, logger))
	r.Mount("/logs", ingestfeature.Routes(ingestHandler, appCfg.APIKey, logger))

	// Read API
	var byUser logsfeature.UserHistory
	if rt.mongoLogs != nil {
		byUser = rt.mongoLogs
	}
	logsHandler := logsfeature.NewHandler(rt.sink, byUser, logger)
	r.Mount("/api/logs", logsfeature.Routes(logsHandler, appCfg.APIKey, appCfg.CORSOrigins, logger))

	monitorsHandler := monitorsfeature.NewHandler(rt.registry)
	r.Mount("/api/monitors", monitorsfeature.Routes(monitorsHandler, appCfg.APIKey, appCfg.CORSOrigins, logger))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		jsonutil.NotFound(w, "not found")
	})

	return r, nil
}
