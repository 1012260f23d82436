// internal/app/bootstrap/hooks.go
package bootstrap

import (
	"github.com/dalemusser/waffle/app"
)

// Hooks wires this app into the WAFFLE lifecycle. app.Run calls them in
// order, from configuration loading through graceful shutdown.
var Hooks = app.Hooks[AppConfig, DBDeps]{
	Name:           "stratawatch",
	LoadConfig:     LoadConfig,     // load core + app config
	ValidateConfig: ValidateConfig, // URIs, log store kind, intervals, contamination
	ConnectDB:      ConnectDB,      // MongoDB, file storage, mailer
	EnsureSchema:   EnsureSchema,   // validators, indexes, binding seed
	Startup:        Startup,        // classifier, registry, ingest service, jobs
	BuildHandler:   BuildHandler,   // HTTP router + middleware stack
	Shutdown:       Shutdown,       // stop monitors and jobs, disconnect MongoDB
}
