// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown runs after the HTTP server has stopped accepting requests.
//
// Monitors go first so no new notifications or warning events start, then
// in-flight history snapshots and background jobs, then MongoDB. All steps
// share ctx's deadline; the first error is returned after every step ran.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	var firstErr error
	keep := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	if rt != nil {
		logger.Info("stopping presence monitors", zap.Int("active", rt.registry.Len()))
		if err := rt.registry.Shutdown(ctx); err != nil {
			logger.Warn("presence monitors did not stop cleanly", zap.Error(err))
			keep(err)
		}

		if rt.snapshotter != nil {
			if err := rt.snapshotter.Wait(ctx); err != nil {
				logger.Warn("history snapshot still running at shutdown", zap.Error(err))
				keep(err)
			}
		}

		logger.Info("stopping background task runner")
		if err := rt.runner.Stop(ctx); err != nil {
			logger.Warn("background task runner did not stop cleanly", zap.Error(err))
			keep(err)
		}
	}

	if deps.MongoClient != nil {
		logger.Info("disconnecting MongoDB client")
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			keep(err)
		}
	}

	return firstErr
}
