// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/stratawatch/internal/app/features/ingest"
	authlogstore "github.com/dalemusser/stratawatch/internal/app/store/authlogs"
	bindingstore "github.com/dalemusser/stratawatch/internal/app/store/bindings"
	"github.com/dalemusser/stratawatch/internal/app/system/anomaly"
	"github.com/dalemusser/stratawatch/internal/app/system/history"
	"github.com/dalemusser/stratawatch/internal/app/system/logsink"
	"github.com/dalemusser/stratawatch/internal/app/system/monitor"
	"github.com/dalemusser/stratawatch/internal/app/system/presence"
	"github.com/dalemusser/stratawatch/internal/app/system/tasks"
	"github.com/dalemusser/stratawatch/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// runtime holds the long-lived components built in Startup and used by
// BuildHandler and Shutdown.
type runtime struct {
	classifier  *anomaly.Classifier
	sink        logsink.Sink
	mongoLogs   *authlogstore.Store // nil when log_store is "http"
	registry    *monitor.Registry
	snapshotter *history.Snapshotter // nil when history is disabled
	service     *ingest.Service
	runner      *tasks.Runner
}

// rt is the process-wide runtime, set by Startup.
var rt *runtime

// Startup builds the classifier, log sink, monitor registry, history
// snapshotter and ingestion service, then starts the background jobs.
//
// It runs once after ConnectDB and EnsureSchema and before BuildHandler.
// Returning an error aborts startup.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Presence: appCfg.PresenceTimeout,
		Store:    appCfg.LogStoreTimeout,
		Notify:   appCfg.NotifyTimeout,
	})

	r := &runtime{}
	r.classifier = anomaly.NewClassifier(loadModel(appCfg, logger), logger)

	var err error
	r.sink, r.mongoLogs, err = buildSink(appCfg, deps, logger)
	if err != nil {
		return err
	}

	oracle := presence.NewHTTPOracle(presence.HTTPConfig{
		BaseURL: appCfg.PresenceURL,
		Timeout: appCfg.PresenceTimeout,
	}, logger)

	var regOpts []monitor.Option
	if appCfg.WarningEvents {
		regOpts = append(regOpts, monitor.WithWarningSink(r.sink))
	}
	r.registry = monitor.NewRegistry(oracle, deps.Mailer, monitor.Config{
		Interval:      appCfg.PollInterval,
		OracleTimeout: appCfg.PresenceTimeout,
		NotifyTimeout: appCfg.NotifyTimeout,
		SinkTimeout:   appCfg.LogStoreTimeout,
	}, logger, regOpts...)

	svcDeps := ingest.Deps{
		Directory:  bindingstore.New(deps.MongoDatabase),
		Monitors:   r.registry,
		Oracle:     oracle,
		Classifier: r.classifier,
		Sink:       r.sink,
	}
	if appCfg.HistoryEnabled {
		r.snapshotter = history.New(r.sink, deps.FileStorage, appCfg.HistoryWindow, logger)
		svcDeps.Snapshots = r.snapshotter
	}
	r.service = ingest.NewService(svcDeps, ingest.Config{
		SessionLength: appCfg.SessionLength,
		OracleTimeout: appCfg.PresenceTimeout,
		StoreTimeout:  appCfg.LogStoreTimeout,
	}, logger)

	r.runner = tasks.New(logger)
	if r.mongoLogs != nil && appCfg.LogRetention > 0 {
		job := tasks.LogRetentionJob(r.mongoLogs, appCfg.LogRetention, logger)
		job.Timeout = timeouts.Batch()
		r.runner.Register(job)
	}
	r.runner.Start()

	rt = r
	logger.Info("stratawatch started",
		zap.String("log_store", appCfg.LogStore),
		zap.Bool("classifier", r.classifier.Available()),
		zap.Duration("poll_interval", appCfg.PollInterval),
		zap.Bool("history", appCfg.HistoryEnabled))
	return nil
}

// loadModel resolves the anomaly model. Any failure leaves the classifier
// without a model, so every session is treated as normal.
func loadModel(appCfg AppConfig, logger *zap.Logger) *anomaly.Forest {
	opts := anomaly.DefaultOptions()
	opts.Contamination = appCfg.Contamination
	if appCfg.ForestTrees > 0 {
		opts.Trees = appCfg.ForestTrees
	}
	opts.Seed = appCfg.ForestSeed

	forest, err := anomaly.Open(appCfg.ModelPath, appCfg.SamplesPath, opts)
	switch {
	case errors.Is(err, anomaly.ErrNoModel):
		logger.Warn("no anomaly model configured (model_path and samples_path are empty)")
		return nil
	case err != nil:
		logger.Error("failed to load anomaly model; anomaly detection disabled",
			zap.String("model_path", appCfg.ModelPath),
			zap.String("samples_path", appCfg.SamplesPath),
			zap.Error(err))
		return nil
	}
	logger.Info("anomaly model loaded",
		zap.String("model_path", appCfg.ModelPath),
		zap.String("samples_path", appCfg.SamplesPath))
	return forest
}

// buildSink returns the configured log store wrapped with latency metrics.
// The Mongo store is also returned so retention and per-user reads can use it.
func buildSink(appCfg AppConfig, deps DBDeps, logger *zap.Logger) (logsink.Sink, *authlogstore.Store, error) {
	switch appCfg.LogStore {
	case LogStoreMongo, "":
		store := authlogstore.New(deps.MongoDatabase)
		return logsink.Instrument(LogStoreMongo, store), store, nil
	case LogStoreHTTP:
		remote := logsink.NewHTTPSink(logsink.HTTPConfig{
			BaseURL: appCfg.LogStoreURL,
			Token:   appCfg.LogStoreToken,
			Timeout: appCfg.LogStoreTimeout,
		}, logger)
		return logsink.Instrument(LogStoreHTTP, remote), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown log_store %q", appCfg.LogStore)
	}
}
