// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/stratawatch/internal/app/system/history"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// EnvVarPrefix is the prefix for environment variables.
const EnvVarPrefix = "STRATAWATCH"

// Log store backends.
const (
	LogStoreMongo = "mongo"
	LogStoreHTTP  = "http"
)

// appConfigKeys defines the configuration keys for this application.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, presence_url, etc.
//   - Environment variables: STRATAWATCH_MONGO_URI, STRATAWATCH_PRESENCE_URL, etc.
//   - Command-line flags: --mongo_uri, --presence_url, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "stratawatch", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	{Name: "api_key", Default: "", Desc: "Bearer API key for /api routes (empty rejects all API requests)"},
	{Name: "cors_origins", Default: "", Desc: "Comma-separated origins allowed to call the read API (empty allows any)"},
	{Name: "request_timeout", Default: "30s", Desc: "Per-request HTTP timeout"},

	// Presence oracle
	{Name: "presence_url", Default: "http://localhost:4100", Desc: "Base URL of the presence service"},
	{Name: "presence_timeout", Default: "5s", Desc: "Presence query timeout"},

	// Log store
	{Name: "log_store", Default: LogStoreMongo, Desc: "Log store backend: 'mongo' or 'http'"},
	{Name: "log_store_url", Default: "", Desc: "Base URL of the remote log API (log_store=http)"},
	{Name: "log_store_token", Default: "", Desc: "Bearer token for the remote log API"},
	{Name: "log_store_timeout", Default: "5s", Desc: "Log store call timeout"},
	{Name: "log_retention", Default: "0s", Desc: "Delete Mongo log events older than this (0 keeps everything)"},

	// Presence monitors
	{Name: "poll_interval", Default: "60s", Desc: "Presence check interval per logged-in user"},
	{Name: "warning_events", Default: true, Desc: "Store a 'warning' event when a bound device disconnects"},

	// Anomaly classifier
	{Name: "model_path", Default: "", Desc: "Serialized anomaly model (CBOR)"},
	{Name: "samples_path", Default: "", Desc: "CSV of historical sessions (login_time,logout_time,failed_attempts)"},
	{Name: "contamination", Default: "0.01", Desc: "Expected share of anomalous sessions, in (0, 0.5)"},
	{Name: "forest_trees", Default: 100, Desc: "Isolation trees built from samples"},
	{Name: "forest_seed", Default: 1, Desc: "RNG seed for building the forest from samples"},
	{Name: "session_length", Default: "1h", Desc: "Assumed session length for the logout feature of a login"},

	// Daily history snapshot
	{Name: "history_enabled", Default: true, Desc: "Write a daily history snapshot to file storage"},
	{Name: "history_window", Default: "720h", Desc: "Lookback of each history snapshot"},

	// User directory seeding
	{Name: "bindings_seed_path", Default: "", Desc: "YAML file of user bindings loaded at startup"},
	{Name: "bindings_seed_overwrite", Default: false, Desc: "Replace existing bindings with the seed file's values"},

	// File storage configuration
	{Name: "storage_type", Default: "local", Desc: "Storage backend: 'local' or 's3'"},
	{Name: "storage_local_path", Default: "./data", Desc: "Local storage path for history snapshots"},
	{Name: "storage_local_url", Default: "/files", Desc: "URL prefix for local files"},

	// S3/CloudFront configuration
	{Name: "storage_s3_region", Default: "", Desc: "AWS region for S3"},
	{Name: "storage_s3_bucket", Default: "", Desc: "S3 bucket name"},
	{Name: "storage_s3_prefix", Default: "stratawatch/", Desc: "S3 key prefix"},
	{Name: "storage_cf_url", Default: "", Desc: "CloudFront distribution URL"},
	{Name: "storage_cf_keypair_id", Default: "", Desc: "CloudFront key pair ID"},
	{Name: "storage_cf_key_path", Default: "", Desc: "Path to CloudFront private key file"},

	// Email/SMTP configuration
	{Name: "mail_smtp_host", Default: "localhost", Desc: "SMTP server host"},
	{Name: "mail_smtp_port", Default: 1025, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "noreply@example.com", Desc: "From email address"},
	{Name: "mail_from_name", Default: "System Log AI Team", Desc: "From display name"},
	{Name: "notify_timeout", Default: "30s", Desc: "Disconnect notification timeout"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges .env files, config files,
// WAFFLE_* / STRATAWATCH_* environment variables and flags with precedence
// flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, EnvVarPrefix, appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	contamination, err := strconv.ParseFloat(strings.TrimSpace(appValues.String("contamination")), 64)
	if err != nil {
		return nil, AppConfig{}, fmt.Errorf("invalid contamination: %w", err)
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		APIKey:         appValues.String("api_key"),
		CORSOrigins:    splitList(appValues.String("cors_origins")),
		RequestTimeout: appValues.Duration("request_timeout", 30*time.Second),

		// Presence oracle
		PresenceURL:     appValues.String("presence_url"),
		PresenceTimeout: appValues.Duration("presence_timeout", 5*time.Second),

		// Log store
		LogStore:        strings.ToLower(strings.TrimSpace(appValues.String("log_store"))),
		LogStoreURL:     appValues.String("log_store_url"),
		LogStoreToken:   appValues.String("log_store_token"),
		LogStoreTimeout: appValues.Duration("log_store_timeout", 5*time.Second),
		LogRetention:    appValues.Duration("log_retention", 0),

		// Monitors
		PollInterval:  appValues.Duration("poll_interval", 60*time.Second),
		WarningEvents: appValues.Bool("warning_events"),

		// Classifier
		ModelPath:     appValues.String("model_path"),
		SamplesPath:   appValues.String("samples_path"),
		Contamination: contamination,
		ForestTrees:   appValues.Int("forest_trees"),
		ForestSeed:    int64(appValues.Int("forest_seed")),
		SessionLength: appValues.Duration("session_length", time.Hour),

		// History
		HistoryEnabled: appValues.Bool("history_enabled"),
		HistoryWindow:  appValues.Duration("history_window", history.DefaultWindow),

		// Seeding
		BindingsSeedPath:      appValues.String("bindings_seed_path"),
		BindingsSeedOverwrite: appValues.Bool("bindings_seed_overwrite"),

		// File storage
		StorageType:      appValues.String("storage_type"),
		StorageLocalPath: appValues.String("storage_local_path"),
		StorageLocalURL:  appValues.String("storage_local_url"),

		// S3/CloudFront
		StorageS3Region:    appValues.String("storage_s3_region"),
		StorageS3Bucket:    appValues.String("storage_s3_bucket"),
		StorageS3Prefix:    appValues.String("storage_s3_prefix"),
		StorageCFURL:       appValues.String("storage_cf_url"),
		StorageCFKeyPairID: appValues.String("storage_cf_keypair_id"),
		StorageCFKeyPath:   appValues.String("storage_cf_key_path"),

		// Email/SMTP
		MailSMTPHost:  appValues.String("mail_smtp_host"),
		MailSMTPPort:  appValues.Int("mail_smtp_port"),
		MailSMTPUser:  appValues.String("mail_smtp_user"),
		MailSMTPPass:  appValues.String("mail_smtp_pass"),
		MailFrom:      appValues.String("mail_from"),
		MailFromName:  appValues.String("mail_from_name"),
		NotifyTimeout: appValues.Duration("notify_timeout", 30*time.Second),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation. A non-nil error
// aborts startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if err := validateApp(appCfg); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return err
	}
	if appCfg.APIKey == "" {
		logger.Warn("api_key is empty; every API request will be rejected")
	}
	return nil
}

// validateApp checks the settings that do not need a logger or the core
// config.
func validateApp(c AppConfig) error {
	if err := validateBaseURL("presence_url", c.PresenceURL); err != nil {
		return err
	}

	switch c.LogStore {
	case LogStoreMongo, "":
	case LogStoreHTTP:
		if err := validateBaseURL("log_store_url", c.LogStoreURL); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown log_store %q (want %q or %q)", c.LogStore, LogStoreMongo, LogStoreHTTP)
	}

	switch c.StorageType {
	case "local", "", "s3":
	default:
		return fmt.Errorf("unknown storage_type %q", c.StorageType)
	}

	for name, d := range map[string]time.Duration{
		"poll_interval":   c.PollInterval,
		"session_length":  c.SessionLength,
		"request_timeout": c.RequestTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.LogRetention < 0 {
		return fmt.Errorf("log_retention must not be negative, got %s", c.LogRetention)
	}
	if c.Contamination <= 0 || c.Contamination >= 0.5 {
		return fmt.Errorf("contamination must be in (0, 0.5), got %g", c.Contamination)
	}
	return nil
}

func validateBaseURL(key, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", key)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid %s %q: want an absolute http(s) URL", key, raw)
	}
	return nil
}

// splitList splits a comma-separated config value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
