// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// Values come from environment variables (STRATAWATCH_*), configuration
// files, or command-line flags, loaded in LoadConfig. WAFFLE's CoreConfig
// separately covers ports, TLS, logging, and CORS.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Maximum connections in pool (default: 100)
	MongoMinPoolSize uint64 // Minimum connections to keep warm (default: 10)

	// API key for Bearer authentication on every /api route and /logs.
	// Empty rejects all API requests.
	APIKey string

	// Origins allowed to call the read API from a browser. Empty allows any.
	CORSOrigins []string

	// RequestTimeout bounds every HTTP request (default: 30s).
	RequestTimeout time.Duration

	// Presence oracle
	PresenceURL     string        // Base URL of the presence service
	PresenceTimeout time.Duration // Per-query deadline (default: 5s)

	// Log store
	LogStore        string        // "mongo" (default) or "http"
	LogStoreURL     string        // Base URL of the remote log API (http only)
	LogStoreToken   string        // Bearer token for the remote log API
	LogStoreTimeout time.Duration // Per-call deadline (default: 5s)
	LogRetention    time.Duration // Delete Mongo events older than this; 0 keeps everything

	// Presence monitors
	PollInterval  time.Duration // Time between presence checks per user (default: 60s)
	WarningEvents bool          // Append a "warning" event on each disconnect

	// Anomaly classifier
	ModelPath     string        // Serialized forest (CBOR); wins over SamplesPath
	SamplesPath   string        // CSV of historical sessions to build a forest from
	Contamination float64       // Expected outlier share used for the threshold (default: 0.01)
	ForestTrees   int           // Trees per forest (default: 100)
	ForestSeed    int64         // RNG seed for building from samples
	SessionLength time.Duration // Assumed session length for login features (default: 1h)

	// Daily history snapshot
	HistoryEnabled bool          // Write history/YYYY-MM-DD.json on the first login each day
	HistoryWindow  time.Duration // Lookback of each snapshot (default: 720h)

	// User directory seeding
	BindingsSeedPath      string // YAML file of user bindings loaded at startup
	BindingsSeedOverwrite bool   // Replace existing bindings with the file's values

	// File storage configuration (history snapshots)
	StorageType      string // Storage backend: "local" or "s3"
	StorageLocalPath string // Local storage path (e.g., "./data")
	StorageLocalURL  string // URL prefix for local files

	// S3/CloudFront configuration (only used if StorageType is "s3")
	StorageS3Region    string // AWS region
	StorageS3Bucket    string // S3 bucket name
	StorageS3Prefix    string // Key prefix (e.g., "stratawatch/")
	StorageCFURL       string // CloudFront distribution URL
	StorageCFKeyPairID string // CloudFront key pair ID
	StorageCFKeyPath   string // Path to CloudFront private key file

	// Email/SMTP configuration for disconnect notifications
	MailSMTPHost string // SMTP server host (e.g., localhost for Mailpit)
	MailSMTPPort int    // SMTP server port (e.g., 1025 for Mailpit, 587 for SES)
	MailSMTPUser string // SMTP username
	MailSMTPPass string // SMTP password
	MailFrom     string // From email address
	MailFromName string // From display name

	NotifyTimeout time.Duration // Deadline for one disconnect notification (default: 30s)
}
