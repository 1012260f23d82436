package bootstrap

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func validAppConfig() AppConfig {
	return AppConfig{
		MongoURI:       "mongodb://localhost:27017",
		PresenceURL:    "http://localhost:4100",
		LogStore:       LogStoreMongo,
		StorageType:    "local",
		RequestTimeout: 30 * time.Second,
		PollInterval:   time.Minute,
		SessionLength:  time.Hour,
		Contamination:  0.01,
	}
}

func TestValidateApp(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{"valid", func(*AppConfig) {}, ""},
		{"http log store", func(c *AppConfig) {
			c.LogStore = LogStoreHTTP
			c.LogStoreURL = "https://logs.example.com/api/logs"
		}, ""},
		{"http log store without url", func(c *AppConfig) { c.LogStore = LogStoreHTTP }, "log_store_url is required"},
		{"unknown log store", func(c *AppConfig) { c.LogStore = "kafka" }, "unknown log_store"},
		{"missing presence url", func(c *AppConfig) { c.PresenceURL = "" }, "presence_url is required"},
		{"relative presence url", func(c *AppConfig) { c.PresenceURL = "localhost:4100/x" }, "invalid presence_url"},
		{"unknown storage", func(c *AppConfig) { c.StorageType = "ftp" }, "unknown storage_type"},
		{"zero poll interval", func(c *AppConfig) { c.PollInterval = 0 }, "poll_interval must be positive"},
		{"negative session length", func(c *AppConfig) { c.SessionLength = -time.Hour }, "session_length must be positive"},
		{"zero request timeout", func(c *AppConfig) { c.RequestTimeout = 0 }, "request_timeout must be positive"},
		{"negative retention", func(c *AppConfig) { c.LogRetention = -time.Hour }, "log_retention"},
		{"zero contamination", func(c *AppConfig) { c.Contamination = 0 }, "contamination"},
		{"contamination too high", func(c *AppConfig) { c.Contamination = 0.5 }, "contamination"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validAppConfig()
			tt.mutate(&cfg)
			err := validateApp(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("validateApp() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("validateApp() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" https://a.example.com, ,https://b.example.com,")
	want := []string{"https://a.example.com", "https://b.example.com"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitList() = %v, want %v", got, want)
	}
	if splitList("") != nil {
		t.Error("splitList(\"\") should be nil")
	}
}

func TestLoadModel_FailsOpen(t *testing.T) {
	cfg := validAppConfig()
	if f := loadModel(cfg, zap.NewNop()); f != nil {
		t.Error("loadModel() without paths should return nil")
	}

	cfg.ModelPath = filepath.Join(t.TempDir(), "missing.cbor")
	if f := loadModel(cfg, zap.NewNop()); f != nil {
		t.Error("loadModel() with an unreadable model should return nil")
	}
}
