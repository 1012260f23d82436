// Package timeouts holds the deadlines applied to calls on external
// collaborators: the presence oracle, the log store and the notifier.
package timeouts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Defaults, used until Configure is called.
const (
	DefaultPing     = 2 * time.Second
	DefaultPresence = 5 * time.Second
	DefaultStore    = 5 * time.Second
	DefaultNotify   = 30 * time.Second
	DefaultBatch    = 60 * time.Second
)

var mu sync.RWMutex

var (
	ping     = DefaultPing
	presence = DefaultPresence
	store    = DefaultStore
	notify   = DefaultNotify
	batch    = DefaultBatch
)

// Ping returns the timeout for health checks.
func Ping() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return ping
}

// Presence returns the deadline for one presence oracle query.
func Presence() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return presence
}

// Store returns the deadline for a log store or directory call.
func Store() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return store
}

// Notify returns the deadline for delivering one notification.
func Notify() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return notify
}

// Batch returns the timeout for bulk work such as history snapshots and
// retention sweeps.
func Batch() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return batch
}

// Config holds timeout values. Zero fields keep their current value.
type Config struct {
	Ping     time.Duration
	Presence time.Duration
	Store    time.Duration
	Notify   time.Duration
	Batch    time.Duration
}

// Configure sets custom timeout values.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Ping > 0 {
		ping = cfg.Ping
	}
	if cfg.Presence > 0 {
		presence = cfg.Presence
	}
	if cfg.Store > 0 {
		store = cfg.Store
	}
	if cfg.Notify > 0 {
		notify = cfg.Notify
	}
	if cfg.Batch > 0 {
		batch = cfg.Batch
	}
}

// Reset restores all timeouts to defaults.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	ping = DefaultPing
	presence = DefaultPresence
	store = DefaultStore
	notify = DefaultNotify
	batch = DefaultBatch
}

// Current returns the current timeout configuration.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return Config{
		Ping:     ping,
		Presence: presence,
		Store:    store,
		Notify:   notify,
		Batch:    batch,
	}
}

// WithTimeout derives a context with timeout whose cancel func logs when
// the deadline was hit.
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
