package monitor

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dalemusser/stratawatch/internal/app/system/metrics"
	"github.com/dalemusser/stratawatch/internal/app/system/presence"
	"github.com/dalemusser/stratawatch/internal/app/system/timeouts"
	"github.com/dalemusser/stratawatch/internal/domain/models"
	"go.uber.org/zap"
)

// ErrClosed is returned by Start after Shutdown.
var ErrClosed = errors.New("monitor: registry is shut down")

// DefaultInterval is the poll interval used when Config.Interval is zero.
const DefaultInterval = 60 * time.Second

// Config tunes the monitors started by a Registry.
type Config struct {
	Interval      time.Duration
	OracleTimeout time.Duration
	NotifyTimeout time.Duration
	SinkTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.OracleTimeout <= 0 {
		c.OracleTimeout = timeouts.Presence()
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = timeouts.Notify()
	}
	if c.SinkTimeout <= 0 {
		c.SinkTimeout = timeouts.Store()
	}
	return c
}

// Snapshot describes one running monitor.
type Snapshot struct {
	User      string    `json:"user"`
	Device    string    `json:"device"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"started_at"`
}

// Registry owns the monitors, at most one per user identity.
//
// Start and Stop for the same user are serialized by a per-user lock; mu
// guards only the maps and is never held while waiting on a monitor.
type Registry struct {
	oracle   presence.Oracle
	notifier Notifier
	warnings WarningSink
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	handles map[string]*handle
	keys    map[string]*keyLock
	closed  bool

	notifyWG sync.WaitGroup
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures a Registry.
type Option func(*Registry)

// WithWarningSink records a warning log event for every disconnect.
func WithWarningSink(s WarningSink) Option {
	return func(r *Registry) { r.warnings = s }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty registry.
func NewRegistry(oracle presence.Oracle, notifier Notifier, cfg Config, logger *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		oracle:   oracle,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		now:      time.Now,
		handles:  make(map[string]*handle),
		keys:     make(map[string]*keyLock),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// lockKey serializes Start and Stop for user. The returned func releases it.
func (r *Registry) lockKey(user string) func() {
	r.mu.Lock()
	kl := r.keys[user]
	if kl == nil {
		kl = &keyLock{}
		r.keys[user] = kl
	}
	kl.refs++
	r.mu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		r.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(r.keys, user)
		}
		r.mu.Unlock()
	}
}

// Start replaces any monitor for b.UserIdentity with a new one watching
// b.BoundDeviceID. It returns only after the previous monitor has exited.
// The new monitor always begins in Connected.
func (r *Registry) Start(b models.UserBinding) error {
	unlock := r.lockKey(b.UserIdentity)
	defer unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	old := r.handles[b.UserIdentity]
	r.mu.Unlock()

	if old != nil {
		old.stop()
		r.remove(old)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &handle{
		user:      b.UserIdentity,
		device:    presence.NormalizeDeviceID(b.BoundDeviceID),
		target:    b.NotificationTarget,
		startedAt: r.now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		cancel()
		return ErrClosed
	}
	r.handles[h.user] = h
	metrics.ActiveMonitors.Set(float64(len(r.handles)))
	r.mu.Unlock()

	go r.run(ctx, h)
	return nil
}

// Stop cancels the monitor for user and waits for it to exit. It is a
// no-op if no monitor is running.
func (r *Registry) Stop(user string) {
	unlock := r.lockKey(user)
	defer unlock()

	r.mu.Lock()
	h := r.handles[user]
	r.mu.Unlock()
	if h == nil {
		return
	}
	h.stop()
	r.remove(h)
}

func (r *Registry) remove(h *handle) {
	r.mu.Lock()
	if r.handles[h.user] == h {
		delete(r.handles, h.user)
	}
	metrics.ActiveMonitors.Set(float64(len(r.handles)))
	r.mu.Unlock()
}

// Len returns the number of running monitors.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Active lists the running monitors ordered by user.
func (r *Registry) Active() []Snapshot {
	r.mu.Lock()
	out := make([]Snapshot, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, Snapshot{
			User:      h.user,
			Device:    h.device,
			State:     h.State().String(),
			StartedAt: h.startedAt,
		})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].User < out[j].User })
	return out
}

// Shutdown stops every monitor and waits for them and any in-flight
// notifications, or until ctx is done. Start fails with ErrClosed afterwards.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	hs := make([]*handle, 0, len(r.handles))
	for _, h := range r.handles {
		hs = append(hs, h)
	}
	r.mu.Unlock()

	for _, h := range hs {
		h.cancel()
	}

	done := make(chan struct{})
	go func() {
		for _, h := range hs {
			<-h.done
			r.remove(h)
		}
		r.notifyWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("presence monitors stopped", zap.Int("count", len(hs)))
		return nil
	case <-ctx.Done():
		r.logger.Warn("timed out waiting for presence monitors", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}
