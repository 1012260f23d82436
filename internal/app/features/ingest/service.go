// Package ingest accepts login and logout events from workstations.
//
// Each event is resolved against the user directory, drives the user's
// presence monitor (start on login, stop on logout), is enriched with a
// single presence reading and a fail-open anomaly verdict, then appended to
// the log store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/stratawatch/internal/app/system/anomaly"
	"github.com/dalemusser/stratawatch/internal/app/system/logsink"
	"github.com/dalemusser/stratawatch/internal/app/system/metrics"
	"github.com/dalemusser/stratawatch/internal/app/system/monitor"
	"github.com/dalemusser/stratawatch/internal/app/system/normalize"
	"github.com/dalemusser/stratawatch/internal/app/system/presence"
	"github.com/dalemusser/stratawatch/internal/app/system/timeouts"
	"github.com/dalemusser/stratawatch/internal/domain/models"
	"go.uber.org/zap"
)

var (
	// ErrUnknownUser matches every *UnknownUserError.
	ErrUnknownUser = errors.New("unknown user")
	// ErrInvalidAction is returned for actions other than login and logout.
	ErrInvalidAction = errors.New("invalid action")
	// ErrInvalidEvent is returned for events missing required fields.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrUnavailable is returned when the monitor registry is shut down.
	ErrUnavailable = errors.New("service shutting down")
)

// UnknownUserError reports a user identity with no directory binding.
type UnknownUserError struct {
	User string
}

func (e *UnknownUserError) Error() string {
	return fmt.Sprintf("unknown user %q", e.User)
}

// Is makes errors.Is(err, ErrUnknownUser) true.
func (e *UnknownUserError) Is(target error) bool {
	return target == ErrUnknownUser
}

// PersistenceError wraps a log store failure. The event was not stored.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return "persist event: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Directory resolves user bindings. A miss is models.ErrBindingNotFound.
type Directory interface {
	GetByUserIdentity(ctx context.Context, user string) (models.UserBinding, error)
}

// Monitors is the presence monitor registry.
type Monitors interface {
	Start(b models.UserBinding) error
	Stop(user string)
}

// Classifier yields anomaly verdicts. It must not fail.
type Classifier interface {
	Predict(ctx context.Context, f anomaly.Features) bool
}

// Snapshots is notified of logins so it can take the daily history snapshot.
type Snapshots interface {
	ObserveLogin(at time.Time) bool
}

// DefaultSessionLength is the assumed session length used to derive the
// logout feature of a login.
const DefaultSessionLength = time.Hour

// Deps are the collaborators of a Service. Snapshots may be nil.
type Deps struct {
	Directory  Directory
	Monitors   Monitors
	Oracle     presence.Oracle
	Classifier Classifier
	Sink       logsink.Sink
	Snapshots  Snapshots
}

// Config tunes a Service. Zero values use defaults.
type Config struct {
	SessionLength time.Duration
	OracleTimeout time.Duration
	StoreTimeout  time.Duration
}

// Result is the outcome of ingesting one event.
type Result struct {
	Anomaly bool
	Event   models.LogEvent
}

// Service processes ingested events.
type Service struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a Service.
func NewService(deps Deps, cfg Config, logger *zap.Logger) *Service {
	if cfg.SessionLength <= 0 {
		cfg.SessionLength = DefaultSessionLength
	}
	if cfg.OracleTimeout <= 0 {
		cfg.OracleTimeout = timeouts.Presence()
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = timeouts.Store()
	}
	return &Service{deps: deps, cfg: cfg, logger: logger, now: time.Now}
}

// Handle ingests ev. On login it returns only after any previous monitor for
// the user has stopped and a new one has started; on logout the monitor is
// stopped before the event is stored.
func (s *Service) Handle(ctx context.Context, ev models.LogEvent) (Result, error) {
	ev.UserIdentity = normalize.UserIdentity(ev.UserIdentity)
	if err := validate(ev); err != nil {
		metrics.EventsIngested.WithLabelValues(string(ev.Action), "rejected").Inc()
		return Result{}, err
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = s.now()
	}
	log := s.logger.With(zap.String("user", ev.UserIdentity), zap.String("action", string(ev.Action)))

	binding, err := s.resolve(ctx, ev.UserIdentity)
	if err != nil {
		outcome := "directory_error"
		if errors.Is(err, ErrUnknownUser) {
			outcome = "unknown_user"
		}
		metrics.EventsIngested.WithLabelValues(string(ev.Action), outcome).Inc()
		return Result{}, err
	}
	ev.UserIdentity = binding.UserIdentity

	switch ev.Action {
	case models.ActionLogin:
		if err := s.deps.Monitors.Start(binding); err != nil {
			metrics.EventsIngested.WithLabelValues(string(ev.Action), "unavailable").Inc()
			if errors.Is(err, monitor.ErrClosed) {
				return Result{}, ErrUnavailable
			}
			return Result{}, fmt.Errorf("start monitor: %w", err)
		}
	case models.ActionLogout:
		s.deps.Monitors.Stop(binding.UserIdentity)
	}

	device := presence.NormalizeDeviceID(binding.BoundDeviceID)
	ev.Details = models.PresenceDetails{
		BoundDeviceID: device,
		IsPresent:     s.present(ctx, device, log),
	}

	features := anomaly.SessionFeatures(ev.OccurredAt, s.cfg.SessionLength, ev.FailedAttempts)
	ev.Anomaly = s.deps.Classifier.Predict(ctx, features)

	if ev.Action == models.ActionLogin && s.deps.Snapshots != nil {
		s.deps.Snapshots.ObserveLogin(ev.OccurredAt)
	}

	sctx, cancel := timeouts.WithTimeout(ctx, s.cfg.StoreTimeout, log, "append event")
	err = s.deps.Sink.Append(sctx, ev)
	cancel()
	if err != nil {
		metrics.EventsIngested.WithLabelValues(string(ev.Action), "persist_failed").Inc()
		log.Error("failed to persist event", zap.Error(err))
		return Result{}, &PersistenceError{Err: err}
	}

	metrics.EventsIngested.WithLabelValues(string(ev.Action), "stored").Inc()
	log.Info("event ingested",
		zap.Bool("anomaly", ev.Anomaly),
		zap.Bool("present", ev.Details.IsPresent),
		zap.Int("failed_attempts", ev.FailedAttempts))
	return Result{Anomaly: ev.Anomaly, Event: ev}, nil
}

func validate(ev models.LogEvent) error {
	if !ev.Action.IsIngestible() {
		return fmt.Errorf("%w: %q", ErrInvalidAction, ev.Action)
	}
	if ev.UserIdentity == "" {
		return fmt.Errorf("%w: user identity is required", ErrInvalidEvent)
	}
	if ev.FailedAttempts < 0 {
		return fmt.Errorf("%w: failed attempts must not be negative", ErrInvalidEvent)
	}
	return nil
}

func (s *Service) resolve(ctx context.Context, user string) (models.UserBinding, error) {
	dctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	b, err := s.deps.Directory.GetByUserIdentity(dctx, user)
	if errors.Is(err, models.ErrBindingNotFound) {
		return models.UserBinding{}, &UnknownUserError{User: user}
	}
	if err != nil {
		return models.UserBinding{}, fmt.Errorf("resolve user binding: %w", err)
	}
	return b, nil
}

// present queries the oracle once. Any failure reads as absent.
func (s *Service) present(ctx context.Context, device string, log *zap.Logger) bool {
	octx, cancel := timeouts.WithTimeout(ctx, s.cfg.OracleTimeout, log, "presence query")
	defer cancel()

	ok, err := s.deps.Oracle.IsPresent(octx, device)
	switch {
	case err != nil:
		metrics.OracleQueries.WithLabelValues("ingest", "error").Inc()
		log.Warn("presence query failed; recording device as absent", zap.Error(err))
		return false
	case ok:
		metrics.OracleQueries.WithLabelValues("ingest", "present").Inc()
	default:
		metrics.OracleQueries.WithLabelValues("ingest", "absent").Inc()
	}
	return ok
}
