package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/stratawatch/internal/app/system/anomaly"
	"github.com/dalemusser/stratawatch/internal/app/system/monitor"
	"github.com/dalemusser/stratawatch/internal/domain/models"
	"github.com/dalemusser/stratawatch/internal/testutil"
	"go.uber.org/zap"
)

var (
	forestOnce sync.Once
	forest     *anomaly.Forest
)

func testForest(t *testing.T) *anomaly.Forest {
	t.Helper()
	forestOnce.Do(func() {
		samples, err := anomaly.TrainingVectors(testutil.SessionSamples(500))
		if err != nil {
			t.Fatalf("TrainingVectors() error = %v", err)
		}
		f, err := anomaly.Build(samples, anomaly.DefaultOptions())
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		forest = f
	})
	return forest
}

var aliceBinding = models.UserBinding{
	UserIdentity:       "alice",
	BoundDeviceID:      "A4-55-90-55-CC-03",
	NotificationTarget: "alice@example.com",
}

type env struct {
	svc       *Service
	registry  *monitor.Registry
	oracle    *testutil.StaticOracle
	notifier  *testutil.RecordingNotifier
	sink      *testutil.MemorySink
	directory *testutil.MemoryDirectory
	snapshots *recordingSnapshots
}

type recordingSnapshots struct {
	mu     sync.Mutex
	logins []time.Time
}

func (s *recordingSnapshots) ObserveLogin(at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logins = append(s.logins, at)
	return true
}

func (s *recordingSnapshots) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.logins)
}

func newEnv(t *testing.T, model anomaly.Model) *env {
	t.Helper()
	e := &env{
		oracle:    &testutil.StaticOracle{Present: true},
		notifier:  &testutil.RecordingNotifier{},
		sink:      &testutil.MemorySink{},
		directory: testutil.NewMemoryDirectory(aliceBinding),
		snapshots: &recordingSnapshots{},
	}
	e.registry = monitor.NewRegistry(e.oracle, e.notifier, monitor.Config{Interval: time.Hour}, zap.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = e.registry.Shutdown(ctx)
	})

	e.svc = NewService(Deps{
		Directory:  e.directory,
		Monitors:   e.registry,
		Oracle:     e.oracle,
		Classifier: anomaly.NewClassifier(model, zap.NewNop()),
		Sink:       e.sink,
		Snapshots:  e.snapshots,
	}, Config{}, zap.NewNop())
	return e
}

func TestHandle_TypicalLoginIsNormal(t *testing.T) {
	e := newEnv(t, testForest(t))

	res, err := e.svc.Handle(context.Background(), models.LogEvent{
		UserIdentity: "alice",
		Action:       models.ActionLogin,
		OccurredAt:   testutil.TypicalLogin(),
	})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if res.Anomaly {
		t.Error("typical login flagged as anomalous")
	}
	if res.Event.Details.BoundDeviceID != "a4:55:90:55:cc:03" || !res.Event.Details.IsPresent {
		t.Errorf("Details = %+v", res.Event.Details)
	}
	if e.registry.Len() != 1 {
		t.Errorf("registry has %d monitors, want 1", e.registry.Len())
	}
	if got := e.sink.Events(); len(got) != 1 || got[0].Action != models.ActionLogin {
		t.Errorf("stored events = %+v", got)
	}
	if e.snapshots.Count() != 1 {
		t.Errorf("snapshot observed %d logins, want 1", e.snapshots.Count())
	}
}

func TestHandle_ExcessiveFailedAttemptsIsAnomalous(t *testing.T) {
	e := newEnv(t, testForest(t))

	res, err := e.svc.Handle(context.Background(), models.LogEvent{
		UserIdentity:   "alice",
		Action:         models.ActionLogin,
		OccurredAt:     testutil.TypicalLogin(),
		FailedAttempts: 8,
	})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !res.Anomaly {
		t.Error("login with 8 failed attempts not flagged")
	}
	if stored := e.sink.Events(); len(stored) != 1 || !stored[0].Anomaly {
		t.Errorf("stored events = %+v", stored)
	}
}

func TestHandle_LoginAfterTrainingWindow(t *testing.T) {
	tests := []struct {
		name   string
		failed int
		want   bool
	}{
		{"no failures", 0, false},
		{"one failure", 1, false},
		{"8 failures", 8, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, testForest(t))

			res, err := e.svc.Handle(context.Background(), models.LogEvent{
				UserIdentity:   "alice",
				Action:         models.ActionLogin,
				OccurredAt:     testutil.LoginAfterSamples(),
				FailedAttempts: tt.failed,
			})
			if err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if res.Anomaly != tt.want {
				t.Errorf("Anomaly = %v, want %v", res.Anomaly, tt.want)
			}
			if stored := e.sink.Events(); len(stored) != 1 || stored[0].Anomaly != tt.want {
				t.Errorf("stored events = %+v", stored)
			}
		})
	}
}

func TestHandle_LogoutWithoutLogin(t *testing.T) {
	e := newEnv(t, testForest(t))
	e.oracle.Set(false, nil)

	res, err := e.svc.Handle(context.Background(), models.LogEvent{
		UserIdentity: "alice",
		Action:       models.ActionLogout,
		OccurredAt:   testutil.TypicalLogin(),
	})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if res.Event.Details.BoundDeviceID == "" || res.Event.Details.IsPresent {
		t.Errorf("Details = %+v", res.Event.Details)
	}
	if e.registry.Len() != 0 {
		t.Errorf("registry has %d monitors, want 0", e.registry.Len())
	}
	if e.snapshots.Count() != 0 {
		t.Error("logout should not trigger a history snapshot")
	}
}

func TestHandle_LoginThenLogoutStopsMonitor(t *testing.T) {
	e := newEnv(t, testForest(t))

	for _, action := range []models.Action{models.ActionLogin, models.ActionLogout} {
		if _, err := e.svc.Handle(context.Background(), models.LogEvent{UserIdentity: "alice", Action: action}); err != nil {
			t.Fatalf("Handle(%s) error = %v", action, err)
		}
	}
	if e.registry.Len() != 0 {
		t.Errorf("registry has %d monitors after logout, want 0", e.registry.Len())
	}
	if len(e.sink.Events()) != 2 {
		t.Errorf("stored %d events, want 2", len(e.sink.Events()))
	}
}

func TestHandle_ResolvesCanonicalIdentity(t *testing.T) {
	e := newEnv(t, testForest(t))

	res, err := e.svc.Handle(context.Background(), models.LogEvent{UserIdentity: " ALICE ", Action: models.ActionLogin})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if res.Event.UserIdentity != "alice" {
		t.Errorf("UserIdentity = %q, want canonical %q", res.Event.UserIdentity, "alice")
	}
	if res.Event.OccurredAt.IsZero() {
		t.Error("OccurredAt should default to now")
	}
}

type failingModel struct{}

func (failingModel) IsAnomaly([]float64) (bool, error) { return false, errors.New("model corrupt") }

func TestHandle_ClassifierFailOpen(t *testing.T) {
	e := newEnv(t, failingModel{})

	for _, failed := range []int{0, 8, 50} {
		res, err := e.svc.Handle(context.Background(), models.LogEvent{
			UserIdentity:   "alice",
			Action:         models.ActionLogin,
			FailedAttempts: failed,
		})
		if err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
		if res.Anomaly {
			t.Errorf("failedAttempts=%d: anomaly = true with a failing model", failed)
		}
	}
}

func TestHandle_OracleErrorRecordsAbsent(t *testing.T) {
	e := newEnv(t, nil)
	e.oracle.Set(true, errors.New("scanner offline"))

	res, err := e.svc.Handle(context.Background(), models.LogEvent{UserIdentity: "alice", Action: models.ActionLogout})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if res.Event.Details.IsPresent {
		t.Error("oracle error should record the device as absent")
	}
}

func TestHandle_Errors(t *testing.T) {
	tests := []struct {
		name  string
		ev    models.LogEvent
		setup func(*env)
		check func(error) bool
	}{
		{
			name:  "invalid action",
			ev:    models.LogEvent{UserIdentity: "alice", Action: "reboot"},
			check: func(err error) bool { return errors.Is(err, ErrInvalidAction) },
		},
		{
			name:  "warning not ingestible",
			ev:    models.LogEvent{UserIdentity: "alice", Action: models.ActionWarning},
			check: func(err error) bool { return errors.Is(err, ErrInvalidAction) },
		},
		{
			name:  "missing user",
			ev:    models.LogEvent{Action: models.ActionLogin},
			check: func(err error) bool { return errors.Is(err, ErrInvalidEvent) },
		},
		{
			name:  "negative failed attempts",
			ev:    models.LogEvent{UserIdentity: "alice", Action: models.ActionLogin, FailedAttempts: -1},
			check: func(err error) bool { return errors.Is(err, ErrInvalidEvent) },
		},
		{
			name: "unknown user",
			ev:   models.LogEvent{UserIdentity: "mallory", Action: models.ActionLogin},
			check: func(err error) bool {
				var uerr *UnknownUserError
				return errors.Is(err, ErrUnknownUser) && errors.As(err, &uerr) && uerr.User == "mallory"
			},
		},
		{
			name:  "directory failure",
			ev:    models.LogEvent{UserIdentity: "alice", Action: models.ActionLogin},
			setup: func(e *env) { e.directory.Err = errors.New("mongo down") },
			check: func(err error) bool { return err != nil && !errors.Is(err, ErrUnknownUser) },
		},
		{
			name:  "persistence failure",
			ev:    models.LogEvent{UserIdentity: "alice", Action: models.ActionLogout},
			setup: func(e *env) { e.sink.Err = errors.New("store down") },
			check: func(err error) bool {
				var perr *PersistenceError
				return errors.As(err, &perr)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, nil)
			if tt.setup != nil {
				tt.setup(e)
			}
			_, err := e.svc.Handle(context.Background(), tt.ev)
			if !tt.check(err) {
				t.Errorf("Handle() error = %v", err)
			}
		})
	}
}

func TestHandle_UnknownUserStartsNoMonitor(t *testing.T) {
	e := newEnv(t, nil)
	_, _ = e.svc.Handle(context.Background(), models.LogEvent{UserIdentity: "mallory", Action: models.ActionLogin})
	if e.registry.Len() != 0 {
		t.Errorf("registry has %d monitors, want 0", e.registry.Len())
	}
	if len(e.sink.Events()) != 0 {
		t.Error("unknown user event should not be stored")
	}
}

func TestHandle_RegistryClosed(t *testing.T) {
	e := newEnv(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = e.registry.Shutdown(ctx)

	_, err := e.svc.Handle(context.Background(), models.LogEvent{UserIdentity: "alice", Action: models.ActionLogin})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Handle() error = %v, want ErrUnavailable", err)
	}
}
