// Package anomaly flags authentication sessions that fall outside the
// historical distribution of (login time, logout time, failed attempts).
//
// Sessions are compared by time of day, duration and failed attempts, so a
// login later than every historical sample is judged by its shape and not
// by how far it lies past the training window.
//
// The model is an isolation forest, either loaded from a serialized file or
// built once at startup from historical samples. It is read-only afterwards.
//
// Classifier wraps the model with a fail-open contract: if the model is
// missing or scoring fails for any reason, Predict returns false and logs
// the condition, so a broken model never blocks ingestion or raises false
// alarms.
package anomaly

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dalemusser/stratawatch/internal/app/system/metrics"
	"go.uber.org/zap"
)

// ErrNoModel is returned when no model has been loaded.
var ErrNoModel = errors.New("anomaly: no model loaded")

// Features are the per-session inputs the model was trained on.
// Timestamps are Unix seconds.
type Features struct {
	LoginTs        float64
	LogoutTs       float64
	FailedAttempts float64
}

// SessionFeatures builds Features for a session that started at login and
// is assumed to last sessionLength.
func SessionFeatures(login time.Time, sessionLength time.Duration, failedAttempts int) Features {
	loginTs := float64(login.Unix())
	return Features{
		LoginTs:        loginTs,
		LogoutTs:       loginTs + sessionLength.Seconds(),
		FailedAttempts: float64(failedAttempts),
	}
}

const secondsPerDay = 24 * 60 * 60

// Vector returns the model inputs for f: login time of day as a point on the
// unit circle (sine, cosine), session duration in seconds and failed attempts.
func (f Features) Vector() []float64 {
	tod := math.Mod(f.LoginTs, secondsPerDay)
	if tod < 0 {
		tod += secondsPerDay
	}
	angle := 2 * math.Pi * tod / secondsPerDay
	return []float64{
		math.Sin(angle),
		math.Cos(angle),
		f.LogoutTs - f.LoginTs,
		f.FailedAttempts,
	}
}

// Model is a trained outlier detector.
type Model interface {
	IsAnomaly(x []float64) (bool, error)
}

// Classifier produces fail-open anomaly verdicts.
type Classifier struct {
	model  Model
	logger *zap.Logger
}

// NewClassifier wraps model. A nil model yields a classifier that always
// answers false.
func NewClassifier(model Model, logger *zap.Logger) *Classifier {
	if f, ok := model.(*Forest); ok && f == nil {
		model = nil
	}
	if model == nil {
		logger.Warn("anomaly classifier has no model; all sessions will be treated as normal")
	}
	return &Classifier{model: model, logger: logger}
}

// Available reports whether a model is loaded.
func (c *Classifier) Available() bool {
	return c != nil && c.model != nil
}

// Predict reports whether the session described by f is anomalous.
// It never fails: any internal error yields false.
func (c *Classifier) Predict(ctx context.Context, f Features) (anomalous bool) {
	defer func() {
		if r := recover(); r != nil {
			c.failOpen(fmt.Errorf("anomaly: model panicked: %v", r), f)
			anomalous = false
		}
	}()

	if !c.Available() {
		c.failOpen(ErrNoModel, f)
		return false
	}
	if err := ctx.Err(); err != nil {
		c.failOpen(err, f)
		return false
	}

	verdict, err := c.model.IsAnomaly(f.Vector())
	if err != nil {
		c.failOpen(err, f)
		return false
	}
	if verdict {
		metrics.AnomaliesDetected.Inc()
	}
	return verdict
}

func (c *Classifier) failOpen(err error, f Features) {
	metrics.ClassifierFailures.Inc()
	if c == nil || c.logger == nil {
		return
	}
	c.logger.Warn("anomaly classification failed; treating session as normal",
		zap.Float64("login_ts", f.LoginTs),
		zap.Float64("logout_ts", f.LogoutTs),
		zap.Float64("failed_attempts", f.FailedAttempts),
		zap.Error(err))
}
