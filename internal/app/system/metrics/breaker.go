package metrics

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerSettings configures NewBreaker.
type BreakerSettings struct {
	Name string

	// MinRequests is the number of requests in the measurement window
	// before the failure ratio is considered.
	MinRequests uint32

	// FailureRatio at or above which the circuit opens.
	FailureRatio float64

	// Interval is the closed-state measurement window.
	Interval time.Duration

	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration
}

// DefaultBreakerSettings returns the settings used for the oracle and the
// remote log store.
func DefaultBreakerSettings(name string) BreakerSettings {
	return BreakerSettings{
		Name:         name,
		MinRequests:  10,
		FailureRatio: 0.6,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
	}
}

// NewBreaker builds a circuit breaker whose state changes are logged and
// exported through CircuitBreakerState.
func NewBreaker[T any](s BreakerSettings, logger *zap.Logger) *gobreaker.CircuitBreaker[T] {
	CircuitBreakerState.WithLabelValues(s.Name).Set(0)

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 3,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	})
}

// ObserveBreaker records the outcome of a call made through a breaker.
func ObserveBreaker(name string, err error) {
	switch {
	case err == nil:
		CircuitBreakerRequests.WithLabelValues(name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		CircuitBreakerRequests.WithLabelValues(name, "rejected").Inc()
	default:
		CircuitBreakerRequests.WithLabelValues(name, "failure").Inc()
	}
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
