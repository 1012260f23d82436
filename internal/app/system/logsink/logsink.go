// Package logsink defines where enriched authentication events are written
// and read back from. The Mongo store in store/authlogs and the HTTP client
// in this package both satisfy Sink.
package logsink

import (
	"context"
	"time"

	"github.com/dalemusser/stratawatch/internal/app/system/metrics"
	"github.com/dalemusser/stratawatch/internal/domain/models"
)

// Sink is the log store.
type Sink interface {
	Append(ctx context.Context, ev models.LogEvent) error
	// Recent returns events that occurred at or after since, newest first.
	// A non-positive limit means no limit.
	Recent(ctx context.Context, since time.Time, limit int) ([]models.LogEvent, error)
}

// Instrumented records append latency for a sink under a backend label.
type Instrumented struct {
	Sink
	backend string
}

// Instrument wraps s so every Append is timed in the
// stratawatch_store_append_duration_seconds histogram.
func Instrument(backend string, s Sink) *Instrumented {
	return &Instrumented{Sink: s, backend: backend}
}

// Append times the underlying Append.
func (i *Instrumented) Append(ctx context.Context, ev models.LogEvent) error {
	start := time.Now()
	err := i.Sink.Append(ctx, ev)
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.StoreAppendDuration.WithLabelValues(i.backend, result).Observe(time.Since(start).Seconds())
	return err
}

// Backend returns the backend label.
func (i *Instrumented) Backend() string { return i.backend }
