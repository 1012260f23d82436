// Package monitor watches the bound device of every logged-in user and
// sends one notification each time the device drops out of range.
//
// A Registry owns at most one monitor per user. Each monitor is a goroutine
// that polls the presence oracle on a fixed interval and runs an
// edge-triggered state machine: a notification fires on the transition from
// Connected to DisconnectedNotified, never while the device stays absent,
// and the state re-arms when the device returns.
package monitor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dalemusser/stratawatch/internal/app/system/metrics"
	"github.com/dalemusser/stratawatch/internal/app/system/timeouts"
	"github.com/dalemusser/stratawatch/internal/domain/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the notification state of one monitor.
type State int32

const (
	// Connected is the initial state of every new monitor.
	Connected State = iota
	// DisconnectedNotified means a disconnect notification has been sent
	// and the device has not been seen since.
	DisconnectedNotified
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case DisconnectedNotified:
		return "disconnected_notified"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// step is the transition function. notify is true only on the edge into
// DisconnectedNotified.
func step(s State, present bool) (next State, notify bool) {
	switch {
	case s == Connected && !present:
		return DisconnectedNotified, true
	case s == DisconnectedNotified && present:
		return Connected, false
	default:
		return s, false
	}
}

// DisconnectSubject is the subject line of a disconnect notification.
const DisconnectSubject = "Wi-Fi Device Disconnected"

// DisconnectBody is the notification text for deviceID.
func DisconnectBody(deviceID string) string {
	return fmt.Sprintf("Dear User,\n\n"+
		"Your Wi-Fi device (%s) has been disconnected. "+
		"If this was unexpected, please check your device.\n\n"+
		"Regards,\nSystem Log AI Team", deviceID)
}

// Notifier delivers a message to a notification target.
type Notifier interface {
	Notify(ctx context.Context, target, subject, body string) error
}

// WarningSink records disconnects in the log store.
type WarningSink interface {
	Append(ctx context.Context, ev models.LogEvent) error
}

// handle is one live monitor.
type handle struct {
	user      string
	device    string
	target    string
	startedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}
	state  atomic.Int32
}

func (h *handle) State() State { return State(h.state.Load()) }

// stop cancels the monitor and waits for its goroutine to exit.
func (h *handle) stop() {
	h.cancel()
	<-h.done
}

// run polls until ctx is cancelled. The first poll happens immediately.
func (r *Registry) run(ctx context.Context, h *handle) {
	defer close(h.done)

	log := r.logger.With(zap.String("user", h.user), zap.String("device", h.device))
	log.Info("presence monitor started")
	defer log.Info("presence monitor stopped")

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		r.poll(h, log)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// poll runs one tick. The oracle call carries its own deadline and is not
// tied to the monitor's context, so a stop waits for it to finish.
func (r *Registry) poll(h *handle, log *zap.Logger) {
	octx, cancel := timeouts.WithTimeout(context.Background(), r.cfg.OracleTimeout, log, "presence query")
	present, err := r.oracle.IsPresent(octx, h.device)
	cancel()

	switch {
	case err != nil:
		metrics.OracleQueries.WithLabelValues("monitor", "error").Inc()
		log.Warn("presence query failed; treating device as absent", zap.Error(err))
		present = false
	case present:
		metrics.OracleQueries.WithLabelValues("monitor", "present").Inc()
	default:
		metrics.OracleQueries.WithLabelValues("monitor", "absent").Inc()
	}

	from := h.State()
	next, notify := step(from, present)
	if next != from {
		h.state.Store(int32(next))
		metrics.MonitorTransitions.WithLabelValues(from.String(), next.String()).Inc()
		log.Info("presence state changed", zap.Stringer("from", from), zap.Stringer("to", next))
	}
	if notify {
		r.dispatch(h, log)
	}
}

// dispatch sends the disconnect notification in the background.
func (r *Registry) dispatch(h *handle, log *zap.Logger) {
	id := uuid.NewString()
	at := r.now()
	log = log.With(zap.String("notification_id", id))

	r.notifyWG.Add(1)
	go func() {
		defer r.notifyWG.Done()

		if r.notifier != nil {
			ctx, cancel := timeouts.WithTimeout(context.Background(), r.cfg.NotifyTimeout, log, "notify")
			err := r.notifier.Notify(ctx, h.target, DisconnectSubject, DisconnectBody(h.device))
			cancel()
			if err != nil {
				metrics.Notifications.WithLabelValues("failed").Inc()
				log.Error("disconnect notification failed", zap.String("target", h.target), zap.Error(err))
			} else {
				metrics.Notifications.WithLabelValues("sent").Inc()
				log.Info("disconnect notification sent", zap.String("target", h.target))
			}
		}

		if r.warnings != nil {
			ctx, cancel := timeouts.WithTimeout(context.Background(), r.cfg.SinkTimeout, log, "record warning")
			err := r.warnings.Append(ctx, models.LogEvent{
				UserIdentity: h.user,
				Action:       models.ActionWarning,
				OccurredAt:   at,
				Details:      models.PresenceDetails{BoundDeviceID: h.device, IsPresent: false},
			})
			cancel()
			if err != nil {
				log.Warn("failed to record disconnect warning", zap.Error(err))
			}
		}
	}()
}
