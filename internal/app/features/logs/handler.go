// Package logs serves read access to stored authentication events.
package logs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dalemusser/stratawatch/internal/app/store/storeutil"
	"github.com/dalemusser/stratawatch/internal/app/system/jsonutil"
	"github.com/dalemusser/stratawatch/internal/app/system/normalize"
	"github.com/dalemusser/stratawatch/internal/app/system/timeouts"
	"github.com/dalemusser/stratawatch/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	// DefaultDays is the lookback of GET /api/logs without ?days.
	DefaultDays = 30
	maxDays     = 3650
)

var errBadParam = errors.New("invalid query parameter")

// Recent reads events by time from any log store backend.
type Recent interface {
	Recent(ctx context.Context, since time.Time, limit int) ([]models.LogEvent, error)
}

// UserHistory pages through one user's events. Only the Mongo store has it.
type UserHistory interface {
	GetByUser(ctx context.Context, user string, limit, page int64) ([]models.LogEvent, error)
}

// Handler serves the log read API.
type Handler struct {
	recent Recent
	byUser UserHistory
	logger *zap.Logger
	now    func() time.Time
}

// NewHandler creates a logs Handler. byUser may be nil.
func NewHandler(recent Recent, byUser UserHistory, logger *zap.Logger) *Handler {
	return &Handler{recent: recent, byUser: byUser, logger: logger, now: time.Now}
}

type listResponse struct {
	Logs []models.LogEvent `json:"logs"`
}

// List handles GET /api/logs?days=&limit=.
//
// Response (200 OK):
//
//	{"logs": [{"userIdentity": "alice", "action": "login", ...}]}
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", DefaultDays, maxDays)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	limit, err := intParam(r, "limit", storeutil.DefaultLimit, storeutil.MaxLimit)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Store(), h.logger, "list logs")
	defer cancel()

	since := h.now().AddDate(0, 0, -days)
	events, err := h.recent.Recent(ctx, since, limit)
	if err != nil {
		h.logger.Error("failed to read logs", zap.Int("days", days), zap.Error(err))
		jsonutil.InternalError(w, "Failed to read logs")
		return
	}
	h.write(w, events)
}

// ByUser handles GET /api/logs/users/{user}?limit=&page=.
func (h *Handler) ByUser(w http.ResponseWriter, r *http.Request) {
	user := normalize.UserIdentity(chi.URLParam(r, "user"))
	if user == "" {
		jsonutil.BadRequest(w, "user is required")
		return
	}
	limit, err := intParam(r, "limit", storeutil.DefaultLimit, storeutil.MaxLimit)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	page, err := intParam(r, "page", 1, 1<<20)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Store(), h.logger, "user logs")
	defer cancel()

	events, err := h.byUser.GetByUser(ctx, user, int64(limit), int64(page))
	if err != nil {
		h.logger.Error("failed to read user logs", zap.String("user", user), zap.Error(err))
		jsonutil.InternalError(w, "Failed to read logs")
		return
	}
	h.write(w, events)
}

func (h *Handler) write(w http.ResponseWriter, events []models.LogEvent) {
	if events == nil {
		events = []models.LogEvent{}
	}
	jsonutil.OK(w, listResponse{Logs: events})
}

// intParam reads a positive integer query parameter, defaulting when absent
// and capping at max.
func intParam(r *http.Request, key string, def, max int) (int, error) {
	raw := normalize.QueryParam(query.Get(r, key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", errBadParam, key)
	}
	return min(n, max), nil
}
