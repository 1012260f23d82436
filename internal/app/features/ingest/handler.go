package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/stratawatch/internal/app/system/jsonutil"
	"github.com/dalemusser/stratawatch/internal/domain/models"
	"go.uber.org/zap"
)

// maxBodyBytes bounds an event request body.
const maxBodyBytes = 64 << 10

// Handler serves the ingestion endpoint.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a new ingest handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// eventRequest accepts both the current field names and the
// ones older workstation agents send (userId, time, failed_attempts).
type eventRequest struct {
	UserIdentity         string          `json:"userIdentity"`
	UserID               string          `json:"userId"`
	Action               string          `json:"action"`
	OccurredAt           json.RawMessage `json:"occurredAt"`
	Time                 json.RawMessage `json:"time"`
	FailedAttempts       *int            `json:"failedAttempts"`
	FailedAttemptsLegacy *int            `json:"failed_attempts"`
}

type eventResponse struct {
	Message string                 `json:"message"`
	Anomaly bool                   `json:"anomaly"`
	Details models.PresenceDetails `json:"details"`
}

// timeLayouts are tried in order for string timestamps. The ctime forms
// match Python's time.ctime().
var timeLayouts = []string{
	time.RFC3339Nano,
	time.ANSIC,
	"Mon Jan 2 15:04:05 2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func (in eventRequest) toEvent() (models.LogEvent, error) {
	ev := models.LogEvent{
		UserIdentity: in.UserIdentity,
		Action:       models.Action(strings.ToLower(strings.TrimSpace(in.Action))),
	}
	if ev.UserIdentity == "" {
		ev.UserIdentity = in.UserID
	}

	raw := in.OccurredAt
	if len(raw) == 0 {
		raw = in.Time
	}
	at, err := parseTimestamp(raw)
	if err != nil {
		return models.LogEvent{}, err
	}
	ev.OccurredAt = at

	switch {
	case in.FailedAttempts != nil:
		ev.FailedAttempts = *in.FailedAttempts
	case in.FailedAttemptsLegacy != nil:
		ev.FailedAttempts = *in.FailedAttemptsLegacy
	}
	return ev, nil
}

// parseTimestamp accepts a JSON string in one of timeLayouts or a number of
// Unix seconds. Absent or null yields the zero time.
// maxUnixSeconds bounds numeric timestamps to values a float64 holds exactly,
// well inside the int64 range.
const maxUnixSeconds = 1 << 53

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}
	if raw[0] != '"' {
		secs, err := strconv.ParseFloat(string(raw), 64)
		if err != nil || math.Abs(secs) > maxUnixSeconds {
			return time.Time{}, fmt.Errorf("invalid timestamp %s", raw)
		}
		whole := int64(secs)
		return time.Unix(whole, int64((secs-float64(whole))*1e9)), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %s", raw)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// Create handles POST /api/events and the legacy POST /logs.
//
// Request body:
//
//	{
//	    "userIdentity": "alice",
//	    "action": "login",
//	    "occurredAt": "2025-06-01T09:00:00Z",
//	    "failedAttempts": 0
//	}
//
// Response (200 OK):
//
//	{
//	    "message": "success",
//	    "anomaly": false,
//	    "details": {"boundDeviceId": "a4:55:90:55:cc:03", "isPresent": true}
//	}
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var in eventRequest
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, "Invalid JSON payload")
		return
	}
	ev, err := in.toEvent()
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}

	res, err := h.svc.Handle(r.Context(), ev)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	jsonutil.OK(w, eventResponse{
		Message: "success",
		Anomaly: res.Anomaly,
		Details: res.Event.Details,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var perr *PersistenceError
	switch {
	case errors.Is(err, ErrInvalidAction), errors.Is(err, ErrInvalidEvent):
		jsonutil.BadRequest(w, err.Error())
	case errors.Is(err, ErrUnknownUser):
		jsonutil.NotFound(w, err.Error())
	case errors.Is(err, ErrUnavailable):
		jsonutil.ServiceUnavailable(w, err.Error())
	case errors.As(err, &perr):
		jsonutil.InternalError(w, "Failed to store log")
	default:
		h.logger.Error("event ingestion failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		jsonutil.InternalError(w, "Internal server error")
	}
}
