package logsink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/dalemusser/stratawatch/internal/app/system/metrics"
	"github.com/dalemusser/stratawatch/internal/domain/models"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerName labels the remote store's circuit breaker.
const BreakerName = "log-store"

// HTTPConfig configures an HTTPSink.
type HTTPConfig struct {
	// BaseURL of the log API, e.g. http://localhost:4000/api/logs.
	BaseURL string
	// Token is sent as a bearer token when set; the read endpoint requires it.
	Token   string
	Timeout time.Duration
}

// HTTPSink writes events to a remote log API:
//
//	POST {BaseURL}/createlog  -> 201
//	GET  {BaseURL}/getlogs    -> {"logs": [...]}
type HTTPSink struct {
	base    string
	token   string
	timeout time.Duration
	client  *http.Client
	cb      *gobreaker.CircuitBreaker[[]byte]
	logger  *zap.Logger
}

// NewHTTPSink creates an HTTPSink.
func NewHTTPSink(cfg HTTPConfig, logger *zap.Logger) *HTTPSink {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPSink{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		cb:      metrics.NewBreaker[[]byte](metrics.DefaultBreakerSettings(BreakerName), logger),
		logger:  logger,
	}
}

// wireLog is the remote API's record layout.
type wireLog struct {
	UserID         string                 `json:"userId"`
	Action         models.Action          `json:"action"`
	Timestamp      time.Time              `json:"timestamp"`
	FailedAttempts int                    `json:"failedAttempts"`
	Anomaly        bool                   `json:"anomaly"`
	Details        models.PresenceDetails `json:"details"`
}

type getLogsResponse struct {
	Logs []wireLog `json:"logs"`
}

// Append posts ev to createlog. Anything but 201 is an error.
func (s *HTTPSink) Append(ctx context.Context, ev models.LogEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	body, err := json.Marshal(wireLog{
		UserID:         ev.UserIdentity,
		Action:         ev.Action,
		Timestamp:      ev.OccurredAt.UTC(),
		FailedAttempts: ev.FailedAttempts,
		Anomaly:        ev.Anomaly,
		Details:        ev.Details,
	})
	if err != nil {
		return err
	}
	_, err = s.do(ctx, http.MethodPost, "/createlog", body, http.StatusCreated)
	return err
}

// Recent fetches getlogs and filters it locally; the remote API has no
// query parameters.
func (s *HTTPSink) Recent(ctx context.Context, since time.Time, limit int) ([]models.LogEvent, error) {
	raw, err := s.do(ctx, http.MethodGet, "/getlogs", nil, http.StatusOK)
	if err != nil {
		return nil, err
	}
	var resp getLogsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode getlogs response: %w", err)
	}

	out := []models.LogEvent{}
	for _, w := range resp.Logs {
		if w.Timestamp.Before(since) {
			continue
		}
		out = append(out, models.LogEvent{
			UserIdentity:   w.UserID,
			Action:         w.Action,
			OccurredAt:     w.Timestamp,
			FailedAttempts: w.FailedAttempts,
			Anomaly:        w.Anomaly,
			Details:        w.Details,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *HTTPSink) do(ctx context.Context, method, path string, body []byte, want int) ([]byte, error) {
	raw, err := s.cb.Execute(func() ([]byte, error) {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, s.base+path, rd)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if s.token != "" {
			req.Header.Set("Authorization", "Bearer "+s.token)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != want {
			snippet := data
			if len(snippet) > 512 {
				snippet = snippet[:512]
			}
			return nil, fmt.Errorf("log store %s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
		}
		return data, nil
	})
	metrics.ObserveBreaker(BreakerName, err)
	if err != nil {
		s.logger.Warn("log store request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
	}
	return raw, err
}
