package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/stratawatch/internal/app/system/metrics"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerName labels the oracle's circuit breaker in logs and metrics.
const BreakerName = "presence-oracle"

// HTTPConfig configures an HTTPOracle.
type HTTPConfig struct {
	// BaseURL of the presence service, e.g. http://localhost:4100.
	BaseURL string

	// Timeout bounds a single query when the caller's context has no
	// earlier deadline.
	Timeout time.Duration
}

// HTTPOracle queries a presence service over HTTP:
//
//	GET {BaseURL}/devices/{deviceID}/presence  ->  {"present": true}
//
// Calls are guarded by a circuit breaker; while it is open every query
// fails fast with ErrUnavailable.
type HTTPOracle struct {
	base    string
	timeout time.Duration
	client  *http.Client
	cb      *gobreaker.CircuitBreaker[bool]
	logger  *zap.Logger
}

// NewHTTPOracle creates an HTTPOracle.
func NewHTTPOracle(cfg HTTPConfig, logger *zap.Logger) *HTTPOracle {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPOracle{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		cb:      metrics.NewBreaker[bool](metrics.DefaultBreakerSettings(BreakerName), logger),
		logger:  logger,
	}
}

type presenceResponse struct {
	Present bool `json:"present"`
}

// IsPresent implements Oracle.
func (o *HTTPOracle) IsPresent(ctx context.Context, deviceID string) (bool, error) {
	id := NormalizeDeviceID(deviceID)
	if id == "" {
		return false, fmt.Errorf("%w: empty device id", ErrUnavailable)
	}

	present, err := o.cb.Execute(func() (bool, error) {
		return o.query(ctx, id)
	})
	metrics.ObserveBreaker(BreakerName, err)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return present, nil
}

func (o *HTTPOracle) query(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	endpoint := o.base + "/devices/" + url.PathEscape(id) + "/presence"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("presence service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out presenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("decode presence response: %w", err)
	}

	o.logger.Debug("presence queried",
		zap.String("device_id", id),
		zap.Bool("present", out.Present))
	return out.Present, nil
}
