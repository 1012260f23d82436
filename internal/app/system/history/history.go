// Package history writes a once-per-day snapshot of recent authentication
// events to file storage, so offline analysis has a stable daily extract
// of the last HistoryWindow of logs.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dalemusser/stratawatch/internal/app/system/timeouts"
	"github.com/dalemusser/stratawatch/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultWindow is the lookback used when none is configured.
const DefaultWindow = 30 * 24 * time.Hour

const dayLayout = "2006-01-02"

// Source reads recent events from the log store.
type Source interface {
	Recent(ctx context.Context, since time.Time, limit int) ([]models.LogEvent, error)
}

// Writer is the part of a waffle storage.Store the snapshotter needs.
type Writer interface {
	Put(ctx context.Context, path string, r io.Reader, opts *storage.PutOptions) error
}

// Snapshot is the document written for one day.
type Snapshot struct {
	ID          string            `json:"id"`
	Day         string            `json:"day"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Since       time.Time         `json:"since"`
	Count       int               `json:"count"`
	Logs        []models.LogEvent `json:"logs"`
}

// Path returns the storage path of the snapshot for day.
func Path(day string) string {
	return "history/" + day + ".json"
}

// Snapshotter takes at most one successful snapshot per calendar day.
type Snapshotter struct {
	src    Source
	dst    Writer
	window time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	doneDay string
	running bool
	wg      sync.WaitGroup
}

// New creates a Snapshotter. A non-positive window uses DefaultWindow.
func New(src Source, dst Writer, window time.Duration, logger *zap.Logger) *Snapshotter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Snapshotter{src: src, dst: dst, window: window, logger: logger, now: time.Now}
}

// ObserveLogin starts a background snapshot when at falls on today and no
// snapshot has succeeded today yet. It reports whether one was started.
func (s *Snapshotter) ObserveLogin(at time.Time) bool {
	now := s.now()
	today := now.Format(dayLayout)
	if at.In(now.Location()).Format(dayLayout) != today {
		return false
	}

	s.mu.Lock()
	if s.doneDay == today || s.running {
		s.mu.Unlock()
		return false
	}
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		ctx, cancel := timeouts.WithTimeout(context.Background(), timeouts.Batch(), s.logger, "history snapshot")
		defer cancel()

		_, err := s.Run(ctx)

		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		if err != nil {
			s.logger.Warn("history snapshot failed; will retry on next login", zap.Error(err))
		}
	}()
	return true
}

// Run fetches the window of logs and writes today's snapshot. On success
// the day is marked done.
func (s *Snapshotter) Run(ctx context.Context) (Snapshot, error) {
	now := s.now()
	snap := Snapshot{
		ID:          uuid.NewString(),
		Day:         now.Format(dayLayout),
		GeneratedAt: now.UTC(),
		Since:       now.Add(-s.window).UTC(),
	}

	logs, err := s.src.Recent(ctx, snap.Since, 0)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch history: %w", err)
	}
	snap.Logs = logs
	snap.Count = len(logs)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return Snapshot{}, fmt.Errorf("encode history: %w", err)
	}
	if err := s.dst.Put(ctx, Path(snap.Day), &buf, &storage.PutOptions{ContentType: "application/json"}); err != nil {
		return Snapshot{}, fmt.Errorf("store history: %w", err)
	}

	s.mu.Lock()
	s.doneDay = snap.Day
	s.mu.Unlock()

	s.logger.Info("history snapshot written",
		zap.String("snapshot_id", snap.ID),
		zap.String("path", Path(snap.Day)),
		zap.Int("count", snap.Count))
	return snap, nil
}

// Wait blocks until background snapshots finish or ctx is done.
func (s *Snapshotter) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
