package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/stratawatch/internal/domain/models"
)

// MemoryDirectory is an in-memory user directory.
type MemoryDirectory struct {
	mu       sync.Mutex
	bindings map[string]models.UserBinding
	Err      error
}

// NewMemoryDirectory returns a directory holding bs.
func NewMemoryDirectory(bs ...models.UserBinding) *MemoryDirectory {
	d := &MemoryDirectory{bindings: make(map[string]models.UserBinding)}
	for _, b := range bs {
		d.bindings[strings.ToLower(b.UserIdentity)] = b
	}
	return d
}

// GetByUserIdentity returns the binding for user or ErrNotFound.
func (d *MemoryDirectory) GetByUserIdentity(ctx context.Context, user string) (models.UserBinding, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return models.UserBinding{}, d.Err
	}
	b, ok := d.bindings[strings.ToLower(strings.TrimSpace(user))]
	if !ok {
		return models.UserBinding{}, models.ErrBindingNotFound
	}
	return b, nil
}

// MemorySink is an in-memory log store.
type MemorySink struct {
	mu     sync.Mutex
	events []models.LogEvent
	Err    error
}

// Append records ev unless Err is set.
func (s *MemorySink) Append(ctx context.Context, ev models.LogEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.events = append(s.events, ev)
	return nil
}

// Recent returns events at or after since, newest first.
func (s *MemorySink) Recent(ctx context.Context, since time.Time, limit int) ([]models.LogEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := []models.LogEvent{}
	for _, ev := range s.events {
		if !ev.OccurredAt.Before(since) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Events returns a copy of everything appended.
func (s *MemorySink) Events() []models.LogEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.LogEvent(nil), s.events...)
}

// StaticOracle answers every presence query with Present or Err.
type StaticOracle struct {
	mu      sync.Mutex
	Present bool
	Err     error
	queried []string
}

// IsPresent implements the presence oracle.
func (o *StaticOracle) IsPresent(ctx context.Context, deviceID string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queried = append(o.queried, deviceID)
	return o.Present, o.Err
}

// Set changes the answer.
func (o *StaticOracle) Set(present bool, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Present, o.Err = present, err
}

// Queried returns the device IDs asked about so far.
func (o *StaticOracle) Queried() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.queried...)
}

// Notification is one message captured by RecordingNotifier.
type Notification struct {
	Target, Subject, Body string
}

// RecordingNotifier captures notifications.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
	Err  error
}

// Notify records the message and returns Err.
func (n *RecordingNotifier) Notify(ctx context.Context, target, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, Notification{target, subject, body})
	return n.Err
}

// Sent returns a copy of the captured notifications.
func (n *RecordingNotifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.sent...)
}
