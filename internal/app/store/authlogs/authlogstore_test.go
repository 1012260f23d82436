package authlogs

import (
	"testing"
	"time"

	"github.com/dalemusser/stratawatch/internal/domain/models"
	"github.com/dalemusser/stratawatch/internal/testutil"
)

func event(user string, action models.Action, at time.Time) models.LogEvent {
	return models.LogEvent{
		UserIdentity: user,
		Action:       action,
		OccurredAt:   at,
		Details:      models.PresenceDetails{BoundDeviceID: "aa:bb:cc:dd:ee:ff", IsPresent: true},
	}
}

func TestStore_Append(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	at := time.Now().UTC().Add(-time.Minute).Truncate(time.Millisecond)
	ev := event("alice", models.ActionLogin, at)
	ev.FailedAttempts = 2
	ev.Anomaly = true

	if err := store.Append(ctx, ev); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := store.GetByUser(ctx, "alice", 10, 1)
	if err != nil {
		t.Fatalf("GetByUser() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(got))
	}
	e := got[0]
	if e.ID.IsZero() {
		t.Error("ID should be assigned")
	}
	if e.Action != models.ActionLogin || e.FailedAttempts != 2 || !e.Anomaly {
		t.Errorf("stored event = %+v", e)
	}
	if !e.OccurredAt.Equal(at) {
		t.Errorf("OccurredAt = %v, want %v", e.OccurredAt, at)
	}
	if e.Details.BoundDeviceID != "aa:bb:cc:dd:ee:ff" || !e.Details.IsPresent {
		t.Errorf("Details = %+v", e.Details)
	}
	if e.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestStore_Append_DefaultsOccurredAt(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.Append(ctx, models.LogEvent{UserIdentity: "bob", Action: models.ActionLogout}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	got, _ := store.GetByUser(ctx, "bob", 10, 1)
	if len(got) != 1 || got[0].OccurredAt.IsZero() {
		t.Fatalf("expected one event with OccurredAt set, got %+v", got)
	}
}

func TestStore_Append_RequiresUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.Append(ctx, models.LogEvent{Action: models.ActionLogin}); err == nil {
		t.Error("Append() without user should fail")
	}
}

func TestStore_Recent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now().UTC()
	for _, ev := range []models.LogEvent{
		event("alice", models.ActionLogin, now.Add(-40*24*time.Hour)),
		event("alice", models.ActionLogin, now.Add(-2*time.Hour)),
		event("bob", models.ActionLogout, now.Add(-time.Hour)),
		event("carol", models.ActionWarning, now.Add(-10*time.Minute)),
	} {
		if err := store.Append(ctx, ev); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := store.Recent(ctx, now.Add(-30*24*time.Hour), 0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Recent() returned %d events, want 3", len(got))
	}
	if got[0].UserIdentity != "carol" || got[2].UserIdentity != "alice" {
		t.Errorf("Recent() not newest-first: %s .. %s", got[0].UserIdentity, got[2].UserIdentity)
	}

	limited, _ := store.Recent(ctx, now.Add(-30*24*time.Hour), 1)
	if len(limited) != 1 {
		t.Errorf("Recent(limit 1) returned %d", len(limited))
	}
}

func TestStore_Recent_Empty(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	got, err := store.Recent(ctx, time.Now().Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Recent() = %v, want empty non-nil slice", got)
	}
}

func TestStore_GetByUser_Pagination(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		_ = store.Append(ctx, event("alice", models.ActionLogin, base.Add(time.Duration(i)*time.Minute)))
	}
	_ = store.Append(ctx, event("bob", models.ActionLogin, base))

	page1, _ := store.GetByUser(ctx, "alice", 2, 1)
	page3, _ := store.GetByUser(ctx, "alice", 2, 3)
	if len(page1) != 2 || len(page3) != 1 {
		t.Fatalf("pages = %d, %d; want 2, 1", len(page1), len(page3))
	}
	if !page1[0].OccurredAt.After(page1[1].OccurredAt) {
		t.Error("GetByUser() should be newest first")
	}
}

func TestStore_DeleteBefore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now().UTC()
	_ = store.Append(ctx, event("alice", models.ActionLogin, now.Add(-100*24*time.Hour)))
	_ = store.Append(ctx, event("alice", models.ActionLogin, now.Add(-95*24*time.Hour)))
	_ = store.Append(ctx, event("alice", models.ActionLogin, now))

	n, err := store.DeleteBefore(ctx, now.Add(-90*24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore() error = %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteBefore() = %d, want 2", n)
	}
	rest, _ := store.GetByUser(ctx, "alice", 10, 1)
	if len(rest) != 1 {
		t.Errorf("remaining = %d, want 1", len(rest))
	}
}

func TestStore_GetByUser_IgnoresCase(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now().UTC()
	_ = store.Append(ctx, event("Alice@Example.com", models.ActionLogin, now.Add(-2*time.Minute)))
	_ = store.Append(ctx, event("alice@example.com", models.ActionLogout, now.Add(-time.Minute)))
	_ = store.Append(ctx, event("bob@example.com", models.ActionLogin, now))

	for _, user := range []string{"alice@example.com", "ALICE@EXAMPLE.COM", "Alice@Example.com"} {
		got, err := store.GetByUser(ctx, user, 10, 1)
		if err != nil {
			t.Fatalf("GetByUser(%q) error = %v", user, err)
		}
		if len(got) != 2 {
			t.Errorf("GetByUser(%q) returned %d events, want 2", user, len(got))
			continue
		}
		// The stored identity keeps the case it arrived with.
		if got[0].UserIdentity != "alice@example.com" || got[1].UserIdentity != "Alice@Example.com" {
			t.Errorf("GetByUser(%q) identities = %q, %q", user, got[0].UserIdentity, got[1].UserIdentity)
		}
	}
}
