package bindings

import (
	"errors"
	"strings"
	"testing"

	"github.com/dalemusser/stratawatch/internal/domain/models"
	"github.com/dalemusser/stratawatch/internal/testutil"
)

func TestStore_CreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.UserBinding{
		UserIdentity:       " Alice ",
		BoundDeviceID:      "A4-55-90-55-CC-03",
		NotificationTarget: "Alice@Example.com",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.UserIdentity != "Alice" || created.CreatedAt.IsZero() {
		t.Errorf("Create() = %+v", created)
	}

	got, err := store.GetByUserIdentity(ctx, "alice")
	if err != nil {
		t.Fatalf("GetByUserIdentity() error = %v", err)
	}
	if got.UserIdentity != "Alice" {
		t.Errorf("UserIdentity = %q, want %q", got.UserIdentity, "Alice")
	}
	if got.BoundDeviceID != "a4:55:90:55:cc:03" {
		t.Errorf("BoundDeviceID = %q, want normalized", got.BoundDeviceID)
	}
	if got.NotificationTarget != "alice@example.com" {
		t.Errorf("NotificationTarget = %q", got.NotificationTarget)
	}
}

func TestStore_Create_Duplicate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	b := models.UserBinding{UserIdentity: "bob", BoundDeviceID: "11:22:33:44:55:66"}
	if _, err := store.Create(ctx, b); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	b.UserIdentity = "BOB"
	if _, err := store.Create(ctx, b); !errors.Is(err, ErrDuplicate) {
		t.Errorf("second Create() error = %v, want ErrDuplicate", err)
	}
}

func TestStore_Create_Validation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.UserBinding{BoundDeviceID: "x"}); err == nil {
		t.Error("Create() without user should fail")
	}
	if _, err := store.Create(ctx, models.UserBinding{UserIdentity: "x"}); err == nil {
		t.Error("Create() without device should fail")
	}
}

func TestStore_GetByUserIdentity_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.GetByUserIdentity(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByUserIdentity() error = %v, want ErrNotFound", err)
	}
}

func TestStore_Upsert(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	b := models.UserBinding{UserIdentity: "carol", BoundDeviceID: "aa:aa:aa:aa:aa:aa", NotificationTarget: "c@example.com"}
	if err := store.Upsert(ctx, b); err != nil {
		t.Fatalf("Upsert() insert error = %v", err)
	}
	first, _ := store.GetByUserIdentity(ctx, "carol")

	b.BoundDeviceID = "BB-BB-BB-BB-BB-BB"
	if err := store.Upsert(ctx, b); err != nil {
		t.Fatalf("Upsert() update error = %v", err)
	}
	got, err := store.GetByUserIdentity(ctx, "carol")
	if err != nil {
		t.Fatal(err)
	}
	if got.BoundDeviceID != "bb:bb:bb:bb:bb:bb" {
		t.Errorf("BoundDeviceID = %q after upsert", got.BoundDeviceID)
	}
	if !got.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed on update: %v -> %v", first.CreatedAt, got.CreatedAt)
	}
	if n, _ := store.Count(ctx); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestStore_Delete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_ = store.Upsert(ctx, models.UserBinding{UserIdentity: "dave", BoundDeviceID: "01:02:03:04:05:06"})
	n, err := store.Delete(ctx, "Dave")
	if err != nil || n != 1 {
		t.Fatalf("Delete() = %d, %v; want 1, nil", n, err)
	}
	if _, err := store.GetByUserIdentity(ctx, "dave"); !errors.Is(err, ErrNotFound) {
		t.Errorf("binding still present after Delete")
	}
}

func TestStore_Seed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	bs, err := ParseSeed(strings.NewReader(`
bindings:
  - user_identity: alice
    bound_device_id: A4-55-90-55-CC-03
    notification_target: alice@example.com
  - user_identity: bob
    bound_device_id: 11:22:33:44:55:66
    notification_target: bob@example.com
`))
	if err != nil {
		t.Fatalf("ParseSeed() error = %v", err)
	}
	n, err := store.Seed(ctx, bs)
	if err != nil || n != 2 {
		t.Fatalf("Seed() = %d, %v", n, err)
	}
	// Seeding twice leaves the same set.
	if _, err := store.Seed(ctx, bs); err != nil {
		t.Fatal(err)
	}
	if c, _ := store.Count(ctx); c != 2 {
		t.Errorf("Count() = %d, want 2", c)
	}
}
