// internal/app/store/bindings/bindingstore.go
package bindings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/stratawatch/internal/app/system/indexes"
	"github.com/dalemusser/stratawatch/internal/app/system/normalize"
	"github.com/dalemusser/stratawatch/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound is returned when no binding exists for a user identity.
	ErrNotFound = models.ErrBindingNotFound
	// ErrDuplicate is returned by Create when the user already has a binding.
	ErrDuplicate = errors.New("a binding for this user already exists")
)

// doc is the stored form; identity_ci is the folded lookup key.
type doc struct {
	models.UserBinding `bson:",inline"`
	IdentityCI         string `bson:"identity_ci"`
}

// Store persists UserBindings keyed by folded user identity.
type Store struct {
	c *mongo.Collection
}

// New returns a Store backed by db's user_bindings collection.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(indexes.UserBindings)}
}

func prepare(b models.UserBinding) (models.UserBinding, error) {
	b.UserIdentity = normalize.UserIdentity(b.UserIdentity)
	b.BoundDeviceID = normalize.DeviceID(b.BoundDeviceID)
	b.NotificationTarget = normalize.Email(b.NotificationTarget)
	if b.UserIdentity == "" {
		return b, errors.New("binding: empty user identity")
	}
	if b.BoundDeviceID == "" {
		return b, fmt.Errorf("binding %q: empty bound device id", b.UserIdentity)
	}
	return b, nil
}

// GetByUserIdentity looks up a binding by case/diacritic-insensitive user
// identity. Returns ErrNotFound on a miss.
func (s *Store) GetByUserIdentity(ctx context.Context, user string) (models.UserBinding, error) {
	var d doc
	err := s.c.FindOne(ctx, bson.M{"identity_ci": normalize.UserIdentityKey(user)}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.UserBinding{}, ErrNotFound
	}
	if err != nil {
		return models.UserBinding{}, err
	}
	return d.UserBinding, nil
}

// Create inserts a new binding. Returns ErrDuplicate if the user already
// has one.
func (s *Store) Create(ctx context.Context, b models.UserBinding) (models.UserBinding, error) {
	b, err := prepare(b)
	if err != nil {
		return models.UserBinding{}, err
	}
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now

	if _, err := s.c.InsertOne(ctx, doc{UserBinding: b, IdentityCI: normalize.UserIdentityKey(b.UserIdentity)}); err != nil {
		if wafflemongo.IsDup(err) {
			return models.UserBinding{}, ErrDuplicate
		}
		return models.UserBinding{}, err
	}
	return b, nil
}

// Upsert creates or replaces the binding for b.UserIdentity, keeping the
// original CreatedAt.
func (s *Store) Upsert(ctx context.Context, b models.UserBinding) error {
	b, err := prepare(b)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	key := normalize.UserIdentityKey(b.UserIdentity)

	_, err = s.c.UpdateOne(ctx,
		bson.M{"identity_ci": key},
		bson.M{
			"$set": bson.M{
				"user_identity":       b.UserIdentity,
				"bound_device_id":     b.BoundDeviceID,
				"notification_target": b.NotificationTarget,
				"updated_at":          now,
			},
			"$setOnInsert": bson.M{
				"identity_ci": key,
				"created_at":  now,
			},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

// Delete removes the binding for user. Returns the number deleted.
func (s *Store) Delete(ctx context.Context, user string) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"identity_ci": normalize.UserIdentityKey(user)})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Count returns the number of bindings.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{})
}
