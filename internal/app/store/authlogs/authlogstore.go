// internal/app/store/authlogs/authlogstore.go
package authlogs

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/stratawatch/internal/app/store/storeutil"
	"github.com/dalemusser/stratawatch/internal/app/system/indexes"
	"github.com/dalemusser/stratawatch/internal/app/system/normalize"
	"github.com/dalemusser/stratawatch/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// doc is the stored form; identity_ci is the folded per-user lookup key.
type doc struct {
	models.LogEvent `bson:",inline"`
	IdentityCI      string `bson:"identity_ci"`
}

// Store persists LogEvents in the auth_logs collection.
type Store struct {
	c *mongo.Collection
}

// New returns a Store backed by db's auth_logs collection.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(indexes.AuthLogs)}
}

// Append inserts an event. CreatedAt is set to now and a zero OccurredAt
// defaults to the same instant.
func (s *Store) Append(ctx context.Context, ev models.LogEvent) error {
	if ev.UserIdentity == "" {
		return errors.New("authlogs: empty user identity")
	}
	now := time.Now().UTC()
	ev.CreatedAt = now
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = now
	}
	ev.OccurredAt = ev.OccurredAt.UTC()
	_, err := s.c.InsertOne(ctx, doc{LogEvent: ev, IdentityCI: normalize.UserIdentityKey(ev.UserIdentity)})
	return err
}

// Recent returns events that occurred at or after since, newest first.
// A non-positive limit returns every match.
func (s *Store) Recent(ctx context.Context, since time.Time, limit int) ([]models.LogEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "occurred_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return s.find(ctx, bson.M{"occurred_at": bson.M{"$gte": since}}, opts)
}

// GetByUser returns one page of a user's events, newest first. The user is
// matched case- and diacritic-insensitively, as ingestion does.
func (s *Store) GetByUser(ctx context.Context, user string, limit, page int64) ([]models.LogEvent, error) {
	opts := storeutil.Paginate(limit, page).
		SetSort(bson.D{{Key: "occurred_at", Value: -1}})
	return s.find(ctx, bson.M{"identity_ci": normalize.UserIdentityKey(user)}, opts)
}

// DeleteBefore removes events that occurred before cutoff.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"occurred_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.LogEvent, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	events := []models.LogEvent{}
	if err := cur.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}
