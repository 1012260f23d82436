// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Collection names owned by this service.
const (
	AuthLogs     = "auth_logs"
	UserBindings = "user_bindings"
)

/*
EnsureAll is called at startup. Each collection's set is reconciled
independently; errors are aggregated so every problem is visible and startup
can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	for _, set := range Sets() {
		if err := ensureIndexSet(ctx, db.Collection(set.Collection), set.Models); err != nil {
			problems = append(problems, set.Collection+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// Set is the desired index list for one collection.
type Set struct {
	Collection string
	Models     []mongo.IndexModel
}

// Sets returns every desired index set.
func Sets() []Set {
	return []Set{
		{
			Collection: AuthLogs,
			Models: []mongo.IndexModel{
				// Per-user recent events (latest-first)
				{
					Keys:    bson.D{{Key: "identity_ci", Value: 1}, {Key: "occurred_at", Value: -1}},
					Options: options.Index().SetName("idx_authlogs_identity_ci_occurred"),
				},
				// Window queries and retention sweeps
				{
					Keys:    bson.D{{Key: "occurred_at", Value: -1}},
					Options: options.Index().SetName("idx_authlogs_occurred"),
				},
			},
		},
		{
			Collection: UserBindings,
			Models: []mongo.IndexModel{
				// One binding per folded user identity
				{
					Keys:    bson.D{{Key: "identity_ci", Value: 1}},
					Options: options.Index().SetUnique(true).SetName("uniq_bindings_identity_ci"),
				},
				{
					Keys:    bson.D{{Key: "bound_device_id", Value: 1}},
					Options: options.Index().SetName("idx_bindings_device"),
				},
			},
		},
	}
}

/* -------------------------------------------------------------------------- */
/* Reconciler                                                                 */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func isUnique(b *bool) bool { return b != nil && *b }

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

// listExisting maps key signature to the index currently on coll.
func listExisting(ctx context.Context, coll *mongo.Collection) (map[string]existingIndex, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := map[string]existingIndex{}
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		out[keySig(idx.Key)] = idx
	}
	return out, cur.Err()
}

// ensureIndexSet creates missing indexes and recreates ones whose key
// pattern matches but whose uniqueness differs.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	existing, err := listExisting(ctx, coll)
	if err != nil {
		// A collection that does not exist yet has no indexes.
		existing = map[string]existingIndex{}
	}

	var errs []string
	for _, m := range models {
		if err := ensureOne(ctx, coll, m, existing); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func ensureOne(ctx context.Context, coll *mongo.Collection, m mongo.IndexModel, existing map[string]existingIndex) error {
	var name string
	var unique *bool
	if m.Options != nil {
		if m.Options.Name != nil {
			name = *m.Options.Name
		}
		unique = m.Options.Unique
	}
	sig := keySig(m.Keys.(bson.D))
	log := zap.L().With(
		zap.String("collection", coll.Name()),
		zap.String("name", name),
		zap.String("keys", sig),
		zap.Bool("unique", isUnique(unique)))
	start := time.Now()

	if ex, ok := existing[sig]; ok {
		if isUnique(unique) == isUnique(ex.Unique) {
			log.Debug("reusing existing index", zap.String("existing_name", ex.Name))
			return nil
		}
		if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
			log.Warn("drop existing index failed", zap.Error(err))
			return fmt.Errorf("%s(%s): drop failed: %v", coll.Name(), name, err)
		}
		log.Info("dropped index with mismatched options", zap.String("existing_name", ex.Name))
	}

	if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
		log.Warn("index ensure failed", zap.Error(err))
		if isDuplicateKeyErr(err) && isUnique(unique) {
			return fmt.Errorf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), name)
		}
		return fmt.Errorf("%s(%s): %v", coll.Name(), name, err)
	}
	log.Info("index ensured", zap.Duration("took", time.Since(start)))
	return nil
}
