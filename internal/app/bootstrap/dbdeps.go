// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/stratawatch/internal/app/system/mailer"
	"github.com/dalemusser/waffle/pantry/storage"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database and backend dependencies for this WAFFLE app.
//
// It is created in ConnectDB and passed to EnsureSchema, Startup,
// BuildHandler and Shutdown. Shutdown closes the connections it holds.
type DBDeps struct {
	// MongoDB client and database. Bindings always live here; auth logs do
	// unless log_store is "http".
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// FileStorage receives the daily history snapshots.
	FileStorage storage.Store

	// Mailer sends disconnect notifications.
	Mailer *mailer.Mailer
}
