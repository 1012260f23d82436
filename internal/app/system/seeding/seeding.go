// Package seeding loads startup data into an empty or partially seeded
// database.
package seeding

import (
	"context"
	"errors"
	"fmt"

	bindingstore "github.com/dalemusser/stratawatch/internal/app/store/bindings"
	"github.com/dalemusser/stratawatch/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Options controls SeedAll.
type Options struct {
	// BindingsPath is a YAML bindings file. Empty skips binding seeding.
	BindingsPath string
	// Overwrite replaces existing bindings with the file's values. Otherwise
	// only users missing from the directory are added.
	Overwrite bool
}

// SeedAll seeds user bindings from the configured file.
func SeedAll(ctx context.Context, db *mongo.Database, opts Options, logger *zap.Logger) error {
	if opts.BindingsPath == "" {
		return nil
	}
	bs, err := bindingstore.LoadSeedFile(opts.BindingsPath)
	if err != nil {
		return fmt.Errorf("load bindings seed: %w", err)
	}
	return seedBindings(ctx, bindingstore.New(db), bs, opts, logger)
}

func seedBindings(ctx context.Context, store *bindingstore.Store, bs []models.UserBinding, opts Options, logger *zap.Logger) error {
	if opts.Overwrite {
		n, err := store.Seed(ctx, bs)
		if err != nil {
			logger.Error("failed to seed bindings", zap.Int("written", n), zap.Error(err))
			return err
		}
		logger.Info("seeded user bindings",
			zap.String("path", opts.BindingsPath),
			zap.Int("written", n))
		return nil
	}

	created := 0
	for _, b := range bs {
		_, err := store.Create(ctx, b)
		switch {
		case errors.Is(err, bindingstore.ErrDuplicate):
			logger.Debug("binding already present; not seeding", zap.String("user", b.UserIdentity))
		case err != nil:
			logger.Error("failed to seed binding",
				zap.String("user", b.UserIdentity),
				zap.Error(err))
			return err
		default:
			created++
		}
	}
	logger.Info("seeded user bindings",
		zap.String("path", opts.BindingsPath),
		zap.Int("created", created),
		zap.Int("in_file", len(bs)))
	return nil
}
