package tasks

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Pruner deletes stored events older than a cutoff.
type Pruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// LogRetentionJob deletes auth log events older than retention.
func LogRetentionJob(p Pruner, retention time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     "log-retention",
		Interval: 6 * time.Hour,
		Run: func(ctx context.Context) error {
			cutoff := time.Now().Add(-retention)
			deleted, err := p.DeleteBefore(ctx, cutoff)
			if err != nil {
				return fmt.Errorf("prune auth logs: %w", err)
			}
			if deleted > 0 {
				logger.Info("pruned old auth log events",
					zap.Int64("deleted", deleted),
					zap.Time("cutoff", cutoff))
			}
			return nil
		},
	}
}
