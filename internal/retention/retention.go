// Package retention implements the periodic sweep that deletes
// verification_runs rows older than the configured retention window (spec
// §9 supplement), grounded on the teacher's ProcessingService.DeleteAllPatientData
// transactional-delete idiom (internal/domain/services/processing_service.go).
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Sweeper deletes rows older than RetentionDays from verification_runs.
type Sweeper struct {
	pool          *pgxpool.Pool
	retentionDays int
	logger        *zap.Logger
}

// NewSweeper builds a Sweeper over pool, retaining rows for retentionDays.
func NewSweeper(pool *pgxpool.Pool, retentionDays int, logger *zap.Logger) *Sweeper {
	return &Sweeper{pool: pool, retentionDays: retentionDays, logger: logger.Named("retention")}
}

// Sweep deletes rows whose created_at is older than the retention window and
// reports how many rows were removed.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	const operation = "Sweeper.Sweep"

	cutoff := time.Duration(s.retentionDays) * 24 * time.Hour
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM verification_runs WHERE created_at < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int64(cutoff.Seconds())),
	)
	if err != nil {
		s.logger.Error("retention sweep failed", zap.String("operation", operation), zap.Error(err))
		return 0, fmt.Errorf("%s: %w", operation, err)
	}

	deleted := tag.RowsAffected()
	s.logger.Info("retention sweep completed", zap.String("operation", operation), zap.Int64("deleted", deleted), zap.Int("retention_days", s.retentionDays))
	return deleted, nil
}
