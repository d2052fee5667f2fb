// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
// セッションはIdPが作成し、期限切れ後も行が残るためワーカーで掃除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/starterapi/internal/metrics"
)

// SessionPurger は期限切れセッションを削除する。
// repository.SessionRepositoryが満たす。
type SessionPurger interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// CleanupJob は期限切れセッションの削除ジョブ。
// 冪等で、削除対象がない場合もエラーにならない。
type CleanupJob struct {
	sessions SessionPurger
	logger   *slog.Logger
	metrics  metrics.MetricsCollector
	now      func() time.Time

	// Grace は期限切れから削除までの猶予（デフォルト: 0）。
	Grace time.Duration
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(sessions SessionPurger, logger *slog.Logger, collector metrics.MetricsCollector) *CleanupJob {
	return &CleanupJob{
		sessions: sessions,
		logger:   logger,
		metrics:  collector,
		now:      time.Now,
	}
}

// Run は期限切れセッションを1回削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.now()
	before := start.Add(-j.Grace)

	deleted, err := j.sessions.DeleteExpired(ctx, before)
	if err != nil {
		j.logger.ErrorContext(ctx, "session cleanup failed",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("session cleanup failed: %w", err)
	}

	j.metrics.RecordSessionsPurged(deleted)
	j.logger.InfoContext(ctx, "session cleanup completed",
		slog.Int64("deleted_count", deleted),
		slog.Time("expired_before", before),
		slog.Float64("duration_ms", float64(j.now().Sub(start).Milliseconds())),
	)
	return nil
}

// Start は起動直後に1回実行し、その後interval間隔でRunを繰り返す。
// ctxがキャンセルされるまでブロックする。個々の失敗はログに残して継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}
