// Package services периодически помечает истёкшие подписки.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/thomas-api/internal/lib/sl"
)

// SubscriptionRepository проставляет флаг expired.
type SubscriptionRepository interface {
	MarkExpired(ctx context.Context, now time.Time) (int64, error)
}

// Metrics считает помеченные подписки.
type Metrics interface {
	SubscriptionsMarkedExpired(n int64)
}

// SchedulerService периодически сохраняет флаг expired. List всё равно
// пересчитывает истечение сам, флаг лишь кэширует результат.
type SchedulerService struct {
	repo     SubscriptionRepository
	metrics  Metrics
	log      *slog.Logger
	interval time.Duration
	now      func() time.Time
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(repo SubscriptionRepository, metrics Metrics, log *slog.Logger, interval time.Duration) *SchedulerService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &SchedulerService{
		repo:     repo,
		metrics:  metrics,
		log:      log,
		interval: interval,
		now:      time.Now,
	}
}

// Run выполняет проход сразу и затем каждые interval до отмены ctx.
func (s *SchedulerService) Run(ctx context.Context) {
	s.SweepExpired(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("expiry sweep stopped")
			return
		case <-ticker.C:
			s.SweepExpired(ctx)
		}
	}
}

// SweepExpired помечает expired=true подписки с expire_time <= now.
func (s *SchedulerService) SweepExpired(ctx context.Context) int64 {
	const op = "services.scheduler.SweepExpired"
	log := s.log.With(slog.String("op", op))

	n, err := s.repo.MarkExpired(ctx, s.now())
	if err != nil {
		log.Error("failed to mark expired subscriptions", sl.Err(err))
		return 0
	}
	if n > 0 {
		log.Info("marked subscriptions as expired", slog.Int64("count", n))
	}
	s.metrics.SubscriptionsMarkedExpired(n)
	return n
}
