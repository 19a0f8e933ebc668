// Package services управляет жизненным циклом подписок: приём из вебхука,
// выдача владельцу и однократная активация.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/magabrotheeeer/thomas-api/internal/events"
	"github.com/magabrotheeeer/thomas-api/internal/lib/kofi"
	"github.com/magabrotheeeer/thomas-api/internal/lib/sl"
	"github.com/magabrotheeeer/thomas-api/internal/models"
	"github.com/magabrotheeeer/thomas-api/internal/storage"
)

// SubscriptionRepository - хранилище подписок.
type SubscriptionRepository interface {
	FindSubscriptions(ctx context.Context, filter models.SubscriptionFilter) ([]*models.Subscription, error)
	InsertSubscription(ctx context.Context, sub *models.Subscription) error
	// ActivateSubscription атомарно ставит activated_by подписке, подходящей под
	// filter с activated_by == nil, и перезаписывает premium пользователя.
	// storage.ErrConflict - подписка уже не подходит под фильтр,
	// storage.ErrNotFound - нет пользователя.
	ActivateSubscription(ctx context.Context, filter models.SubscriptionFilter, userID int64, premium models.Premium) error
}

// Cache - теневая копия пользователей.
type Cache interface {
	Invalidate(ctx context.Context, id int64) error
}

// EventEmitter публикует доменные события.
type EventEmitter interface {
	Emit(ctx context.Context, eventType string, payload any)
}

// Metrics считает приём и активацию подписок.
type Metrics interface {
	SubscriptionIngested()
	SubscriptionActivated(tier string)
}

// SubscriptionService управляет подписками.
type SubscriptionService struct {
	repo    SubscriptionRepository
	cache   Cache
	events  EventEmitter
	metrics Metrics
	log     *slog.Logger
	ttl     time.Duration
	now     func() time.Time
}

// NewSubscriptionService создает новый экземпляр SubscriptionService.
func NewSubscriptionService(repo SubscriptionRepository, cache Cache, events EventEmitter, metrics Metrics, log *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		repo:    repo,
		cache:   cache,
		events:  events,
		metrics: metrics,
		log:     log,
		ttl:     models.SubscriptionTTL,
		now:     time.Now,
	}
}

// Ingest сохраняет подписку из уведомления платёжного источника и возвращает её id.
func (s *SubscriptionService) Ingest(ctx context.Context, p *kofi.Payload) (string, error) {
	const op = "services.subscription.Ingest"

	if p.Type != kofi.TypeSubscription {
		return "", fmt.Errorf("%s: %q: %w", op, p.Type, models.ErrUnsupportedEventType)
	}

	sub := &models.Subscription{
		ID:         p.KofiTransactionID,
		Email:      p.Email,
		Name:       p.FromName,
		TierName:   p.TierName,
		Amount:     p.Amount,
		FirstTime:  p.IsFirstSubscriptionPayment,
		Expired:    false,
		ExpireTime: s.now().UTC().Truncate(time.Second).Add(s.ttl),
	}
	if err := s.repo.InsertSubscription(ctx, sub); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return "", fmt.Errorf("%s: %w", op, models.ErrDuplicateSubscription)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("subscription ingested",
		slog.String("op", op),
		slog.String("subscription_id", sub.ID),
		slog.String("tier", sub.TierName),
	)
	s.metrics.SubscriptionIngested()
	s.events.Emit(ctx, events.TypeSubscriptionIngested, events.SubscriptionIngested{
		SubscriptionID: sub.ID,
		Email:          sub.Email,
		TierName:       sub.TierName,
		ExpireTime:     sub.ExpireTime,
	})
	return sub.ID, nil
}

// List возвращает подписки владельца: сначала активные, затем остальные,
// внутри групп по убыванию expire_time. Флаг Expired пересчитывается на
// момент вызова и не сохраняется.
func (s *SubscriptionService) List(ctx context.Context, claims models.Claims) ([]*models.Subscription, error) {
	const op = "services.subscription.List"

	subs, err := s.repo.FindSubscriptions(ctx, models.SubscriptionFilter{Email: claims.Email})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	active := make([]*models.Subscription, 0, len(subs))
	inactive := make([]*models.Subscription, 0, len(subs))
	for _, sub := range subs {
		sub.Expired = sub.EffectivelyExpired(now)
		if !sub.Expired && sub.ActivatedBy == nil {
			active = append(active, sub)
		} else {
			inactive = append(inactive, sub)
		}
	}
	byExpiryDesc(active)
	byExpiryDesc(inactive)

	return append(active, inactive...), nil
}

func byExpiryDesc(subs []*models.Subscription) {
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].ExpireTime.After(subs[j].ExpireTime)
	})
}

// Activate привязывает подписку к вызывающему и выдаёт ему тариф.
// Подписка чужой почты неотличима от несуществующей.
func (s *SubscriptionService) Activate(ctx context.Context, id string, claims models.Claims) error {
	const op = "services.subscription.Activate"
	log := s.log.With(
		slog.String("op", op),
		slog.String("subscription_id", id),
		slog.Int64("user_id", claims.ID),
	)

	filter := models.SubscriptionFilter{ID: id, Email: claims.Email}
	subs, err := s.repo.FindSubscriptions(ctx, filter)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(subs) == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	sub := subs[0]

	if sub.ActivatedBy != nil {
		return fmt.Errorf("%s: %w", op, models.ErrAlreadyActivated)
	}
	// Граница исключена: подписка с expire_time == now ещё активируется,
	// хотя в List она уже считается истёкшей.
	if sub.ExpireTime.Before(s.now()) {
		return fmt.Errorf("%s: %w", op, models.ErrExpired)
	}

	premium := models.Premium{ExpireAt: sub.ExpireTime, TierName: sub.TierName}
	if err := s.repo.ActivateSubscription(ctx, filter, claims.ID, premium); err != nil {
		switch {
		case errors.Is(err, storage.ErrConflict):
			return fmt.Errorf("%s: %w", op, models.ErrAlreadyActivated)
		case errors.Is(err, storage.ErrNotFound):
			return fmt.Errorf("%s: %w", op, models.ErrUnknownUser)
		default:
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	log.Info("subscription activated", slog.String("tier", sub.TierName))

	if err := s.cache.Invalidate(ctx, claims.ID); err != nil {
		log.Warn("failed to invalidate user cache", sl.Err(err))
	}
	s.metrics.SubscriptionActivated(sub.TierName)
	s.events.Emit(ctx, events.TypeSubscriptionActivated, events.SubscriptionActivated{
		SubscriptionID: sub.ID,
		UserID:         claims.ID,
		TierName:       sub.TierName,
		ExpireAt:       sub.ExpireTime,
	})
	return nil
}
