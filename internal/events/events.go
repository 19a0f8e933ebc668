// Package events описывает доменные события, которые сервис отправляет в брокер.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/thomas-api/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/thomas-api/internal/lib/sl"
	"github.com/magabrotheeeer/thomas-api/internal/models"
)

// Типы событий совпадают с ключами маршрутизации в RabbitMQ.
const (
	TypeVoteCredited          = rabbitmq.RoutingVoteCredited
	TypeSubscriptionIngested  = rabbitmq.RoutingSubscriptionIngested
	TypeSubscriptionActivated = rabbitmq.RoutingSubscriptionActivated
)

// Envelope - сообщение, уходящее в брокер.
type Envelope struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// VoteCredited публикуется после начисления голоса.
type VoteCredited struct {
	UserID int64          `json:"user_id"`
	Site   models.SiteTag `json:"site"`
	XP     int64          `json:"xp"`
}

// SubscriptionIngested публикуется после сохранения новой подписки.
type SubscriptionIngested struct {
	SubscriptionID string    `json:"subscription_id"`
	Email          string    `json:"email"`
	TierName       string    `json:"tier_name"`
	ExpireTime     time.Time `json:"expire_time"`
}

// SubscriptionActivated публикуется после привязки подписки к пользователю.
type SubscriptionActivated struct {
	SubscriptionID string    `json:"subscription_id"`
	UserID         int64     `json:"user_id"`
	TierName       string    `json:"tier_name"`
	ExpireAt       time.Time `json:"expire_at"`
}

// Publisher отправляет сообщение с ключом маршрутизации.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Nop ничего не публикует. Используется, когда брокер не настроен.
type Nop struct{}

// Publish реализует Publisher.
func (Nop) Publish(context.Context, string, any) error { return nil }

// Emitter оборачивает Publisher в конверт и глотает ошибки доставки.
type Emitter struct {
	pub Publisher
	log *slog.Logger
	now func() time.Time
}

// NewEmitter создаёт Emitter. Если pub == nil, используется Nop.
func NewEmitter(pub Publisher, log *slog.Logger) *Emitter {
	if pub == nil {
		pub = Nop{}
	}
	return &Emitter{pub: pub, log: log, now: time.Now}
}

// Emit публикует событие. Ошибка брокера только логируется: запись в хранилище
// к этому моменту уже произошла.
func (e *Emitter) Emit(ctx context.Context, eventType string, payload any) {
	const op = "events.Emit"
	env := Envelope{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: e.now().UTC(),
		Payload:    payload,
	}
	if err := e.pub.Publish(ctx, eventType, env); err != nil {
		e.log.Warn("failed to publish event",
			slog.String("op", op),
			slog.String("type", eventType),
			slog.String("event_id", env.ID),
			sl.Err(err),
		)
	}
}
