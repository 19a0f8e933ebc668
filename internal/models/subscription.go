package models

import "time"

// SubscriptionTTL - срок действия оплаченной подписки: 31 день обслуживания
// плюс 1 день льготного периода.
const SubscriptionTTL = 32 * 24 * time.Hour

// Subscription представляет подписку, купленную через платёжный webhook.
// ActivatedBy переходит из nil в id пользователя ровно один раз,
// Expired переходит из false в true и больше не сбрасывается.
type Subscription struct {
	ID          string    `json:"id"`           // Идентификатор транзакции у платёжного источника
	Email       string    `json:"email"`        // Почта покупателя, по ней определяется владелец
	Name        string    `json:"name"`         // Имя покупателя
	TierName    string    `json:"tier_name"`    // Название тарифа
	Amount      string    `json:"amount"`       // Сумма платежа в виде строки, как её присылает источник
	FirstTime   bool      `json:"first_time"`   // Первый платёж по подписке
	ActivatedBy *int64    `json:"activated_by"` // Пользователь, активировавший подписку
	Expired     bool      `json:"expired"`
	ExpireTime  time.Time `json:"expire_time"`
}

// EffectivelyExpired пересчитывает истечение подписки на момент now.
// Сохранённый флаг Expired лишь кэширует это вычисление.
func (s *Subscription) EffectivelyExpired(now time.Time) bool {
	return s.Expired || !s.ExpireTime.After(now)
}

// Claimable сообщает, можно ли ещё активировать подписку на момент now.
func (s *Subscription) Claimable(now time.Time) bool {
	return s.ActivatedBy == nil && !s.EffectivelyExpired(now)
}
