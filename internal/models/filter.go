package models

// SubscriptionFilter задаёт условия выборки и условного обновления подписок.
// Пустые поля не участвуют в фильтре.
type SubscriptionFilter struct {
	ID          string
	Email       string
	Unactivated bool // Только подписки с ActivatedBy == nil
}

// Match проверяет подписку на соответствие фильтру.
func (f SubscriptionFilter) Match(s *Subscription) bool {
	if f.ID != "" && s.ID != f.ID {
		return false
	}
	if f.Email != "" && s.Email != f.Email {
		return false
	}
	if f.Unactivated && s.ActivatedBy != nil {
		return false
	}
	return true
}

// SubscriptionPatch описывает изменение подписки в рамках условного обновления.
type SubscriptionPatch struct {
	ActivatedBy *int64
	Expired     bool
}
