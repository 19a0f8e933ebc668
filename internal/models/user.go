// Package models содержит доменные структуры ledger'а: пользователя с его
// счётчиками голосов и опыта, оплаченную подписку и вспомогательные типы
// для фильтрации и частичного обновления записей в хранилище.
package models

import "time"

// Premium описывает единственный действующий тариф пользователя.
// При каждой активации подписки поле перезаписывается целиком.
type Premium struct {
	ExpireAt time.Time `json:"expire_at"` // Момент окончания тарифа
	TierName string    `json:"tier_name"` // Название тарифа у платёжного источника
}

// User представляет пользователя бота. Запись создаётся внешним сервисом,
// ledger только изменяет её.
type User struct {
	ID        int64                 `json:"id"`         // Идентификатор у провайдера (Discord snowflake)
	Votes     int64                 `json:"votes"`      // Количество засчитанных голосов
	LastVoted map[SiteTag]time.Time `json:"last_voted"` // Время последнего голоса по каждой площадке
	XP        int64                 `json:"xp"`         // Накопленный опыт
	Premium   *Premium              `json:"premium,omitempty"`
}

// UserPatch описывает атомарное изменение пользователя: инкременты счётчиков
// и установку полей. Хранилище обязано применить весь патч одной операцией.
type UserPatch struct {
	IncVotes  int64
	IncXP     int64
	LastVoted map[SiteTag]time.Time
	Premium   *Premium
}

// IsEmpty сообщает, что патч ничего не меняет.
func (p UserPatch) IsEmpty() bool {
	return p.IncVotes == 0 && p.IncXP == 0 && len(p.LastVoted) == 0 && p.Premium == nil
}

// Apply применяет патч к копии пользователя в памяти.
func (p UserPatch) Apply(u *User) {
	u.Votes += p.IncVotes
	u.XP += p.IncXP
	if len(p.LastVoted) > 0 && u.LastVoted == nil {
		u.LastVoted = make(map[SiteTag]time.Time, len(p.LastVoted))
	}
	for site, at := range p.LastVoted {
		u.LastVoted[site] = at
	}
	if p.Premium != nil {
		premium := *p.Premium
		u.Premium = &premium
	}
}
