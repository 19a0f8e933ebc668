// Package memory реализует хранилище пользователей и подписок в памяти процесса.
// Используется для локального запуска и в тестах; все операции выполняются
// под одним мьютексом, поэтому условные обновления атомарны.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/magabrotheeeer/thomas-api/internal/models"
	"github.com/magabrotheeeer/thomas-api/internal/storage"
)

// Store хранит копии записей; наружу всегда отдаются копии.
type Store struct {
	mu            sync.RWMutex
	users         map[int64]*models.User
	subscriptions map[string]*models.Subscription
	order         []string
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{
		users:         make(map[int64]*models.User),
		subscriptions: make(map[string]*models.Subscription),
	}
}

// PutUser сохраняет пользователя целиком. Ledger пользователей не создаёт,
// метод нужен для начального заполнения.
func (s *Store) PutUser(_ context.Context, u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = copyUser(u)
}

// FindUser возвращает пользователя по id.
func (s *Store) FindUser(_ context.Context, id int64) (*models.User, error) {
	const op = "storage.memory.FindUser"
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return copyUser(u), nil
}

// UpdateUser применяет патч и сообщает, был ли найден пользователь.
func (s *Store) UpdateUser(_ context.Context, id int64, patch models.UserPatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return false, nil
	}
	patch.Apply(u)
	return true, nil
}

// FindSubscriptions возвращает подписки, подходящие под фильтр, в порядке вставки.
func (s *Store) FindSubscriptions(_ context.Context, filter models.SubscriptionFilter) ([]*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Subscription
	for _, id := range s.order {
		sub := s.subscriptions[id]
		if filter.Match(sub) {
			result = append(result, copySubscription(sub))
		}
	}
	return result, nil
}

// InsertSubscription сохраняет новую подписку. Повторный id - ошибка, не upsert.
func (s *Store) InsertSubscription(_ context.Context, sub *models.Subscription) error {
	const op = "storage.memory.InsertSubscription"
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[sub.ID]; exists {
		return fmt.Errorf("%s: %w", op, storage.ErrDuplicate)
	}
	s.subscriptions[sub.ID] = copySubscription(sub)
	s.order = append(s.order, sub.ID)
	return nil
}

// ConditionalUpdateSubscription применяет патч, только если подписка всё ещё
// подходит под фильтр. Возвращает false, если фильтр не совпал.
func (s *Store) ConditionalUpdateSubscription(_ context.Context, filter models.SubscriptionFilter, patch models.SubscriptionPatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conditionalUpdate(filter, patch), nil
}

// ActivateSubscription привязывает подписку к пользователю и перезаписывает
// его тариф. Обе записи выполняются под одной блокировкой: либо обе, либо ни одной.
func (s *Store) ActivateSubscription(_ context.Context, filter models.SubscriptionFilter, userID int64, premium models.Premium) error {
	const op = "storage.memory.ActivateSubscription"
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("%s: user %d: %w", op, userID, storage.ErrNotFound)
	}
	filter.Unactivated = true
	if !s.conditionalUpdate(filter, models.SubscriptionPatch{ActivatedBy: &userID}) {
		return fmt.Errorf("%s: %w", op, storage.ErrConflict)
	}
	models.UserPatch{Premium: &premium}.Apply(u)
	return nil
}

// MarkExpired проставляет флаг expired всем подпискам, срок которых наступил.
func (s *Store) MarkExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, sub := range s.subscriptions {
		if !sub.Expired && !sub.ExpireTime.After(now) {
			sub.Expired = true
			n++
		}
	}
	return n, nil
}

// Ping всегда успешен.
func (s *Store) Ping(context.Context) error { return nil }

// Close ничего не освобождает.
func (s *Store) Close(context.Context) error { return nil }

func (s *Store) conditionalUpdate(filter models.SubscriptionFilter, patch models.SubscriptionPatch) bool {
	sub, ok := s.subscriptions[filter.ID]
	if !ok || !filter.Match(sub) {
		return false
	}
	if patch.ActivatedBy != nil {
		id := *patch.ActivatedBy
		sub.ActivatedBy = &id
	}
	if patch.Expired {
		sub.Expired = true
	}
	return true
}

func copyUser(u *models.User) *models.User {
	c := *u
	if u.LastVoted != nil {
		c.LastVoted = make(map[models.SiteTag]time.Time, len(u.LastVoted))
		for k, v := range u.LastVoted {
			c.LastVoted[k] = v
		}
	}
	if u.Premium != nil {
		p := *u.Premium
		c.Premium = &p
	}
	return &c
}

func copySubscription(sub *models.Subscription) *models.Subscription {
	c := *sub
	if sub.ActivatedBy != nil {
		id := *sub.ActivatedBy
		c.ActivatedBy = &id
	}
	return &c
}
