package models

import "errors"

// Ошибки ledger'а. Все они конечные и видны клиенту, ядро их не повторяет;
// HTTP-слой сопоставляет каждой свой статус.
var (
	// ErrMalformedRequest - тело голоса не подходит ни под одну известную форму.
	ErrMalformedRequest = errors.New("malformed request")
	// ErrUnknownUser - пользователь, за которого пришёл голос, не найден.
	ErrUnknownUser = errors.New("unknown user")
	// ErrUnsupportedEventType - платёжное событие не является подпиской.
	ErrUnsupportedEventType = errors.New("unsupported event type")
	// ErrDuplicateSubscription - подписка с таким id уже сохранена.
	ErrDuplicateSubscription = errors.New("duplicate subscription")
	// ErrNotFound - подписка не существует или принадлежит другой почте.
	ErrNotFound = errors.New("subscription not found")
	// ErrAlreadyActivated - подписка уже активирована.
	ErrAlreadyActivated = errors.New("subscription already activated")
	// ErrExpired - срок подписки истёк.
	ErrExpired = errors.New("subscription expired")
	// ErrInvalidToken - токен не прошёл проверку.
	ErrInvalidToken = errors.New("invalid token")
)
