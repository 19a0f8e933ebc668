// Package kofi разбирает уведомления вебхука Ko-fi.
//
// Ko-fi присылает application/x-www-form-urlencoded запрос с единственным
// полем data, внутри которого лежит JSON.
package kofi

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/thomas-api/internal/models"
)

// Типы уведомлений Ko-fi.
const (
	TypeDonation     = "Donation"
	TypeSubscription = "Subscription"
	TypeCommission   = "Commission"
	TypeShopOrder    = "Shop Order"
)

// FormField - имя поля формы, в котором лежит JSON уведомления.
const FormField = "data"

// Payload - уведомление Ko-fi.
type Payload struct {
	VerificationToken          string `json:"verification_token" validate:"required"`
	MessageID                  string `json:"message_id"`
	Timestamp                  string `json:"timestamp"`
	Type                       string `json:"type" validate:"required"`
	IsPublic                   bool   `json:"is_public"`
	FromName                   string `json:"from_name"`
	Message                    string `json:"message"`
	Amount                     string `json:"amount"`
	URL                        string `json:"url"`
	Email                      string `json:"email" validate:"required,email"`
	Currency                   string `json:"currency"`
	IsSubscriptionPayment      bool   `json:"is_subscription_payment"`
	IsFirstSubscriptionPayment bool   `json:"is_first_subscription_payment"`
	KofiTransactionID          string `json:"kofi_transaction_id" validate:"required"`
	TierName                   string `json:"tier_name"`
}

var validate = validator.New()

// Decode извлекает и проверяет уведомление из формы запроса.
// Ошибки разбора оборачивают models.ErrMalformedRequest.
func Decode(r *http.Request) (*Payload, error) {
	const op = "kofi.Decode"

	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrMalformedRequest, err)
	}
	raw := r.PostForm.Get(FormField)
	if raw == "" {
		return nil, fmt.Errorf("%s: %w: empty %q field", op, models.ErrMalformedRequest, FormField)
	}
	return Parse([]byte(raw))
}

// Parse разбирает JSON уведомления.
func Parse(data []byte) (*Payload, error) {
	const op = "kofi.Parse"

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrMalformedRequest, err)
	}
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, fmt.Errorf("%s: %w: %s", op, models.ErrMalformedRequest, verrs.Error())
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}

// Verify сравнивает токен уведомления с ожидаемым за постоянное время.
// С пустым ожидаемым токеном не проходит ни одно уведомление.
func (p *Payload) Verify(expected string) error {
	if expected == "" || subtle.ConstantTimeCompare([]byte(p.VerificationToken), []byte(expected)) != 1 {
		return models.ErrInvalidToken
	}
	return nil
}
