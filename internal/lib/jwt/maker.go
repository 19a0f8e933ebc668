// Package jwt реализует границу идентификации: выпуск и проверку подписанных
// токенов владельца с claim полями id и email.
package jwt

import (
	"time"

	"github.com/magabrotheeeer/thomas-api/internal/models"
)

// Maker описывает интерфейс для генерации и проверки токенов владельца.
type Maker interface {
	// GenerateToken выпускает токен для пользователя с указанными id и почтой.
	GenerateToken(id int64, email string) (string, error)
	// ValidateClaims проверяет подпись и срок токена и возвращает его claims.
	ValidateClaims(tokenStr string) (*models.Claims, error)
}

// MakerImpl реализует Maker с использованием секретного ключа
// и времени жизни токена (TTL).
type MakerImpl struct {
	secretKey string        // Секретный ключ для подписи токенов.
	tokenTTL  time.Duration // Время жизни токена.
}

// NewJWTMaker создаёт новый экземпляр MakerImpl на основе секретного ключа и TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}
