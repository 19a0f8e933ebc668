package jwt

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/magabrotheeeer/thomas-api/internal/models"
)

// CustomClaims описывает данные владельца, хранящиеся в JWT.
// id передаётся строкой: snowflake не помещается в float64 без потерь.
type CustomClaims struct {
	UserID               string `json:"id"`
	Email                string `json:"email"`
	jwt.RegisteredClaims        // Стандартные claims JWT (ExpiresAt, IssuedAt и пр.)
}

// GenerateToken создает JWT с id и почтой пользователя, подписывая его секретным ключом.
func (j *MakerImpl) GenerateToken(id int64, email string) (string, error) {
	now := time.Now()
	claims := CustomClaims{
		UserID: strconv.FormatInt(id, 10),
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.secretKey))
}

// ValidateClaims разбирает токен, проверяет подпись и срок действия.
// Любая ошибка проверки оборачивает models.ErrInvalidToken.
func (j *MakerImpl) ValidateClaims(tokenStr string) (*models.Claims, error) {
	const op = "jwt.ValidateClaims"
	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(j.secretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidToken)
	}
	id, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil || claims.Email == "" {
		return nil, fmt.Errorf("%s: %w: incomplete claims", op, models.ErrInvalidToken)
	}
	return &models.Claims{ID: id, Email: claims.Email}, nil
}
