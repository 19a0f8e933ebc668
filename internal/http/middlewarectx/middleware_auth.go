// Package middlewarectx содержит HTTP middleware: проверку JWT владельца,
// проверку статического токена вебхука и ограничение частоты запросов.
//
// JWTMiddleware проверяет Bearer-токен из заголовка Authorization и кладёт
// проверенные claims в контекст запроса. При ошибке отвечает 401.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/thomas-api/internal/http/response"
	"github.com/magabrotheeeer/thomas-api/internal/lib/sl"
	"github.com/magabrotheeeer/thomas-api/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// ClaimsKey - ключ для models.Claims в контексте.
const ClaimsKey Key = "claims"

// Validator проверяет токен и возвращает claims владельца.
type Validator interface {
	ValidateClaims(token string) (*models.Claims, error)
}

// JWTMiddleware возвращает middleware, который проверяет JWT в заголовке Authorization.
func JWTMiddleware(validator Validator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Error("missing or invalid authorization header")
				response.WriteError(w, r, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			claims, err := validator.ValidateClaims(tokenStr)
			if err != nil {
				log.Error("invalid or expired token", sl.Err(err))
				response.WriteError(w, r, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, *claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext достаёт claims, положенные JWTMiddleware.
func ClaimsFromContext(ctx context.Context) (models.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(models.Claims)
	return claims, ok
}
