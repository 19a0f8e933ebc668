package middlewarectx

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/thomas-api/internal/http/response"
)

// StaticTokenMiddleware пропускает запрос, только если заголовок Authorization
// совпадает с token. Так площадки-каталоги подписывают уведомления о голосах.
// С пустым token отклоняется любой запрос.
func StaticTokenMiddleware(token string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.StaticTokenMiddleware"
			got := r.Header.Get("Authorization")
			if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				log.Error("invalid webhook token",
					slog.String("op", op),
					slog.String("request_id", middleware.GetReqID(r.Context())),
				)
				response.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
