// Package thomas собирает HTTP API: хранилище, кэш, брокер, сервисы и маршруты.
package thomas

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/thomas-api/internal/config"
	"github.com/magabrotheeeer/thomas-api/internal/http/handlers/health"
	"github.com/magabrotheeeer/thomas-api/internal/http/handlers/kofi"
	"github.com/magabrotheeeer/thomas-api/internal/http/handlers/subscription/activate"
	"github.com/magabrotheeeer/thomas-api/internal/http/handlers/subscription/list"
	"github.com/magabrotheeeer/thomas-api/internal/http/handlers/users/me"
	"github.com/magabrotheeeer/thomas-api/internal/http/handlers/vote"
	"github.com/magabrotheeeer/thomas-api/internal/http/middlewarectx"
)

// Services - сервисы, которые обслуживают маршруты.
type Services struct {
	Ledger       vote.Service
	Subscription interface {
		kofi.Service
		list.Service
		activate.Service
	}
	Users    me.Service
	Identity middlewarectx.Validator
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config, svc Services, gatherer prometheus.Gatherer) {
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Get("/", health.New().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		// Вебхуки площадок и платёжного источника
		r.With(middlewarectx.StaticTokenMiddleware(cfg.DBLToken, logger)).
			Post("/vote", vote.New(logger, svc.Ledger).ServeHTTP)
		r.Post("/kofi", kofi.New(logger, svc.Subscription, cfg.KofiToken).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(svc.Identity, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger, cfg.RateLimit, cfg.RateBurst))
			r.Get("/subscriptions", list.New(logger, svc.Subscription).ServeHTTP)
			r.Post("/subscriptions/{id}/activate", activate.New(logger, svc.Subscription).ServeHTTP)
			r.Get("/users/me", me.New(logger, svc.Users).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
