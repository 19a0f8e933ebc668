// Package activate реализует HTTP-обработчик активации подписки.
//
// Подписка привязывается к пользователю из токена, пользователь получает тариф.
// Чужая подписка отвечает 404, как и несуществующая.
package activate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/thomas-api/internal/http/middlewarectx"
	"github.com/magabrotheeeer/thomas-api/internal/http/response"
	"github.com/magabrotheeeer/thomas-api/internal/lib/sl"
	"github.com/magabrotheeeer/thomas-api/internal/models"
)

// Service описывает интерфейс бизнес-логики активации подписки.
type Service interface {
	Activate(ctx context.Context, id string, claims models.Claims) error
}

// Handler обрабатывает запросы на активацию подписки.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Активировать подписку
// @Description Привязывает подписку к пользователю из токена и выдаёт тариф.
// @Tags Subscriptions
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID подписки"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Failure 409 {object} response.ErrorResponse "Подписка уже активирована"
// @Failure 410 {object} response.ErrorResponse "Срок подписки истёк"
// @Failure 500 {object} response.ErrorResponse
// @Router /subscriptions/{id}/activate [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.activate"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	claims, ok := middlewarectx.ClaimsFromContext(r.Context())
	if !ok {
		log.Error("claims missing from context")
		response.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		log.Error("empty subscription id")
		response.WriteError(w, r, http.StatusBadRequest, "empty subscription id")
		return
	}

	err := h.service.Activate(r.Context(), id, claims)
	switch {
	case err == nil:
	case errors.Is(err, models.ErrNotFound):
		log.Info("subscription not found", slog.String("subscription_id", id))
		response.WriteError(w, r, http.StatusNotFound, "subscription not found")
		return
	case errors.Is(err, models.ErrAlreadyActivated):
		log.Info("subscription already activated", slog.String("subscription_id", id))
		response.WriteError(w, r, http.StatusConflict, "subscription already activated")
		return
	case errors.Is(err, models.ErrExpired):
		log.Info("subscription expired", slog.String("subscription_id", id))
		response.WriteError(w, r, http.StatusGone, "subscription expired")
		return
	case errors.Is(err, models.ErrUnknownUser):
		log.Error("user not registered", sl.Err(err))
		response.WriteError(w, r, http.StatusNotFound, "user not found")
		return
	default:
		log.Error("failed to activate subscription", sl.Err(err))
		response.WriteError(w, r, http.StatusInternalServerError, "could not activate subscription")
		return
	}

	log.Info("subscription activated", slog.String("subscription_id", id))
	render.JSON(w, r, response.Response{Status: response.StatusOK})
}
