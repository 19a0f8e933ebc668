// Package list реализует HTTP-обработчик выдачи подписок владельца.
//
// Подписки отдаются в порядке, который формирует сервис: сначала доступные
// для активации, затем остальные.
package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/thomas-api/internal/http/middlewarectx"
	"github.com/magabrotheeeer/thomas-api/internal/http/response"
	"github.com/magabrotheeeer/thomas-api/internal/lib/sl"
	"github.com/magabrotheeeer/thomas-api/internal/models"
)

// Service описывает интерфейс бизнес-логики получения списка подписок.
type Service interface {
	List(ctx context.Context, claims models.Claims) ([]*models.Subscription, error)
}

// Handler обрабатывает запросы на получение списка подписок.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики подписок
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Список подписок
// @Description Возвращает подписки, купленные на почту из токена.
// @Tags Subscriptions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]models.Subscription}
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse
// @Router /subscriptions [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.list"

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

	subs, err := h.service.List(r.Context(), claims)
	if err != nil {
		log.Error("failed to list subscriptions", sl.Err(err))
		response.WriteError(w, r, http.StatusInternalServerError, "could not list subscriptions")
		return
	}

	log.Info("subscriptions listed", slog.Int("count", len(subs)))
	render.JSON(w, r, response.StatusOKWithData(subs))
}
