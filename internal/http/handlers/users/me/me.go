// Package me реализует HTTP-обработчик профиля текущего пользователя.
package me

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/thomas-api/internal/http/middlewarectx"
	"github.com/magabrotheeeer/thomas-api/internal/http/response"
	"github.com/magabrotheeeer/thomas-api/internal/lib/sl"
	"github.com/magabrotheeeer/thomas-api/internal/models"
)

// Service возвращает профиль пользователя.
type Service interface {
	Profile(ctx context.Context, claims models.Claims) (*models.User, error)
}

// Handler обрабатывает запросы профиля.
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
// @Summary Профиль пользователя
// @Description Возвращает голоса, опыт и действующий тариф пользователя из токена.
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.User}
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse
// @Router /users/me [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.me"

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

	u, err := h.service.Profile(r.Context(), claims)
	if err != nil {
		if errors.Is(err, models.ErrUnknownUser) {
			log.Info("user not found", slog.Int64("user_id", claims.ID))
			response.WriteError(w, r, http.StatusNotFound, "user not found")
			return
		}
		log.Error("failed to read profile", sl.Err(err))
		response.WriteError(w, r, http.StatusInternalServerError, "could not read profile")
		return
	}

	render.JSON(w, r, response.StatusOKWithData(u))
}
