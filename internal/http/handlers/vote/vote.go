// Package vote реализует HTTP-обработчик уведомлений о голосах с площадок-каталогов.
//
// Тело запроса - JSON произвольной формы. Какая площадка прислала голос,
// определяет ledger по набору полей.
package vote

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/thomas-api/internal/http/response"
	"github.com/magabrotheeeer/thomas-api/internal/lib/sl"
	"github.com/magabrotheeeer/thomas-api/internal/models"
)

// Service начисляет голос.
type Service interface {
	CreditVote(ctx context.Context, raw map[string]any) error
}

// Handler обрабатывает уведомления о голосах.
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
// @Summary Засчитать голос
// @Description Принимает уведомление о голосе от discordbotlist или top.gg и начисляет голос и опыт.
// @Tags Votes
// @Accept json
// @Produce json
// @Param Authorization header string true "Токен площадки"
// @Param request body map[string]any true "Уведомление площадки"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Неизвестная форма или пользователь"
// @Failure 401 {object} response.ErrorResponse "Неверный токен площадки"
// @Failure 500 {object} response.ErrorResponse
// @Router /vote [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.vote.ServeHTTP"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var raw map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.service.CreditVote(r.Context(), raw)
	switch {
	case err == nil:
	case errors.Is(err, models.ErrMalformedRequest):
		log.Error("malformed vote payload", sl.Err(err))
		response.WriteError(w, r, http.StatusBadRequest, "malformed vote payload")
		return
	case errors.Is(err, models.ErrUnknownUser):
		log.Error("vote for unknown user", sl.Err(err))
		response.WriteError(w, r, http.StatusBadRequest, "unknown user")
		return
	default:
		log.Error("failed to credit vote", sl.Err(err))
		response.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	render.JSON(w, r, response.Response{Status: response.StatusOK})
}
