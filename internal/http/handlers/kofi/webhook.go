// Package kofi реализует HTTP-обработчик вебхука Ko-fi.
//
// Ko-fi ждёт 200 на любое корректное уведомление, поэтому события, не
// являющиеся подпиской, подтверждаются и пропускаются.
package kofi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/thomas-api/internal/http/response"
	kofipayload "github.com/magabrotheeeer/thomas-api/internal/lib/kofi"
	"github.com/magabrotheeeer/thomas-api/internal/lib/sl"
	"github.com/magabrotheeeer/thomas-api/internal/models"
)

// Service сохраняет подписку из уведомления.
type Service interface {
	Ingest(ctx context.Context, p *kofipayload.Payload) (string, error)
}

// Handler обрабатывает уведомления Ko-fi.
type Handler struct {
	log               *slog.Logger
	service           Service
	verificationToken string // Токен из настроек вебхука Ko-fi
}

// New создает новый Handler.
func New(log *slog.Logger, service Service, verificationToken string) *Handler {
	return &Handler{
		log:               log,
		service:           service,
		verificationToken: verificationToken,
	}
}

// ServeHTTP godoc
// @Summary Вебхук Ko-fi
// @Description Принимает уведомление Ko-fi (поле формы data с JSON) и сохраняет подписку.
// @Tags Webhooks
// @Accept x-www-form-urlencoded
// @Produce json
// @Param data formData string true "JSON уведомления"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректное уведомление"
// @Failure 401 {object} response.ErrorResponse "Неверный verification_token"
// @Failure 409 {object} response.ErrorResponse "Подписка уже сохранена"
// @Failure 500 {object} response.ErrorResponse
// @Router /kofi [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.kofi.ServeHTTP"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	payload, err := kofipayload.Decode(r)
	if err != nil {
		log.Error("failed to decode ko-fi payload", sl.Err(err))
		response.WriteError(w, r, http.StatusBadRequest, "invalid ko-fi payload")
		return
	}

	if err := payload.Verify(h.verificationToken); err != nil {
		log.Error("invalid verification token", sl.Err(err))
		response.WriteError(w, r, http.StatusUnauthorized, "invalid verification token")
		return
	}

	id, err := h.service.Ingest(r.Context(), payload)
	switch {
	case err == nil:
	case errors.Is(err, models.ErrUnsupportedEventType):
		log.Info("ignoring ko-fi event", slog.String("type", payload.Type))
		render.JSON(w, r, response.StatusOKWithData(map[string]any{
			"ignored": payload.Type,
		}))
		return
	case errors.Is(err, models.ErrDuplicateSubscription):
		log.Error("duplicate subscription", slog.String("subscription_id", payload.KofiTransactionID))
		response.WriteError(w, r, http.StatusConflict, "subscription already exists")
		return
	default:
		log.Error("failed to ingest subscription", sl.Err(err))
		response.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	log.Info("subscription stored", slog.String("subscription_id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"id": id,
	}))
}
