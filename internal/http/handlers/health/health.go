// Package health отвечает на проверку готовности сервиса.
package health

import (
	"net/http"

	"github.com/go-chi/render"
)

// Message - тело ответа проверки готовности.
const Message = "Thomas is ready!"

// Handler отвечает текстом готовности.
type Handler struct{}

// New создает Handler.
func New() *Handler {
	return &Handler{}
}

// ServeHTTP godoc
// @Summary Проверка готовности
// @Tags Health
// @Produce plain
// @Success 200 {string} string "Thomas is ready!"
// @Router / [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	render.PlainText(w, r, Message)
}
