// Package check подтверждает клиенту права администратора.
package check

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/predictor-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/predictor-portal/internal/http/response"
)

// Handler обрабатывает GET /api/admin/check. Стоит за AdminOnly, поэтому
// сам права не проверяет.
type Handler struct{}

// New создает Handler.
func New() *Handler {
	return &Handler{}
}

// ServeHTTP godoc
// @Summary Проверка прав администратора
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Router /api/admin/check [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := middlewarectx.IdentityFrom(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"isAdmin": true,
		"email":   id.Email,
	}))
}
