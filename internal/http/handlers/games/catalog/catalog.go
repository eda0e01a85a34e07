// Package catalog обработчики каталога игр.
package catalog

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/predictor-portal/internal/http/response"
	"github.com/magabrotheeeer/predictor-portal/internal/models"
)

// ListHandler обрабатывает GET /api/games.
type ListHandler struct{}

// NewList создает ListHandler.
func NewList() *ListHandler {
	return &ListHandler{}
}

// ServeHTTP godoc
// @Summary Каталог игр
// @Tags Games
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]models.Game}
// @Router /api/games [get]
func (h *ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.StatusOKWithData(models.Games))
}

// ReadHandler обрабатывает GET /api/games/{id}.
type ReadHandler struct{}

// NewRead создает ReadHandler.
func NewRead() *ReadHandler {
	return &ReadHandler{}
}

// ServeHTTP godoc
// @Summary Игра по идентификатору
// @Tags Games
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID игры"
// @Success 200 {object} response.Response{data=models.Game}
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/games/{id} [get]
func (h *ReadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	game, status, msg := GameFromURL(r)
	if status != http.StatusOK {
		render.Status(r, status)
		render.JSON(w, r, response.Error(msg))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(game))
}

// GameFromURL ищет игру по параметру {id} маршрута. При ошибке возвращает
// статус ответа и сообщение.
func GameFromURL(r *http.Request) (models.Game, int, string) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return models.Game{}, http.StatusBadRequest, "failed to decode id from url"
	}
	game, ok := models.FindGame(id)
	if !ok {
		return models.Game{}, http.StatusNotFound, "game not found"
	}
	return game, http.StatusOK, ""
}
