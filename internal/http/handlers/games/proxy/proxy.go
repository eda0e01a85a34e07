// Package proxy обработчики страницы игры, проксирующие запросы в сервис
// предсказаний. Доступны только с действующим планом.
package proxy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/predictor-portal/internal/http/handlers/games/catalog"
	"github.com/magabrotheeeer/predictor-portal/internal/http/response"
	"github.com/magabrotheeeer/predictor-portal/internal/lib/sl"
	"github.com/magabrotheeeer/predictor-portal/internal/predictor"
)

// Predictor клиент сервиса предсказаний.
type Predictor interface {
	Predict(ctx context.Context, req predictor.PredictRequest) (*predictor.PredictResponse, error)
	Train(ctx context.Context, req predictor.TrainRequest) (*predictor.TrainResponse, error)
	ExtractText(ctx context.Context, filename string, file io.Reader) (*predictor.ExtractResponse, error)
}

// PredictRequest тело запроса предсказания.
type PredictRequest struct {
	LastChar string `json:"last_char" validate:"required,oneof=A B"`
}

// TrainRequest тело запроса обучения.
type TrainRequest struct {
	Sequence string `json:"sequence" validate:"required"`
}

// Handler обрабатывает predict, train и extract для игры {id}.
type Handler struct {
	log            *slog.Logger
	client         Predictor
	validate       *validator.Validate
	maxUploadBytes int64
}

// New создает Handler. maxUploadBytes ограничивает размер загружаемого PDF.
func New(log *slog.Logger, client Predictor, maxUploadBytes int64) *Handler {
	return &Handler{
		log:            log,
		client:         client,
		validate:       validator.New(),
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// checkGame отвечает 400/404, если игры {id} нет в каталоге.
func checkGame(w http.ResponseWriter, r *http.Request) bool {
	_, status, msg := catalog.GameFromURL(r)
	if status != http.StatusOK {
		render.Status(r, status)
		render.JSON(w, r, response.Error(msg))
		return false
	}
	return true
}

func (h *Handler) upstreamFailed(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var upstream *predictor.UpstreamError
	msg := "prediction service unavailable"
	if errors.As(err, &upstream) && upstream.Message != "" {
		msg = upstream.Message
	}
	log.Error("prediction service call failed", sl.Err(err))
	render.Status(r, http.StatusBadGateway)
	render.JSON(w, r, response.Error(msg))
}

// Predict godoc
// @Summary Предсказать следующий символ
// @Tags Games
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID игры"
// @Param request body PredictRequest true "Последний символ, A или B"
// @Success 200 {object} response.Response{data=predictor.PredictResponse}
// @Failure 400 {object} response.ErrorResponse
// @Failure 402 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 429 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /api/games/{id}/predict [post]
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.games.predict")
	if !checkGame(w, r) {
		return
	}

	var req PredictRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode request"))
		return
	}
	req.LastChar = strings.ToUpper(strings.TrimSpace(req.LastChar))
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		errors.As(err, &verrs)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(verrs))
		return
	}

	resp, err := h.client.Predict(r.Context(), predictor.PredictRequest{LastChar: req.LastChar})
	if err != nil {
		h.upstreamFailed(w, r, log, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(resp))
}

// Train godoc
// @Summary Обучить модель на последовательности
// @Tags Games
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID игры"
// @Param request body TrainRequest true "Последовательность из A и B"
// @Success 200 {object} response.Response{data=predictor.TrainResponse}
// @Failure 400 {object} response.ErrorResponse
// @Failure 402 {object} response.Response
// @Failure 502 {object} response.ErrorResponse
// @Router /api/games/{id}/train [post]
func (h *Handler) Train(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.games.train")
	if !checkGame(w, r) {
		return
	}

	var req TrainRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode request"))
		return
	}
	req.Sequence = strings.TrimSpace(req.Sequence)
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		errors.As(err, &verrs)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(verrs))
		return
	}

	resp, err := h.client.Train(r.Context(), predictor.TrainRequest{Sequence: req.Sequence})
	if err != nil {
		h.upstreamFailed(w, r, log, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(resp))
}

// Extract godoc
// @Summary Извлечь последовательность из PDF
// @Tags Games
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID игры"
// @Param file formData file true "PDF с историей"
// @Success 200 {object} response.Response{data=predictor.ExtractResponse}
// @Failure 400 {object} response.ErrorResponse
// @Failure 402 {object} response.Response
// @Failure 413 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /api/games/{id}/extract [post]
func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.games.extract")
	if !checkGame(w, r) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			render.Status(r, http.StatusRequestEntityTooLarge)
			render.JSON(w, r, response.Error("file is too large"))
			return
		}
		log.Info("no file in request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("no file provided"))
		return
	}
	defer func() {
		_ = file.Close()
	}()

	resp, err := h.client.ExtractText(r.Context(), hdr.Filename, file)
	if err != nil {
		h.upstreamFailed(w, r, log, err)
		return
	}
	render.JSON(w, r, response.StatusOKWithData(resp))
}
