// Package predictor клиент внешнего сервиса предсказаний.
package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/magabrotheeeer/predictor-portal/internal/config"
	"github.com/magabrotheeeer/predictor-portal/internal/metrics"
)

// UpstreamError сервис предсказаний ответил не 2xx.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("predictor responded with status %d", e.StatusCode)
	}
	return fmt.Sprintf("predictor responded with status %d: %s", e.StatusCode, e.Message)
}

// Client обращается к сервису предсказаний по HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// NewClient создаёт клиент по настройкам cfg. m может быть nil.
func NewClient(cfg config.Predictor, m *metrics.Metrics) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		metrics:    m,
	}
}

// Predict запрашивает подсказку по последнему символу.
func (c *Client) Predict(ctx context.Context, req PredictRequest) (*PredictResponse, error) {
	var resp PredictResponse
	if err := c.postJSON(ctx, "predict", "/api/predict", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Train передаёт сервису обучающую последовательность.
func (c *Client) Train(ctx context.Context, req TrainRequest) (*TrainResponse, error) {
	var resp TrainResponse
	if err := c.postJSON(ctx, "train", "/api/train", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExtractText отправляет PDF и получает извлечённую последовательность.
func (c *Client) ExtractText(ctx context.Context, filename string, file io.Reader) (*ExtractResponse, error) {
	const op = "predictor.ExtractText"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err = io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = mw.Close(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract_text", &buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp ExtractResponse
	if err := c.do(req, "extract", &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &resp, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint, path string, body, result any) error {
	op := "predictor." + endpoint

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	if err := c.do(req, endpoint, result); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Client) do(req *http.Request, endpoint string, result any) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.Predictor(endpoint, err, time.Since(start))
	}()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		upstream := &UpstreamError{StatusCode: resp.StatusCode}
		var e errorResponse
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e) == nil {
			upstream.Message = e.Error
		}
		return upstream
	}

	return json.NewDecoder(resp.Body).Decode(result)
}
