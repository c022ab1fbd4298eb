package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dramaforge/shared/interfaces"
	"dramaforge/shared/models"

	"go.uber.org/zap"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ interfaces.FrameGenerator = (*HTTPFrameGenerator)(nil)

const maxErrorBodyBytes = 1024

// HTTPFrameGenerator вызывает внешний генератор медиа по JSON/HTTP.
type HTTPFrameGenerator struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPFrameGenerator создает клиент генератора по адресу baseURL.
func NewHTTPFrameGenerator(baseURL, apiToken string, timeout time.Duration, logger *zap.Logger) *HTTPFrameGenerator {
	return &HTTPFrameGenerator{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("HTTPFrameGenerator"),
	}
}

// GenerateFrame запрашивает один слот кандидата.
func (c *HTTPFrameGenerator) GenerateFrame(ctx context.Context, req models.FrameRequest) (*models.FrameData, error) {
	return c.post(ctx, "/v1/frames", req)
}

// ComposeFrame собирает кадр из композиции зрителя.
func (c *HTTPFrameGenerator) ComposeFrame(ctx context.Context, params models.CompositionParams) (*models.FrameData, error) {
	return c.post(ctx, "/v1/compositions", params)
}

func (c *HTTPFrameGenerator) post(ctx context.Context, path string, body interface{}) (*models.FrameData, error) {
	log := c.logger.With(zap.String("path", path))

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generator request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create generator request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn("Generator request failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", models.ErrGenerationFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		log.Warn("Generator returned non-OK status", zap.Int("status_code", resp.StatusCode), zap.ByteString("body", detail))
		return nil, fmt.Errorf("%w: generator returned status %d", models.ErrGenerationFailure, resp.StatusCode)
	}

	// Ожидаем { "data": { ...FrameData } }
	var payload struct {
		Data *models.FrameData `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: failed to decode generator response: %w", models.ErrGenerationFailure, err)
	}
	if payload.Data == nil {
		return nil, fmt.Errorf("%w: generator response has no frame", models.ErrGenerationFailure)
	}
	return payload.Data, nil
}
