package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"atlas-service/internal/models"

	"go.uber.org/zap"
)

// Client talks to an OpenRouter-compatible chat completion API. One
// attempt per call: failures surface to the caller, who decides whether
// the user re-submits.
type Client struct {
	apiKey     string
	baseURL    string
	referer    string
	title      string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds configuration for the OpenRouter client.
type Config struct {
	APIKey  string
	BaseURL string // e.g. "https://openrouter.ai/api/v1"
	Referer string
	Title   string
	Timeout time.Duration
}

// chatRequest represents the request structure for the chat completion
// endpoint.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse represents the response structure from the API.
type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// NewClient creates a new OpenRouter client. A missing API key is not an
// error here: Send fails fast with models.ErrNotConfigured instead, so the
// rest of the application keeps working without credentials.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	client := &Client{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		referer:    cfg.Referer,
		title:      cfg.Title,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}

	logger.Info("OpenRouter client initialized",
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("configured", cfg.APIKey != ""))

	return client
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Send dispatches a two-message (system, user) chat request and returns
// the assistant reply. Without an API key it returns
// models.ErrNotConfigured before any network I/O. Transport errors,
// non-2xx statuses and malformed bodies return models.ErrGatewayFailure
// with diagnostic detail.
func (c *Client) Send(ctx context.Context, systemContext, userContent, modelID string) (string, error) {
	if c.apiKey == "" {
		return "", models.ErrNotConfigured
	}

	reqBody := chatRequest{
		Model: modelID,
		Messages: []chatMessage{
			{Role: "system", Content: systemContext},
			{Role: "user", Content: userContent},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: failed to marshal request: %v", models.ErrGatewayFailure, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %v", models.ErrGatewayFailure, err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		req.Header.Set("X-Title", c.title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("OpenRouter API error", zap.Error(err))
		return "", fmt.Errorf("%w: request failed: %v", models.ErrGatewayFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", models.ErrGatewayFailure, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("OpenRouter API error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return "", fmt.Errorf("%w: status %d: %s", models.ErrGatewayFailure, resp.StatusCode, string(body))
	}

	var apiResp chatResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("%w: failed to unmarshal response: %v", models.ErrGatewayFailure, err)
	}

	if apiResp.Error != nil {
		return "", fmt.Errorf("%w: %s", models.ErrGatewayFailure, apiResp.Error.Message)
	}

	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", models.ErrGatewayFailure)
	}

	c.logger.Debug("OpenRouter reply received",
		zap.String("model", modelID),
		zap.String("finish_reason", apiResp.Choices[0].FinishReason))

	return apiResp.Choices[0].Message.Content, nil
}

// Close closes the client and releases resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
