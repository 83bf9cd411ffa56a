package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tg-chatstat-go/internal/config"
)

// Service generates analysis texts from user data. Both operations are
// best-effort external calls: errors surface to the caller, nothing is
// cached or persisted here.
type Service interface {
	// AnalyzeStyle describes the communication style behind a blob of
	// message texts.
	AnalyzeStyle(ctx context.Context, messages string) (string, error)
	// Portrait sketches a profile from just a username.
	Portrait(ctx context.Context, username string) (string, error)
}

const (
	analyzePrompt  = "Привет. На основе приведенных сообщений ниже проанализируй стиль общения человека (формальный/неформальный). Дай свои комментарии. "
	portraitPrompt = "Привет. На основе одного никнейма постарайся составить психологический портрет человека. "
)

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	cfg        *config.AIConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates the analysis client.
func NewClient(cfg *config.AIConfig, logger *logrus.Logger) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}
}

func (c *Client) AnalyzeStyle(ctx context.Context, messages string) (string, error) {
	return c.generate(ctx, analyzePrompt+messages)
}

func (c *Client) Portrait(ctx context.Context, username string) (string, error) {
	return c.generate(ctx, portraitPrompt+username)
}

// generate sends the prompt with retry and exponential backoff.
func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	const maxRetries = 3
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		response, err := c.complete(ctx, prompt)
		if err == nil {
			return response, nil
		}

		lastErr = err
		c.logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"error":   err.Error(),
		}).Warn("AI request failed, retrying...")

		if attempt < maxRetries {
			waitTime := time.Duration(2<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(waitTime):
			}
		}
	}

	return "", fmt.Errorf("ai request failed after %d attempts: %w", maxRetries, lastErr)
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if parsed.Error != nil {
		return "", fmt.Errorf("ai error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty ai response")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
