// Package llm calls an OpenAI-compatible chat completion endpoint to
// summarize transcripts.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hpungsan/recap/internal/errors"
	"github.com/hpungsan/recap/internal/summary"
)

// Defaults for Config.
const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
	DefaultTimeout     = 60 * time.Second
)

// maxResponseBytes caps how much of a completion response is read.
const maxResponseBytes = 1 << 20

// Config configures a Client. Zero values take defaults.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	// Temperature nil means DefaultTemperature.
	Temperature *float64
	MaxTokens   int
	// RequestsPerMinute throttles calls. 0 means unlimited.
	RequestsPerMinute int
	Timeout           time.Duration
	HTTPClient        *http.Client
}

// Client summarizes transcripts through chat completions.
type Client struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// New creates a Client.
func New(cfg Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature == nil {
		t := DefaultTemperature
		cfg.Temperature = &t
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return &Client{cfg: cfg, client: client, limiter: limiter, log: log}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Summarize asks the model for a summary of transcript in format t.
// Errors: INVALID_REQUEST when no API key is configured, CANCELLED when ctx
// ends while throttled, AI_API_ERROR for any provider failure.
func (c *Client) Summarize(ctx context.Context, transcript string, t summary.Type) (string, error) {
	if c.cfg.APIKey == "" {
		return "", errors.NewInvalidRequest("API key not configured: set llm_api_key or RECAP_LLM_API_KEY")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", errors.NewCancelled("summarization")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: t.Prompt()},
			{Role: "user", Content: strings.ToValidUTF8(transcript, "")},
		},
		Temperature: *c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", errors.NewInternal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", errors.NewCancelled("summarization")
		}
		return "", errors.NewAIAPI(err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", errors.NewAIAPI(fmt.Sprintf("read response: %v", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := http.StatusText(resp.StatusCode)
		var er errorResponse
		if json.Unmarshal(raw, &er) == nil && er.Error.Message != "" {
			msg = er.Error.Message
		}
		c.log.Warn("llm: request failed", zap.Int("status", resp.StatusCode), zap.String("message", msg))
		return "", errors.NewAIAPI(msg)
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", errors.NewAIAPI(fmt.Sprintf("decode response: %v", err))
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", errors.NewAIAPI("empty response")
	}

	c.log.Debug("llm: summary generated",
		zap.String("model", c.cfg.Model),
		zap.String("type", string(t)),
		zap.Duration("elapsed", time.Since(start)))
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
