package service

import (
	"context"
	"errors"
	"fmt"
	"lesson_bundle_backend/internal/config"
	"lesson_bundle_backend/internal/util"
	"lesson_bundle_backend/pkg/logger"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ContentProvider turns a prompt into generated text.
type ContentProvider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ProviderIdentity is implemented by providers that can report which backend
// and model produced their output.
type ProviderIdentity interface {
	Identity() (provider, model string)
}

const systemPrompt = "You are a curriculum assistant for classroom teachers. " +
	"Follow the output format in the request exactly and add nothing else."

type AIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionRequest struct {
	Model       string          `json:"model"`
	Messages    []AIChatMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
}

type ChatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message AIChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// AIService talks to an OpenAI-compatible chat completions endpoint.
type AIService struct {
	mu     sync.RWMutex
	config config.AIConfig
	client *resty.Client
}

func NewAIService(cfg config.AIConfig) *AIService {
	s := &AIService{}
	s.UpdateConfig(cfg)
	return s
}

func newRestyClient(cfg config.AIConfig) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout()).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(cfg.APIKey).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})
}

// UpdateConfig swaps the endpoint settings; in-flight calls finish on the
// old client.
func (s *AIService) UpdateConfig(cfg config.AIConfig) {
	client := newRestyClient(cfg)
	s.mu.Lock()
	s.config = cfg
	s.client = client
	s.mu.Unlock()
}

func (s *AIService) snapshot() (config.AIConfig, *resty.Client) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config, s.client
}

func (s *AIService) Identity() (string, string) {
	cfg, _ := s.snapshot()
	return cfg.Provider, cfg.Model
}

func (s *AIService) Generate(ctx context.Context, prompt string) (string, error) {
	cfg, client := s.snapshot()

	reqBody := ChatCompletionRequest{
		Model: cfg.Model,
		Messages: []AIChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: cfg.Temperature,
	}

	var result ChatCompletionResponse
	resp, err := client.R().
		SetContext(ctx).
		SetBody(reqBody).
		SetResult(&result).
		SetError(&result).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("%w: %w", util.ErrProviderUnavailable, err)
	}

	if resp.IsError() {
		msg := resp.Status()
		if result.Error != nil && result.Error.Message != "" {
			msg = result.Error.Message
		}
		logger.Log.Warn("AI provider returned error",
			zap.Int("status", resp.StatusCode()),
			zap.String("model", cfg.Model),
			zap.String("message", msg),
		)
		return "", fmt.Errorf("%w: status %d: %s", util.ErrProviderUnavailable, resp.StatusCode(), msg)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%w: AI returned no choices", util.ErrMalformedProviderOutput)
	}

	return result.Choices[0].Message.Content, nil
}
