package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"kahaani/ratelimiter"
)

const DefaultRequestsPerMinute = 60

const maxErrorBody = 512

// ProviderError is a non-success response from the model provider.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("model provider error (%d): %s", e.StatusCode, e.Body)
}

// APIClient wraps the openai-go client with request pacing and structured
// logging. It never retries.
type APIClient struct {
	client  openai.Client
	name    string
	logger  *log.Logger
	limiter *ratelimiter.Bucket
}

type APIClientConfig struct {
	Name              string
	APIKey            string
	BaseURL           string
	RequestsPerMinute int
	HTTPClient        *http.Client
	Logger            *log.Logger
}

func NewAPIClient(config APIClientConfig) *APIClient {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	if config.Name == "" {
		config.Name = "openai"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(config.HTTPClient))
	}

	return &APIClient{
		client:  openai.NewClient(opts...),
		name:    config.Name,
		logger:  config.Logger,
		limiter: ratelimiter.NewBucket(config.RequestsPerMinute),
	}
}

func (c *APIClient) Name() string { return c.name }

// CreateChatCompletion sends one chat completion request.
func (c *APIClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	startTime := time.Now()
	model := string(req.Model)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("request rate limit wait: %w", err)
	}

	resp, err := c.client.Chat.Completions.New(ctx, req)
	duration := time.Since(startTime)

	if err != nil {
		err = translateError(err)
		c.logger.Error("model provider request failed",
			"client", c.name,
			"model", model,
			"duration", duration,
			"error", err,
		)
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("model provider returned no choices (request %s)", resp.ID)
	}

	c.logger.Info("model provider request completed",
		"client", c.name,
		"model", model,
		"input_tokens", resp.Usage.PromptTokens,
		"output_tokens", resp.Usage.CompletionTokens,
		"total_tokens", resp.Usage.TotalTokens,
		"duration", duration,
		"request_id", resp.ID,
	)
	return resp, nil
}

// translateError turns an openai API error into a ProviderError. Transport
// errors pass through unchanged.
func translateError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	body := apiErr.Message
	if raw := apiErr.RawJSON(); raw != "" {
		body = raw
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &ProviderError{StatusCode: apiErr.StatusCode, Body: body}
}

// Close stops the request limiter.
func (c *APIClient) Close() {
	if c.limiter != nil {
		c.limiter.Stop()
	}
}

func (c *APIClient) AvailableRequests() int {
	return c.limiter.Available()
}
