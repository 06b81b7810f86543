package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"
)

const completionBody = `{
  "id": "chatcmpl-test",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4.1",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "{\"ok\":true}"}}],
  "usage": {"prompt_tokens": 42, "completion_tokens": 7, "total_tokens": 49}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *APIClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := NewAPIClient(APIClientConfig{
		APIKey:  "sk-test",
		BaseURL: server.URL + "/v1/",
		Logger:  log.New(io.Discard),
	})
	t.Cleanup(c.Close)
	return c
}

func request() openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage("hello")},
		Model:       openai.ChatModel("gpt-4.1"),
		Temperature: openai.Float(0.7),
		MaxTokens:   openai.Int(2000),
	}
}

func TestCreateChatCompletion(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected authorization header %q", got)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionBody)
	})

	resp, err := c.CreateChatCompletion(context.Background(), request())
	if err != nil {
		t.Fatalf("CreateChatCompletion: %v", err)
	}
	if resp.Choices[0].Message.Content != `{"ok":true}` {
		t.Errorf("unexpected content %q", resp.Choices[0].Message.Content)
	}
	if resp.Usage.PromptTokens != 42 || resp.Usage.CompletionTokens != 7 {
		t.Errorf("unexpected usage %+v", resp.Usage)
	}
	if body["model"] != "gpt-4.1" || body["temperature"] != 0.7 || body["max_tokens"] != 2000.0 {
		t.Errorf("unexpected request body %v", body)
	}
}

func TestCreateChatCompletionProviderError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`)
	})

	_, err := c.CreateChatCompletion(context.Background(), request())
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %T %v", err, err)
	}
	if perr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", perr.StatusCode)
	}
	if !strings.Contains(err.Error(), "(429)") {
		t.Errorf("status code should be embedded in %q", err.Error())
	}
	if calls.Load() != 1 {
		t.Errorf("provider errors must not be retried, got %d calls", calls.Load())
	}
}

func TestCreateChatCompletionNoChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"chatcmpl-empty","object":"chat.completion","created":1,"model":"gpt-4.1","choices":[]}`)
	})

	if _, err := c.CreateChatCompletion(context.Background(), request()); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestCreateChatCompletionCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, completionBody)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.CreateChatCompletion(ctx, request()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
