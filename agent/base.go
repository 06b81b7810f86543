package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"

	"kahaani/cost"
)

// ResponseMode controls how strictly the provider is asked for JSON.
type ResponseMode string

const (
	ResponseModeOff        ResponseMode = "off"
	ResponseModeJSONObject ResponseMode = "json_object"
	ResponseModeJSONSchema ResponseMode = "json_schema"
)

// ParseResponseMode coerces unknown values to ResponseModeJSONObject.
func ParseResponseMode(s string) ResponseMode {
	switch m := ResponseMode(s); m {
	case ResponseModeOff, ResponseModeJSONObject, ResponseModeJSONSchema:
		return m
	default:
		return ResponseModeJSONObject
	}
}

// Config holds the per-stage call parameters.
type Config struct {
	Name         string
	Model        string
	Temperature  float64
	MaxTokens    int64
	ResponseMode ResponseMode
	Timeout      time.Duration
}

// Options are shared by the stage constructors.
type Options struct {
	Model        string
	ResponseMode ResponseMode
	Timeout      time.Duration
	Tracker      *cost.Tracker
	Logger       *log.Logger
}

// Reply is the raw text of one model call plus what the provider reported.
type Reply struct {
	Content          string
	PromptTokens     int64
	CompletionTokens int64
	Duration         time.Duration
}

// BaseAgent provides the model call shared by the Research and Writer stages.
type BaseAgent struct {
	Config  Config
	client  ChatClient
	schema  *SchemaFormat
	tracker *cost.Tracker
	logger  *log.Logger
}

// NewBaseAgent creates a BaseAgent. schema is only consulted in
// ResponseModeJSONSchema and may be nil otherwise.
func NewBaseAgent(config Config, client ChatClient, schema *SchemaFormat, tracker *cost.Tracker, logger *log.Logger) *BaseAgent {
	if logger == nil {
		logger = log.Default()
	}
	if config.ResponseMode == "" {
		config.ResponseMode = ResponseModeJSONObject
	}
	if config.ResponseMode == ResponseModeJSONSchema && schema == nil {
		config.ResponseMode = ResponseModeJSONObject
	}
	return &BaseAgent{
		Config:  config,
		client:  client,
		schema:  schema,
		tracker: tracker,
		logger:  logger,
	}
}

// Params builds the chat completion request for prompt.
func (a *BaseAgent) Params(prompt string) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	if a.Config.ResponseMode != ResponseModeOff {
		messages = append(messages, openai.SystemMessage(JSONSystemPrompt))
	}
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       openai.ChatModel(a.Config.Model),
		Temperature: openai.Float(a.Config.Temperature),
		MaxTokens:   openai.Int(a.Config.MaxTokens),
	}

	switch a.Config.ResponseMode {
	case ResponseModeJSONObject:
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	case ResponseModeJSONSchema:
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: a.schema.Param(),
			},
		}
	}
	return params
}

// Complete sends prompt and returns the first choice's text.
func (a *BaseAgent) Complete(ctx context.Context, prompt string) (Reply, error) {
	if a.client == nil {
		return Reply{}, fmt.Errorf("%s: no model client configured", a.Config.Name)
	}
	callCtx := ctx
	if a.Config.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.Config.Timeout)
		defer cancel()
	}

	start := time.Now()
	completion, err := a.client.CreateChatCompletion(callCtx, a.Params(prompt))
	elapsed := time.Since(start)
	if err != nil {
		a.logger.Error("model call failed", "stage", a.Config.Name, "duration", elapsed, "error", err)
		return Reply{}, fmt.Errorf("%s call failed: %w", a.Config.Name, err)
	}
	if completion == nil || len(completion.Choices) == 0 {
		return Reply{}, fmt.Errorf("%s call failed: no choices in model response", a.Config.Name)
	}

	reply := Reply{
		Content:          completion.Choices[0].Message.Content,
		PromptTokens:     completion.Usage.PromptTokens,
		CompletionTokens: completion.Usage.CompletionTokens,
		Duration:         elapsed,
	}
	a.tracker.Record(a.Config.Name, reply.PromptTokens, reply.CompletionTokens)
	a.logger.Info("model call completed",
		"stage", a.Config.Name,
		"duration", elapsed,
		"chars", len(reply.Content),
		"prompt_tokens", reply.PromptTokens,
		"completion_tokens", reply.CompletionTokens,
	)
	return reply, nil
}
