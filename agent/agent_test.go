package agent

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"

	"kahaani/cost"
)

type mockClient struct {
	reply  string
	err    error
	params []openai.ChatCompletionNewParams
}

func (m *mockClient) CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	m.params = append(m.params, params)
	if m.err != nil {
		return nil, m.err
	}
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Content: m.reply},
		}},
		Usage: openai.CompletionUsage{PromptTokens: 120, CompletionTokens: 80},
	}, nil
}

func quietOptions(mode ResponseMode) Options {
	return Options{
		Model:        "gpt-4.1",
		ResponseMode: mode,
		Tracker:      cost.NewTracker(),
		Logger:       log.New(io.Discard),
	}
}

func TestResearchAgentParams(t *testing.T) {
	client := &mockClient{reply: `{"selected_topics":[],"research_summary":"quiet day","topics_analyzed":10}`}
	opts := quietOptions(ResponseModeJSONObject)
	a := NewResearchAgent(client, opts)

	result, reply, err := a.Select(context.Background(), ResearchParams{Mode: ModeInform, News: []string{"headline one"}})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if result.ResearchSummary != "quiet day" || reply.PromptTokens != 120 {
		t.Errorf("unexpected result %+v reply %+v", result, reply)
	}

	if len(client.params) != 1 {
		t.Fatalf("expected one call, got %d", len(client.params))
	}
	p := client.params[0]
	if p.Temperature.Value != 0.7 || p.MaxTokens.Value != 2000 {
		t.Errorf("unexpected sampling params temperature=%v max_tokens=%v", p.Temperature.Value, p.MaxTokens.Value)
	}
	if string(p.Model) != "gpt-4.1" {
		t.Errorf("unexpected model %s", p.Model)
	}
	if len(p.Messages) != 2 || p.Messages[0].OfSystem == nil || p.Messages[1].OfUser == nil {
		t.Fatalf("expected system and user messages, got %d", len(p.Messages))
	}
	if p.Messages[0].OfSystem.Content.OfString.Value != JSONSystemPrompt {
		t.Errorf("unexpected system message")
	}
	if !strings.Contains(p.Messages[1].OfUser.Content.OfString.Value, "1. headline one") {
		t.Errorf("user message should carry the research prompt")
	}
	if p.ResponseFormat.OfJSONObject == nil {
		t.Error("expected json_object response format")
	}
	if opts.Tracker.Stage(ResearchAgentName).InputTokens != 120 {
		t.Errorf("usage not tracked: %+v", opts.Tracker.Stage(ResearchAgentName))
	}
}

func TestResponseModes(t *testing.T) {
	client := &mockClient{reply: `{"scripts":[]}`}

	off := NewWriterAgent(client, quietOptions(ResponseModeOff)).Params("write")
	if len(off.Messages) != 1 || off.ResponseFormat.OfJSONObject != nil || off.ResponseFormat.OfJSONSchema != nil {
		t.Error("off mode should send only the user message without response format")
	}

	schema := NewWriterAgent(client, quietOptions(ResponseModeJSONSchema)).Params("write")
	if schema.ResponseFormat.OfJSONSchema == nil {
		t.Fatal("expected json_schema response format")
	}
	js := schema.ResponseFormat.OfJSONSchema.JSONSchema
	if js.Name != "audio_scripts" || !js.Strict.Value {
		t.Errorf("unexpected schema param name=%s strict=%v", js.Name, js.Strict.Value)
	}
	if schema.Temperature.Value != 0.8 || schema.MaxTokens.Value != 8000 {
		t.Errorf("unexpected writer sampling params")
	}
}

func TestResearchParseFailureIsFatal(t *testing.T) {
	client := &mockClient{reply: "Sorry, I can only chat about cricket today."}
	a := NewResearchAgent(client, quietOptions(ResponseModeJSONObject))

	_, _, err := a.Select(context.Background(), ResearchParams{})
	if !errors.Is(err, ErrDecodeFailure) {
		t.Fatalf("expected decode failure, got %v", err)
	}
}

func TestWriterParseFailureDegrades(t *testing.T) {
	raw := strings.Repeat("not json at all ", 60)
	w := NewWriterAgent(&mockClient{}, quietOptions(ResponseModeJSONObject))

	scripts, degraded := w.Parse(raw)
	if !degraded || len(scripts) != 1 {
		t.Fatalf("expected one placeholder script, got %d degraded=%v", len(scripts), degraded)
	}
	if scripts[0].Error != ParseFailedMarker {
		t.Errorf("unexpected marker %q", scripts[0].Error)
	}
	if scripts[0].Raw != raw[:500] {
		t.Errorf("raw payload should be the first 500 characters")
	}
}

func TestWriterParseScripts(t *testing.T) {
	reply := "```json\n" + `{"scripts":[
		{"topic":"ISRO","content_type":"inform","category":"technology","title":"Moonshot","script":"...","word_count":950,"estimated_audio_minutes":7.5,"hook":"What if","confidence_score":{"overall":82,"hook_strength":85,"narrative_flow":80,"emotional_engagement":78,"audio_readiness":84},"confidence_rationale":"solid"},
		{"topic":"UPI","title":"Tap to pay","word_count":"1020","estimated_audio_minutes":"8"},
		{"topic":"IPL","title":"Last over"}
	]}` + "\n```"
	w := NewWriterAgent(&mockClient{}, quietOptions(ResponseModeJSONObject))

	scripts, degraded := w.Parse(reply)
	if degraded {
		t.Fatal("unexpected degraded result")
	}
	if len(scripts) != 3 {
		t.Fatalf("expected 3 scripts, got %d", len(scripts))
	}
	if scripts[0].ConfidenceScore.Overall != 82 || scripts[1].WordCount != 1020 || scripts[1].EstimatedAudioMinutes != 8 {
		t.Errorf("unexpected scripts %+v", scripts)
	}

	empty, degraded := w.Parse(`{"other":true}`)
	if degraded || empty == nil || len(empty) != 0 {
		t.Errorf("missing scripts should read as empty, got %v degraded=%v", empty, degraded)
	}
}

func TestCompleteErrors(t *testing.T) {
	providerErr := errors.New("model provider error (429): rate limited")
	a := NewResearchAgent(&mockClient{err: providerErr}, quietOptions(ResponseModeJSONObject))
	_, err := a.Call(context.Background(), ResearchParams{})
	if !errors.Is(err, providerErr) || !strings.Contains(err.Error(), "429") {
		t.Errorf("expected wrapped provider error, got %v", err)
	}

	empty := &emptyClient{}
	_, err = NewWriterAgent(empty, quietOptions(ResponseModeJSONObject)).Call(context.Background(), WriterParams{})
	if err == nil {
		t.Error("expected error for a reply without choices")
	}

	_, err = NewWriterAgent(nil, quietOptions(ResponseModeJSONObject)).Call(context.Background(), WriterParams{})
	if err == nil {
		t.Error("expected error without a client")
	}
}

type emptyClient struct{}

func (emptyClient) CreateChatCompletion(context.Context, openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return &openai.ChatCompletion{}, nil
}
