package agent

import (
	"context"
)

// WriterAgentName is the identifier for the script-writing stage.
const WriterAgentName = "writer"

// ParseFailedMarker is the error text of a placeholder script.
const ParseFailedMarker = "Parse failed"

const (
	writerTemperature = 0.8
	writerMaxTokens   = 8000
)

// WriterAgent expands the selected topics into full scripts.
type WriterAgent struct {
	*BaseAgent
}

// NewWriterAgent creates a WriterAgent calling through client.
func NewWriterAgent(client ChatClient, opts Options) *WriterAgent {
	config := Config{
		Name:         WriterAgentName,
		Model:        opts.Model,
		Temperature:  writerTemperature,
		MaxTokens:    writerMaxTokens,
		ResponseMode: opts.ResponseMode,
		Timeout:      opts.Timeout,
	}
	return &WriterAgent{
		BaseAgent: NewBaseAgent(config, client, WriterSchema(), opts.Tracker, opts.Logger),
	}
}

// Call renders the prompt and returns the raw reply.
func (w *WriterAgent) Call(ctx context.Context, p WriterParams) (Reply, error) {
	return w.Complete(ctx, WriterPrompt(p))
}

// Parse decodes a Writer reply. An unreadable reply does not fail the
// generation: it yields a single placeholder record and degraded is true.
func (w *WriterAgent) Parse(raw string) (scripts []ScriptRecord, degraded bool) {
	var result WriterResult
	strategy, err := DecodeInto(raw, &result)
	if err != nil {
		w.logger.Warn("writer reply unreadable, returning placeholder script", "error", err)
		return []ScriptRecord{{
			Error: ParseFailedMarker,
			Raw:   Excerpt(raw, ExcerptLength),
		}}, true
	}
	if strategy != StrategyWhole {
		w.logger.Warn("writer reply needed fallback decoding", "strategy", strategy)
	}
	if result.Scripts == nil {
		return []ScriptRecord{}, false
	}
	return result.Scripts, false
}
