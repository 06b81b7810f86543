package agent

import (
	"context"
	"fmt"
)

// ResearchAgentName is the identifier for the topic-selection stage.
const ResearchAgentName = "research"

const (
	researchTemperature = 0.7
	researchMaxTokens   = 2000
)

// ResearchAgent selects three topics from the pool.
type ResearchAgent struct {
	*BaseAgent
}

// NewResearchAgent creates a ResearchAgent calling through client.
func NewResearchAgent(client ChatClient, opts Options) *ResearchAgent {
	config := Config{
		Name:         ResearchAgentName,
		Model:        opts.Model,
		Temperature:  researchTemperature,
		MaxTokens:    researchMaxTokens,
		ResponseMode: opts.ResponseMode,
		Timeout:      opts.Timeout,
	}
	return &ResearchAgent{
		BaseAgent: NewBaseAgent(config, client, ResearchSchema(), opts.Tracker, opts.Logger),
	}
}

// Call renders the prompt and returns the raw reply.
func (r *ResearchAgent) Call(ctx context.Context, p ResearchParams) (Reply, error) {
	return r.Complete(ctx, ResearchPrompt(p))
}

// Parse decodes a Research reply. Failure is fatal to the generation.
func (r *ResearchAgent) Parse(raw string) (ResearchResult, error) {
	var result ResearchResult
	strategy, err := DecodeInto(raw, &result)
	if err != nil {
		r.logger.Error("research reply unreadable", "error", err)
		return ResearchResult{}, fmt.Errorf("cannot parse research response: %w", err)
	}
	if strategy != StrategyWhole {
		r.logger.Warn("research reply needed fallback decoding", "strategy", strategy)
	}
	if len(result.SelectedTopics) != 3 {
		r.logger.Warn("research selected an unexpected number of topics", "count", len(result.SelectedTopics))
	}
	return result, nil
}

// Select runs Call then Parse.
func (r *ResearchAgent) Select(ctx context.Context, p ResearchParams) (ResearchResult, Reply, error) {
	reply, err := r.Call(ctx, p)
	if err != nil {
		return ResearchResult{}, Reply{}, err
	}
	result, err := r.Parse(reply.Content)
	return result, reply, err
}
