package cost

import (
	"sync"
	"time"
)

// Usage is provider-reported token consumption.
type Usage struct {
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	TotalTokens  int64   `json:"total_tokens"`
	Cost         float64 `json:"cost_usd"`
}

func (u *Usage) add(in, out int64) {
	u.InputTokens += in
	u.OutputTokens += out
	u.TotalTokens += in + out
	u.Cost = float64(u.InputTokens)/1e6*InputUSDPerMillion + float64(u.OutputTokens)/1e6*OutputUSDPerMillion
}

// StageUsage is the running usage of one pipeline stage.
type StageUsage struct {
	Stage       string    `json:"stage"`
	Usage       Usage     `json:"usage"`
	CallCount   int       `json:"call_count"`
	LastUpdated time.Time `json:"last_updated"`
}

// Tracker records what the provider says each stage consumed. It feeds logs
// and metrics only; the reported estimate always comes from Estimate.
type Tracker struct {
	mu      sync.RWMutex
	total   Usage
	stages  map[string]*StageUsage
	started time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		stages:  make(map[string]*StageUsage),
		started: time.Now(),
	}
}

// Record is safe for concurrent use. A nil tracker ignores the call.
func (t *Tracker) Record(stage string, inputTokens, outputTokens int64) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.stages[stage]
	if !ok {
		s = &StageUsage{Stage: stage}
		t.stages[stage] = s
	}
	s.Usage.add(inputTokens, outputTokens)
	s.CallCount++
	s.LastUpdated = time.Now()

	t.total.add(inputTokens, outputTokens)
}

func (t *Tracker) Total() Usage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total
}

// Stage returns a copy of the usage recorded for stage.
func (t *Tracker) Stage(stage string) Usage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.stages[stage]; ok {
		return s.Usage
	}
	return Usage{}
}

func (t *Tracker) Stats() map[string]StageUsage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	stats := make(map[string]StageUsage, len(t.stages))
	for name, s := range t.stages {
		stats[name] = *s
	}
	return stats
}

func (t *Tracker) Since() time.Duration {
	return time.Since(t.started)
}
