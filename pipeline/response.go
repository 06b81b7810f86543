package pipeline

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"kahaani/agent"
	"kahaani/cost"
)

const (
	StatusSuccess = "success"
	ProductName   = "Kahaani AI"
)

// Sources labels the two feeds in every response.
var Sources = []string{"Google News India", "Google Trends India"}

// Request is one generation request. Use ParseRequest or NewRequest so
// unknown values are coerced.
type Request struct {
	Mode          agent.ContentMode
	Language      agent.Language
	ExcludeTopics []string
}

func NewRequest(mode, language string, exclude []string) Request {
	return Request{
		Mode:          agent.ParseContentMode(mode),
		Language:      agent.ParseLanguage(language),
		ExcludeTopics: exclude,
	}
}

// ParseRequest reads a request body leniently: a malformed body, wrong field
// types and non-string exclusions all fall back to defaults.
func ParseRequest(body []byte) Request {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return NewRequest("", "", nil)
	}
	mode, _ := raw["mode"].(string)
	language, _ := raw["language"].(string)

	var exclude []string
	if list, ok := raw["exclude_topics"].([]any); ok {
		for _, item := range list {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				exclude = append(exclude, s)
			}
		}
	}
	return NewRequest(mode, language, exclude)
}

type Params struct {
	Mode     agent.ContentMode `json:"mode"`
	Language agent.Language    `json:"language"`
}

type Research struct {
	Summary        string                `json:"summary"`
	TopicsAnalyzed int                   `json:"topics_analyzed"`
	Sources        []string              `json:"sources"`
	SelectedTopics []agent.SelectedTopic `json:"selected_topics"`
	SourceTopics   []string              `json:"source_topics,omitempty"`
}

type Totals struct {
	ScriptsGenerated  int     `json:"scripts_generated"`
	TotalWords        int     `json:"total_words"`
	TotalAudioMinutes float64 `json:"total_audio_minutes"`
}

// Response is the success payload of one generation.
type Response struct {
	Status       string               `json:"status"`
	Product      string               `json:"product"`
	GeneratedAt  time.Time            `json:"generated_at"`
	Params       Params               `json:"params"`
	Research     Research             `json:"research"`
	Scripts      []agent.ScriptRecord `json:"scripts"`
	Totals       Totals               `json:"totals"`
	CostAnalysis cost.Report          `json:"cost_analysis"`
}

// ComputeTotals sums word counts and audio minutes, the latter rounded to one place.
func ComputeTotals(scripts []agent.ScriptRecord) Totals {
	var words, minutes float64
	for _, s := range scripts {
		words += s.WordCount.Float()
		minutes += s.EstimatedAudioMinutes.Float()
	}
	return Totals{
		ScriptsGenerated:  len(scripts),
		TotalWords:        int(math.Round(words)),
		TotalAudioMinutes: math.Round(minutes*10) / 10,
	}
}
