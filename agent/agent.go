package agent

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/openai/openai-go"
)

// ChatClient is the single call the stage agents need from a model provider.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// ContentMode selects educational, fictional or mixed scripts.
type ContentMode string

const (
	ModeInform  ContentMode = "inform"
	ModeImagine ContentMode = "imagine"
	ModeBoth    ContentMode = "both"
)

// ParseContentMode coerces unknown values to ModeBoth.
func ParseContentMode(s string) ContentMode {
	switch m := ContentMode(strings.TrimSpace(s)); m {
	case ModeInform, ModeImagine, ModeBoth:
		return m
	default:
		return ModeBoth
	}
}

// Language is the script language.
type Language string

const (
	LanguageEnglish  Language = "en"
	LanguageHindi    Language = "hi"
	LanguageHinglish Language = "hinglish"
)

// ParseLanguage coerces unknown values to LanguageEnglish.
func ParseLanguage(s string) Language {
	switch l := Language(strings.TrimSpace(s)); l {
	case LanguageEnglish, LanguageHindi, LanguageHinglish:
		return l
	default:
		return LanguageEnglish
	}
}

// SelectedTopic is one pick of the Research stage.
type SelectedTopic struct {
	Topic       string `json:"topic"`
	ContentType string `json:"content_type"`
	Category    string `json:"category"`
	Angle       string `json:"angle"`
	Rationale   string `json:"rationale"`
}

// ConfidenceScore is the Writer's self-assessment, each figure 0-100.
type ConfidenceScore struct {
	Overall             Number `json:"overall"`
	HookStrength        Number `json:"hook_strength"`
	NarrativeFlow       Number `json:"narrative_flow"`
	EmotionalEngagement Number `json:"emotional_engagement"`
	AudioReadiness      Number `json:"audio_readiness"`
}

// ScriptRecord is one script produced by the Writer stage. A record with
// Error set is the placeholder emitted when the Writer reply was unreadable.
type ScriptRecord struct {
	Topic                 string           `json:"topic"`
	ContentType           string           `json:"content_type"`
	Category              string           `json:"category"`
	Title                 string           `json:"title"`
	Script                string           `json:"script"`
	WordCount             Number           `json:"word_count"`
	EstimatedAudioMinutes Number           `json:"estimated_audio_minutes"`
	Hook                  string           `json:"hook"`
	ConfidenceScore       *ConfidenceScore `json:"confidence_score,omitempty"`
	ConfidenceRationale   string           `json:"confidence_rationale,omitempty"`

	Error string `json:"error,omitempty"`
	Raw   string `json:"raw,omitempty"`
}

// Degraded reports whether the record is a parse-failure placeholder.
func (s ScriptRecord) Degraded() bool { return s.Error != "" }

// MarshalJSON writes placeholders as just {error, raw}.
func (s ScriptRecord) MarshalJSON() ([]byte, error) {
	if s.Degraded() {
		return json.Marshal(struct {
			Error string `json:"error"`
			Raw   string `json:"raw"`
		}{s.Error, s.Raw})
	}
	type plain ScriptRecord
	return json.Marshal(plain(s))
}

// ResearchResult is the decoded Research reply.
type ResearchResult struct {
	SelectedTopics  []SelectedTopic `json:"selected_topics"`
	ResearchSummary string          `json:"research_summary"`
	TopicsAnalyzed  Number          `json:"topics_analyzed"`
}

// WriterResult is the decoded Writer reply.
type WriterResult struct {
	Scripts []ScriptRecord `json:"scripts"`
}

// Number accepts JSON numbers, numeric strings and null. Anything else reads as 0.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	s = strings.Trim(s, `"`)
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		*n = 0
		return nil
	}
	*n = Number(f)
	return nil
}

func (n Number) Int() int { return int(n) }

func (n Number) Float() float64 { return float64(n) }
