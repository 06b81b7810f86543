package agent

import (
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
)

// Strict structured output needs every property required, so these mirror
// the reply types without omitempty or lenient numbers.

type topicSchema struct {
	Topic       string `json:"topic" jsonschema_description:"Topic title"`
	ContentType string `json:"content_type" jsonschema:"enum=inform,enum=imagine"`
	Category    string `json:"category" jsonschema_description:"news, culture, mythology, drama, technology, sports, politics, entertainment, finance or health"`
	Angle       string `json:"angle" jsonschema_description:"Suggested creative angle"`
	Rationale   string `json:"rationale" jsonschema_description:"Why high potential"`
}

type researchSchema struct {
	SelectedTopics  []topicSchema `json:"selected_topics" jsonschema:"minItems=3,maxItems=3"`
	ResearchSummary string        `json:"research_summary" jsonschema_description:"2-line summary of trending landscape"`
	TopicsAnalyzed  int           `json:"topics_analyzed"`
}

type confidenceSchema struct {
	Overall             int `json:"overall" jsonschema:"minimum=0,maximum=100"`
	HookStrength        int `json:"hook_strength" jsonschema:"minimum=0,maximum=100"`
	NarrativeFlow       int `json:"narrative_flow" jsonschema:"minimum=0,maximum=100"`
	EmotionalEngagement int `json:"emotional_engagement" jsonschema:"minimum=0,maximum=100"`
	AudioReadiness      int `json:"audio_readiness" jsonschema:"minimum=0,maximum=100"`
}

type scriptSchema struct {
	Topic                 string           `json:"topic"`
	ContentType           string           `json:"content_type" jsonschema:"enum=inform,enum=imagine"`
	Category              string           `json:"category"`
	Title                 string           `json:"title"`
	Script                string           `json:"script" jsonschema_description:"Full script text, 800-1200 words"`
	WordCount             int              `json:"word_count"`
	EstimatedAudioMinutes float64          `json:"estimated_audio_minutes"`
	Hook                  string           `json:"hook" jsonschema_description:"First 30 words"`
	ConfidenceScore       confidenceSchema `json:"confidence_score"`
	ConfidenceRationale   string           `json:"confidence_rationale"`
}

type writerSchema struct {
	Scripts []scriptSchema `json:"scripts"`
}

// SchemaFormat is a named JSON schema for strict structured output.
type SchemaFormat struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
}

// Param converts the format into the request parameter.
func (s *SchemaFormat) Param() openai.ResponseFormatJSONSchemaJSONSchemaParam {
	return openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        s.Name,
		Description: openai.String(s.Description),
		Schema:      s.Schema,
		Strict:      openai.Bool(true),
	}
}

func reflectSchema(v any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(v)
}

// ResearchSchema describes the Research reply envelope.
func ResearchSchema() *SchemaFormat {
	return &SchemaFormat{
		Name:        "research_selection",
		Description: "Three selected topics with a summary of the trending landscape",
		Schema:      reflectSchema(researchSchema{}),
	}
}

// WriterSchema describes the Writer reply envelope.
func WriterSchema() *SchemaFormat {
	return &SchemaFormat{
		Name:        "audio_scripts",
		Description: "Audio scripts with self-assessed confidence scores",
		Schema:      reflectSchema(writerSchema{}),
	}
}
