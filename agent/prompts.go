package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"kahaani/topics"
)

// JSONSystemPrompt is prepended in the JSON response modes.
const JSONSystemPrompt = "You are a helpful assistant. Always respond with valid JSON."

// ResearchParams are the inputs of the Research prompt. News already carries
// any fallback supplement.
type ResearchParams struct {
	Mode       ContentMode
	Language   Language
	News       []string
	Trends     []string
	Exclusions []string
}

// TopicsAnalyzed is the pool size announced to the model.
func (p ResearchParams) TopicsAnalyzed() int { return len(p.News) + len(p.Trends) }

// WriterParams are the inputs of the Writer prompt.
type WriterParams struct {
	Language Language
	Topics   []SelectedTopic
}

func modeText(m ContentMode) string {
	switch m {
	case ModeInform:
		return "Educational/Knowledge content only"
	case ModeImagine:
		return "Fiction/Drama stories only"
	default:
		return "Mix of both educational and fiction"
	}
}

func researchLanguageText(l Language) string {
	switch l {
	case LanguageHindi:
		return "Hindi (Devanagari)"
	case LanguageHinglish:
		return "Hinglish (Hindi-English mix in Roman script)"
	default:
		return "English"
	}
}

func writerLanguageText(l Language) string {
	switch l {
	case LanguageHindi:
		return "Hindi (use Devanagari script)"
	case LanguageHinglish:
		return "Hinglish (Hindi words in Roman script mixed naturally with English, like how young Indians text)"
	default:
		return "English"
	}
}

func numbered(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = fmt.Sprintf("%d. %s", i+1, item)
	}
	return strings.Join(lines, "\n")
}

// exclusionBlock is empty when there is nothing to exclude.
func exclusionBlock(exclusions []string) string {
	if len(exclusions) == 0 {
		return ""
	}
	if len(exclusions) > topics.MaxExclusions {
		exclusions = exclusions[:topics.MaxExclusions]
	}
	lines := make([]string, len(exclusions))
	for i, e := range exclusions {
		lines[i] = "- " + e
	}
	return "\n\nPREVIOUSLY USED TOPICS (do NOT select any of these or closely related topics):\n" +
		strings.Join(lines, "\n") + "\n"
}

// ResearchPrompt renders the topic-selection prompt.
func ResearchPrompt(p ResearchParams) string {
	var sb strings.Builder
	sb.WriteString("You are a senior content strategist for a premium Indian audio platform. Analyze these trending topics and select 3 for audio scripts.\n\n")
	fmt.Fprintf(&sb, "MODE: %s\n", modeText(p.Mode))
	fmt.Fprintf(&sb, "LANGUAGE: %s\n\n", researchLanguageText(p.Language))
	sb.WriteString("NEWS TOPICS (Google News India):\n")
	sb.WriteString(numbered(p.News))
	sb.WriteString("\n\nTRENDING SEARCHES (Google Trends India):\n")
	sb.WriteString(numbered(p.Trends))
	sb.WriteString("\n")
	sb.WriteString(exclusionBlock(p.Exclusions))
	sb.WriteString("\nSelect exactly 3 topics with highest audio content potential for Indian audiences. Consider cultural relevance, emotional resonance, and timeliness.\n\n")
	sb.WriteString("Respond with this JSON structure:\n")
	fmt.Fprintf(&sb, `{"selected_topics":[{"topic":"Topic title","content_type":"inform or imagine","category":"news|culture|mythology|drama|technology|sports|politics|entertainment|finance|health","angle":"Suggested creative angle","rationale":"Why high potential"}],"research_summary":"2-line summary of trending landscape","topics_analyzed":%d}`, p.TopicsAnalyzed())
	return sb.String()
}

// WriterPrompt renders the script-writing prompt for the selected topics.
func WriterPrompt(p WriterParams) string {
	var sb strings.Builder
	sb.WriteString("You are a world-class audio scriptwriter creating content for Indian audiences. Your scripts are known for magnetic openings, vivid storytelling, and perfect pacing for audio.\n\n")
	fmt.Fprintf(&sb, "LANGUAGE: %s\n", writerLanguageText(p.Language))
	sb.WriteString("Write ALL scripts in this language.\n\n")
	sb.WriteString("TOPICS TO WRITE:\n")
	sb.WriteString(renderTopics(p.Topics))
	sb.WriteString("\n\n")
	sb.WriteString(`For each of the 3 topics, write an audio script following these rules:
- 800-1200 words per script
- First 30 words MUST hook the listener instantly (question, bold claim, vivid scene)
- Conversational, warm tone — like a brilliant friend explaining over chai
- Short sentences. Varied rhythm. Pauses built in.
- For "inform" scripts: Make complex topics fascinating and accessible. Use analogies. End with a surprising insight.
- For "imagine" scripts: Rich characters, emotional arcs, sensory details. Draw from Indian cultural context. End with a twist or emotional payoff.
- End each script with a memorable closing line
- Rate your confidence in each script honestly

Respond with this JSON structure:
{"scripts":[{"topic":"Topic title","content_type":"inform or imagine","category":"category","title":"Creative compelling title","script":"Full script text...","word_count":950,"estimated_audio_minutes":7.5,"hook":"First 30 words","confidence_score":{"overall":82,"hook_strength":85,"narrative_flow":80,"emotional_engagement":78,"audio_readiness":84},"confidence_rationale":"Brief honest explanation of strengths and weaknesses"}]}`)
	return sb.String()
}

// renderTopics pretty-prints the topics with two-space indentation and
// without HTML escaping.
func renderTopics(ts []SelectedTopic) string {
	if ts == nil {
		ts = []SelectedTopic{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ts); err != nil {
		return "[]"
	}
	return strings.TrimRight(buf.String(), "\n")
}
