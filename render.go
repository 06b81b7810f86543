package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"kahaani/agent"
	"kahaani/pipeline"
)

var confidenceLabels = []struct {
	label string
	value func(agent.ConfidenceScore) agent.Number
}{
	{"Hook Strength", func(c agent.ConfidenceScore) agent.Number { return c.HookStrength }},
	{"Narrative Flow", func(c agent.ConfidenceScore) agent.Number { return c.NarrativeFlow }},
	{"Emotional Engagement", func(c agent.ConfidenceScore) agent.Number { return c.EmotionalEngagement }},
	{"Audio Readiness", func(c agent.ConfidenceScore) agent.Number { return c.AudioReadiness }},
}

func languageLabel(l agent.Language) string {
	switch l {
	case agent.LanguageHindi:
		return "Hindi"
	case agent.LanguageHinglish:
		return "Hinglish"
	default:
		return "English"
	}
}

func modeLabel(m agent.ContentMode) string {
	switch m {
	case agent.ModeInform:
		return "Inform"
	case agent.ModeImagine:
		return "Imagine"
	default:
		return "Both"
	}
}

// responseMarkdown lays out a response as summary, cost comparison and
// one section per script.
func responseMarkdown(r *pipeline.Response) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", pipeline.ProductName)
	fmt.Fprintf(&b, "**%s** · %s · %d scripts · %d words · %.1f min of audio\n\n",
		modeLabel(r.Params.Mode), languageLabel(r.Params.Language),
		r.Totals.ScriptsGenerated, r.Totals.TotalWords, r.Totals.TotalAudioMinutes)

	if r.Research.Summary != "" {
		fmt.Fprintf(&b, "> %s\n\n", r.Research.Summary)
	}
	if r.Research.TopicsAnalyzed > 0 {
		fmt.Fprintf(&b, "Analyzed %d topics from %s.\n\n", r.Research.TopicsAnalyzed, strings.Join(r.Research.Sources, " and "))
	}

	c := r.CostAnalysis
	if c.Savings.Multiplier != "" {
		b.WriteString("## Cost\n\n")
		b.WriteString("| | Total | Per script |\n|---|---|---|\n")
		fmt.Fprintf(&b, "| AI (%s) | ₹%.2f ($%.4f) | ₹%.2f |\n", c.AI.Model, c.AI.TotalINR, c.AI.TotalUSD, c.AI.PerScriptINR)
		fmt.Fprintf(&b, "| Human | ₹%s | ₹%s |\n\n", formatNumber(int(c.Human.TotalINR)), formatNumber(int(c.Human.PerScriptINR)))
		fmt.Fprintf(&b, "**%s** cheaper, ₹%s saved. %d tokens used.\n\n",
			c.Savings.Multiplier, formatNumber(int(c.Savings.SavedINR)), c.AI.Tokens.Total)
	}

	for i, s := range r.Scripts {
		writeScript(&b, i+1, s, r.Params.Language)
	}
	return b.String()
}

func writeScript(b *strings.Builder, n int, s agent.ScriptRecord, lang agent.Language) {
	if s.Degraded() {
		fmt.Fprintf(b, "## Script %d\n\n*%s*\n\n```\n%s\n```\n\n", n, s.Error, s.Raw)
		return
	}

	fmt.Fprintf(b, "## %d. %s\n\n", n, s.Title)
	kind := "Inform"
	if s.ContentType == string(agent.ModeImagine) {
		kind = "Imagine"
	}
	meta := []string{kind, languageLabel(lang)}
	if s.Category != "" {
		meta = append(meta, s.Category)
	}
	meta = append(meta, fmt.Sprintf("%d words", s.WordCount.Int()), fmt.Sprintf("%.1f min", s.EstimatedAudioMinutes.Float()))
	fmt.Fprintf(b, "*%s*\n\n", strings.Join(meta, " · "))

	if s.Hook != "" {
		fmt.Fprintf(b, "**Hook:** %s\n\n", s.Hook)
	}
	if cs := s.ConfidenceScore; cs != nil {
		fmt.Fprintf(b, "**Confidence %d/100**", cs.Overall.Int())
		for _, l := range confidenceLabels {
			fmt.Fprintf(b, " · %s %d", l.label, l.value(*cs).Int())
		}
		b.WriteString("\n\n")
		if s.ConfidenceRationale != "" {
			fmt.Fprintf(b, "%s\n\n", s.ConfidenceRationale)
		}
	}
	fmt.Fprintf(b, "%s\n\n---\n\n", s.Script)
}

func renderMarkdown(md string, width int) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := renderer.Render(md)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return strings.TrimRight(out, "\n"), nil
}

// formatNumber formats a number with commas for readability.
func formatNumber(n int) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	str := fmt.Sprint(n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	for i, digit := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(digit)
	}
	return result.String()
}
