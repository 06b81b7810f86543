package agent

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestDecodeFencedRoundTrip(t *testing.T) {
	objects := []map[string]any{
		{"scripts": []any{}},
		{"selected_topics": []any{map[string]any{"topic": "ISRO", "category": "technology"}}, "topics_analyzed": 12.0},
		{"nested": map[string]any{"a": []any{1.0, "two", nil, true}}, "hindi": "नमस्ते दुनिया"},
	}

	for _, want := range objects {
		data, err := json.MarshalIndent(want, "", "  ")
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		for _, fence := range []string{"```json\n%s\n```", "Sure! Here it is:\n```\n%s\n```\nEnjoy."} {
			raw := strings.Replace(fence, "%s", string(data), 1)
			res, ok := Decode(raw).(DecodeSuccess)
			if !ok {
				t.Fatalf("expected success for %q", raw)
			}
			if res.Strategy != StrategyFenced {
				t.Errorf("expected fenced strategy, got %s", res.Strategy)
			}
			if !reflect.DeepEqual(res.Value, want) {
				t.Errorf("round trip mismatch:\n got %#v\nwant %#v", res.Value, want)
			}
		}
	}
}

func TestDecodeStrategies(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Strategy
	}{
		{"bare object", `{"a":1}`, StrategyWhole},
		{"padded object", "\n  {\"a\":1}  \n", StrategyWhole},
		{"prose around object", `Here you go: {"a":1} hope that helps`, StrategyBraces},
		{"broken fence then object", "```json\nnot json\n``` {\"a\":1}", StrategyBraces},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, ok := Decode(tt.raw).(DecodeSuccess)
			if !ok {
				t.Fatalf("expected success")
			}
			if res.Strategy != tt.want {
				t.Errorf("expected %s, got %s", tt.want, res.Strategy)
			}
			if res.Value["a"] != 1.0 {
				t.Errorf("unexpected value %v", res.Value)
			}
		})
	}
}

func TestDecodeFailureDeterministic(t *testing.T) {
	inputs := []string{
		"",
		"I'm sorry, I cannot help with that.",
		"just some words ] and [ brackets",
		"} backwards {",
		"[1, 2, 3]",
		`"a string"`,
		"{ not: valid json }",
	}
	for _, raw := range inputs {
		first := Decode(raw)
		failure, ok := first.(DecodeFailure)
		if !ok {
			t.Fatalf("Decode(%q) expected failure, got %#v", raw, first)
		}
		if again := Decode(raw); !reflect.DeepEqual(again, first) {
			t.Errorf("Decode(%q) not deterministic", raw)
		}
		if !errors.Is(failure, ErrDecodeFailure) {
			t.Errorf("failure should wrap ErrDecodeFailure")
		}
		if failure.RawExcerpt != raw {
			t.Errorf("expected excerpt %q, got %q", raw, failure.RawExcerpt)
		}
	}
}

func TestDecodeInto(t *testing.T) {
	var r ResearchResult
	strategy, err := DecodeInto("```json\n{\"selected_topics\":[{\"topic\":\"UPI\"}],\"research_summary\":\"s\",\"topics_analyzed\":\"14\"}\n```", &r)
	if err != nil {
		t.Fatalf("DecodeInto: %v", err)
	}
	if strategy != StrategyFenced {
		t.Errorf("expected fenced strategy, got %s", strategy)
	}
	if len(r.SelectedTopics) != 1 || r.SelectedTopics[0].Topic != "UPI" || r.TopicsAnalyzed != 14 {
		t.Errorf("unexpected result %+v", r)
	}

	var w WriterResult
	_, err = DecodeInto(`{"scripts":"not a list"}`, &w)
	var failure DecodeFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected DecodeFailure for wrong shape, got %v", err)
	}
	if !strings.HasPrefix(failure.Reason, "unexpected shape") {
		t.Errorf("unexpected reason %q", failure.Reason)
	}
}

func TestExcerpt(t *testing.T) {
	long := strings.Repeat("क", 600)
	if got := Excerpt(long, ExcerptLength); len([]rune(got)) != 500 {
		t.Errorf("expected 500 runes, got %d", len([]rune(got)))
	}
	if got := Excerpt("short", ExcerptLength); got != "short" {
		t.Errorf("unexpected excerpt %q", got)
	}
	if got := Excerpt("abc", 0); got != "" {
		t.Errorf("expected empty excerpt, got %q", got)
	}
}

func TestNumberLenient(t *testing.T) {
	var rec ScriptRecord
	raw := `{"word_count":"950","estimated_audio_minutes":7.5,"confidence_score":{"overall":null,"hook_strength":"high","narrative_flow":80}}`
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.WordCount.Int() != 950 || rec.EstimatedAudioMinutes.Float() != 7.5 {
		t.Errorf("unexpected numbers %+v", rec)
	}
	if rec.ConfidenceScore == nil || rec.ConfidenceScore.Overall != 0 || rec.ConfidenceScore.HookStrength != 0 || rec.ConfidenceScore.NarrativeFlow != 80 {
		t.Errorf("unexpected confidence %+v", rec.ConfidenceScore)
	}
}

func TestScriptRecordPlaceholderJSON(t *testing.T) {
	data, err := json.Marshal(ScriptRecord{Error: ParseFailedMarker, Raw: "garbage"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"error":"Parse failed","raw":"garbage"}` {
		t.Errorf("unexpected placeholder json %s", data)
	}

	data, _ = json.Marshal(ScriptRecord{Title: "T", WordCount: 950})
	if !strings.Contains(string(data), `"word_count":950`) || strings.Contains(string(data), `"error"`) {
		t.Errorf("unexpected script json %s", data)
	}
}
