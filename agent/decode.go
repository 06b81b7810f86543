package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ExcerptLength is how much of an unreadable reply is kept.
const ExcerptLength = 500

// ErrDecodeFailure is wrapped by every DecodeFailure.
var ErrDecodeFailure = errors.New("model response is not a JSON object")

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// Strategy names the tier that produced a successful decode.
type Strategy string

const (
	StrategyWhole  Strategy = "whole"
	StrategyFenced Strategy = "fenced"
	StrategyBraces Strategy = "braces"
)

// DecodeResult is either DecodeSuccess or DecodeFailure.
type DecodeResult interface {
	decodeResult()
}

// DecodeSuccess carries the decoded object and the exact text it came from.
type DecodeSuccess struct {
	Value    map[string]any
	Source   string
	Strategy Strategy
}

// DecodeFailure is returned when no tier yields a JSON object.
type DecodeFailure struct {
	Reason     string
	RawExcerpt string
}

func (DecodeSuccess) decodeResult() {}
func (DecodeFailure) decodeResult() {}

func (f DecodeFailure) Error() string { return "decode failure: " + f.Reason }

func (f DecodeFailure) Unwrap() error { return ErrDecodeFailure }

// Decode tries the whole text, then the first fenced code block, then the
// span from the first '{' to the last '}'. The first object that parses wins.
func Decode(raw string) DecodeResult {
	if v, ok := parseObject(raw); ok {
		return DecodeSuccess{Value: v, Source: raw, Strategy: StrategyWhole}
	}
	if m := fencedBlock.FindStringSubmatch(raw); m != nil {
		if v, ok := parseObject(m[1]); ok {
			return DecodeSuccess{Value: v, Source: m[1], Strategy: StrategyFenced}
		}
	}
	start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		span := raw[start : end+1]
		if v, ok := parseObject(span); ok {
			return DecodeSuccess{Value: v, Source: span, Strategy: StrategyBraces}
		}
	}

	reason := "no JSON object found"
	if strings.TrimSpace(raw) == "" {
		reason = "empty response"
	}
	return DecodeFailure{Reason: reason, RawExcerpt: Excerpt(raw, ExcerptLength)}
}

// DecodeInto decodes raw and unmarshals the winning text into v. It returns
// a DecodeFailure when no tier succeeds or the object has the wrong shape.
func DecodeInto(raw string, v any) (Strategy, error) {
	switch r := Decode(raw).(type) {
	case DecodeSuccess:
		if err := json.Unmarshal([]byte(r.Source), v); err != nil {
			return r.Strategy, DecodeFailure{
				Reason:     fmt.Sprintf("unexpected shape: %v", err),
				RawExcerpt: Excerpt(raw, ExcerptLength),
			}
		}
		return r.Strategy, nil
	case DecodeFailure:
		return "", r
	default:
		return "", DecodeFailure{Reason: "unknown decode result", RawExcerpt: Excerpt(raw, ExcerptLength)}
	}
}

func parseObject(s string) (map[string]any, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	var v map[string]any
	if err := json.Unmarshal([]byte(s), &v); err != nil || v == nil {
		return nil, false
	}
	return v, true
}

// Excerpt returns at most n runes of s.
func Excerpt(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
