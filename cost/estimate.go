package cost

import (
	"fmt"
	"math"
)

const (
	// PromptCharsEstimate stands in for the combined size of both prompts.
	PromptCharsEstimate = 5500
	// CharsPerToken is the fixed token heuristic.
	CharsPerToken = 4
	// DefaultResearchChars replaces a zero-length Research reply.
	DefaultResearchChars = 1500

	InputUSDPerMillion  = 2.0
	OutputUSDPerMillion = 8.0
	INRPerUSD           = 85.0

	HumanINRPerScript = 650
	ScriptsPerRun     = 3
	HumanBasis        = "Indian freelance content marketplace average"
)

// Lengths are reply sizes in characters, counted the way CharCount does.
type Lengths struct {
	ResearchResponse int
	WriterResponse   int
}

// Breakdown is the unrounded estimate. Round only through Report.
type Breakdown struct {
	InputTokens  int
	OutputTokens int

	USD          float64
	INR          float64
	PerScriptINR float64

	HumanTotalINR     float64
	HumanPerScriptINR float64

	Multiplier float64
	SavedINR   float64

	Model string
}

// Estimate is a pure function of the reply lengths.
func Estimate(l Lengths, model string) Breakdown {
	research := l.ResearchResponse
	if research <= 0 {
		research = DefaultResearchChars
	}
	writer := max(l.WriterResponse, 0)

	in := ceilDiv(PromptCharsEstimate, CharsPerToken)
	out := ceilDiv(research+writer, CharsPerToken)

	usd := float64(in)/1e6*InputUSDPerMillion + float64(out)/1e6*OutputUSDPerMillion
	inr := usd * INRPerUSD
	human := float64(HumanINRPerScript * ScriptsPerRun)

	b := Breakdown{
		InputTokens:       in,
		OutputTokens:      out,
		USD:               usd,
		INR:               inr,
		PerScriptINR:      inr / ScriptsPerRun,
		HumanTotalINR:     human,
		HumanPerScriptINR: HumanINRPerScript,
		SavedINR:          human - inr,
		Model:             model,
	}
	if inr > 0 {
		b.Multiplier = human / inr
	}
	return b
}

func (b Breakdown) TotalTokens() int { return b.InputTokens + b.OutputTokens }

// CharCount counts UTF-16 code units, which is how reply lengths were
// measured when the pricing constants were calibrated.
func CharCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// Report is the presentation shape of a Breakdown.
type Report struct {
	AI      AIReport      `json:"ai"`
	Human   HumanReport   `json:"human"`
	Savings SavingsReport `json:"savings"`
}

type AIReport struct {
	TotalUSD     float64     `json:"total_usd"`
	TotalINR     float64     `json:"total_inr"`
	PerScriptINR float64     `json:"per_script_inr"`
	Tokens       TokenReport `json:"tokens"`
	Model        string      `json:"model"`
}

type TokenReport struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

type HumanReport struct {
	TotalINR     float64 `json:"total_inr"`
	PerScriptINR float64 `json:"per_script_inr"`
	Basis        string  `json:"basis"`
}

type SavingsReport struct {
	Multiplier string  `json:"multiplier"`
	SavedINR   float64 `json:"saved_inr"`
}

// Report rounds USD to 4 places, INR to 2 places and the savings to whole units.
func (b Breakdown) Report() Report {
	return Report{
		AI: AIReport{
			TotalUSD:     roundTo(b.USD, 4),
			TotalINR:     roundTo(b.INR, 2),
			PerScriptINR: roundTo(b.PerScriptINR, 2),
			Tokens: TokenReport{
				Input:  b.InputTokens,
				Output: b.OutputTokens,
				Total:  b.TotalTokens(),
			},
			Model: b.Model,
		},
		Human: HumanReport{
			TotalINR:     b.HumanTotalINR,
			PerScriptINR: b.HumanPerScriptINR,
			Basis:        HumanBasis,
		},
		Savings: SavingsReport{
			Multiplier: fmt.Sprintf("%dx", int64(math.Round(b.Multiplier))),
			SavedINR:   math.Round(b.SavedINR),
		},
	}
}

func roundTo(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
