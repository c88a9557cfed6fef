package llm

import "strings"

// PriceTable holds per-million-token rates for one model. Capacity-tiered
// models carry a second rate set that applies above HighTierThreshold
// prompt tokens.
type PriceTable struct {
	Input  float64
	Output float64
	Cached float64

	HighInput  float64
	HighOutput float64
	HighCached float64
}

// HighTierThreshold is the prompt-token count above which the high-volume
// rate set applies, for models that have one.
const HighTierThreshold = 200_000

func (p PriceTable) tiered() bool { return p.HighInput != 0 }

var pricing = map[string]PriceTable{
	"gemini-2.5-pro": {
		Input: 1.25, Output: 10.00, Cached: 0.125,
		HighInput: 2.50, HighOutput: 15.00, HighCached: 0.25,
	},
	"gemini-3-pro": {
		Input: 2.00, Output: 12.00, Cached: 0.20,
		HighInput: 4.00, HighOutput: 18.00, HighCached: 0.40,
	},
	"gemini-3-pro-preview": {
		Input: 2.00, Output: 12.00, Cached: 0.20,
		HighInput: 4.00, HighOutput: 18.00, HighCached: 0.40,
	},
	"gemini-2.5-flash":      {Input: 0.30, Output: 2.50, Cached: 0.03},
	"gemini-2.5-flash-lite": {Input: 0.10, Output: 0.40, Cached: 0.01},
	"gemini-2.0-flash":      {Input: 0.10, Output: 0.40, Cached: 0.025},
	"gemini-2.0-flash-lite": {Input: 0.075, Output: 0.30, Cached: 0.0},
}

// Cost derives the monetary cost of one response from the normalized usage
// record. Unknown models cost zero.
func Cost(model string, u Usage) float64 {
	id := strings.TrimPrefix(strings.ToLower(model), "google/")
	p, ok := pricing[id]
	if !ok {
		return 0
	}

	prompt := float64(u.PromptTokens)
	output := float64(u.CompletionTokens)
	cached := float64(u.CachedTokens)

	if u.PromptTokens > HighTierThreshold && p.tiered() {
		return (prompt-cached)/1e6*p.HighInput + output/1e6*p.HighOutput + cached/1e6*p.HighCached
	}
	return (prompt-cached)/1e6*p.Input + output/1e6*p.Output + cached/1e6*p.Cached
}
