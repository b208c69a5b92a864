package claude

import (
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/shopspring/decimal"
)

// ModelPricing holds per-model token prices in USD per million tokens.
type ModelPricing struct {
	InputPerMTok  decimal.Decimal
	OutputPerMTok decimal.Decimal
}

var million = decimal.NewFromInt(1_000_000)

// Cost calculates the USD cost of one invocation.
func (p ModelPricing) Cost(inputTokens, outputTokens int64) decimal.Decimal {
	cost := decimal.NewFromInt(inputTokens).Mul(p.InputPerMTok).Div(million)
	return cost.Add(decimal.NewFromInt(outputTokens).Mul(p.OutputPerMTok).Div(million))
}

// DefaultPricing contains built-in pricing for Claude models (USD per
// million tokens). Override via WithPricing.
var DefaultPricing = map[anthropic.Model]ModelPricing{
	anthropic.ModelClaudeOpus4_6: {
		InputPerMTok:  decimal.NewFromFloat(5),
		OutputPerMTok: decimal.NewFromFloat(25),
	},
	anthropic.ModelClaudeSonnet4_5: {
		InputPerMTok:  decimal.NewFromFloat(3),
		OutputPerMTok: decimal.NewFromFloat(15),
	},
	anthropic.ModelClaudeHaiku4_5: {
		InputPerMTok:  decimal.NewFromFloat(1),
		OutputPerMTok: decimal.NewFromFloat(5),
	},
}
