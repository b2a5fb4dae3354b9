package stream

// UsageCalculator maps raw token counts to reported usage.
type UsageCalculator interface {
	Calculate(inputTokens, outputTokens int) *Usage
}

// Pricing prices usage per 1K tokens. The zero value reports token counts
// only.
type Pricing struct {
	InputPer1K  float64
	OutputPer1K float64
	Currency    string
}

// Calculate implements UsageCalculator.
func (p Pricing) Calculate(inputTokens, outputTokens int) *Usage {
	u := &Usage{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  inputTokens + outputTokens,
		Currency:     p.Currency,
	}
	u.InputPrice = float64(inputTokens) / 1000 * p.InputPer1K
	u.OutputPrice = float64(outputTokens) / 1000 * p.OutputPer1K
	u.TotalPrice = u.InputPrice + u.OutputPrice
	return u
}
