package cost

// Usage records the token counts reported for one completed request.
// Values are immutable once created.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

func (u Usage) TotalTokens() int {
	return u.PromptTokens + u.CompletionTokens
}

// Rates holds per-token prices for one model. Batch processing is billed at
// half the list price, so NewBatchRates divides the per-million list price
// by 1e6 and then by two.
type Rates struct {
	InputTokenCost  float64
	OutputTokenCost float64
}

func NewBatchRates(inputCostPerMillion, outputCostPerMillion float64) Rates {
	return Rates{
		InputTokenCost:  inputCostPerMillion / 1_000_000 / 2,
		OutputTokenCost: outputCostPerMillion / 1_000_000 / 2,
	}
}

func (r Rates) InputCost(promptTokens int) float64 {
	if promptTokens <= 0 {
		return 0
	}
	return float64(promptTokens) * r.InputTokenCost
}

func (r Rates) OutputCost(completionTokens int) float64 {
	if completionTokens <= 0 {
		return 0
	}
	return float64(completionTokens) * r.OutputTokenCost
}
