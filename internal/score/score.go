package score

import "strings"

// Func scores a model response against the correct answer for one question.
// Returns 1 for a correct answer and 0 otherwise.
type Func func(response, correctAnswer string) float64

// ForBenchmark returns the scoring function registered for a benchmark name.
func ForBenchmark(name string) (Func, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mmlu":
		return MMLU, true
	case "gsm8k":
		return GSM8K, true
	case "bbh":
		return BBH, true
	default:
		return nil, false
	}
}
