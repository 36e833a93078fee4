package score

import "strings"

// MMLU answers are a single choice letter; the whole response must match the
// correct answer case-insensitively.
func MMLU(response, correctAnswer string) float64 {
	if strings.EqualFold(response, correctAnswer) {
		return 1
	}
	return 0
}
