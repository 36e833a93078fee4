package score

import "strings"

// BBH scores a Big-Bench-Hard response. The final answer is the lowercased
// suffix after the last "####" delimiter (or the whole response), with one
// trailing period removed. Beyond exact match, a bracketed-letter answer like
// "(a)" also matches when the letter appears as a standalone word, and
// true/false answers match by containment.
func BBH(response, correctAnswer string) float64 {
	answer := ExtractFinalAnswer(response)
	correct := strings.ToLower(strings.TrimSpace(correctAnswer))

	if answer == correct {
		return 1
	}

	if len(correct) == 3 && strings.HasPrefix(correct, "(") && strings.HasSuffix(correct, ")") {
		letter := string(correct[1])
		for _, word := range strings.Fields(answer) {
			if word == letter || word == "("+letter+")" {
				return 1
			}
		}
	}

	if correct == "true" || correct == "false" {
		if strings.Contains(answer, correct) {
			return 1
		}
	}

	return 0
}

// ExtractFinalAnswer normalizes a BBH response down to its final answer form.
func ExtractFinalAnswer(response string) string {
	answer := strings.ToLower(response)
	if idx := strings.LastIndex(answer, "####"); idx >= 0 {
		answer = strings.TrimSpace(answer[idx+len("####"):])
	}
	if strings.HasSuffix(answer, ".") {
		answer = strings.TrimSpace(strings.TrimSuffix(answer, "."))
	}
	return answer
}
