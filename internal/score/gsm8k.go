package score

import (
	"math"
	"strconv"
	"strings"
)

// GSM8K compares the numeric final answer extracted from the response against
// the correct answer parsed as a float.
func GSM8K(response, correctAnswer string) float64 {
	correct, err := strconv.ParseFloat(strings.TrimSpace(correctAnswer), 64)
	if err != nil {
		return 0
	}
	if ExtractNumber(response) == correct {
		return 1
	}
	return 0
}

// ExtractNumber pulls the final numeric answer out of a GSM8K-style response.
// The answer is whatever follows the last "####" delimiter, or the whole
// response when the delimiter is absent, stripped down to digits and dots.
// An unparseable response yields +Inf, which never matches a real answer.
func ExtractNumber(response string) float64 {
	s := response
	if idx := strings.LastIndex(s, "####"); idx >= 0 {
		s = strings.TrimSpace(s[idx+len("####"):])
	}

	var sb strings.Builder
	for _, c := range s {
		if (c >= '0' && c <= '9') || c == '.' {
			sb.WriteRune(c)
		}
	}

	f, err := strconv.ParseFloat(sb.String(), 64)
	if err != nil {
		return math.Inf(1)
	}
	return f
}
