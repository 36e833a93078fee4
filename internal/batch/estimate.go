package batch

// EstimateTokens approximates the token count of a text at four characters
// per token, which is close enough for queue-limit budgeting and up-front
// cost estimates.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	n := (len(text) + 3) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// estimateRequestTokens sums the content estimates of a request's messages.
func estimateRequestTokens(req RequestItem) int {
	total := 0
	for _, m := range req.Messages {
		total += EstimateTokens(m.Content)
	}
	return total
}
