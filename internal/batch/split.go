package batch

// Providers cap batch jobs by queued token volume; keep 10% of the configured
// limit in reserve since the estimate is approximate.
const queueSafetyMargin = 0.10

// splitRequests packs requests into sub-batches whose summed token estimates
// stay under the queue limit minus the safety margin. Packing is greedy in
// input order: requests are never reordered, dropped, or duplicated. A single
// request that alone exceeds the budget forms its own sub-batch. A
// non-positive limit disables splitting.
func splitRequests(reqs []RequestItem, queueLimit int) [][]RequestItem {
	if len(reqs) == 0 {
		return nil
	}
	if queueLimit <= 0 {
		return [][]RequestItem{reqs}
	}

	budget := int(float64(queueLimit) * (1 - queueSafetyMargin))
	if budget < 1 {
		budget = 1
	}

	var (
		out     [][]RequestItem
		current []RequestItem
		used    int
	)

	for _, req := range reqs {
		tokens := estimateRequestTokens(req)
		if len(current) > 0 && used+tokens > budget {
			out = append(out, current)
			current = nil
			used = 0
		}
		current = append(current, req)
		used += tokens
	}
	if len(current) > 0 {
		out = append(out, current)
	}
	return out
}
