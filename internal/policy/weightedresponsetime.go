package policy

// WeightedResponseTime scores each backend by mean_latency/weight using
// integer division. A missing weight defaults to 1.
func WeightedResponseTime(s Snapshot) (string, error) {
	return minByScore(healthyCandidates(s), func(url string) int64 {
		weight := s.Weight[url]
		if weight < 1 {
			weight = 1
		}
		return s.MeanLatency[url] / weight
	})
}
