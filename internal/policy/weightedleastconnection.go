package policy

// WeightedLeastConnection scores each backend by load/weight using integer
// division. A missing weight defaults to 1.
func WeightedLeastConnection(s Snapshot) (string, error) {
	return minByScore(healthyCandidates(s), func(url string) int64 {
		weight := s.Weight[url]
		if weight < 1 {
			weight = 1
		}
		return s.Load[url] / weight
	})
}
