package policy

// LeastConnection scores each backend by its current in-flight count.
// A backend missing from Load is scored 0, which is the intended warm-up
// behavior: a not-yet-seen backend is preferred.
func LeastConnection(s Snapshot) (string, error) {
	return minByScore(healthyCandidates(s), func(url string) int64 {
		return s.Load[url]
	})
}
