package scheduling

import "sort"

// Less orders candidates: sender work time first, then preference score,
// then sender friendliness, then the earliest instant.
func Less(a, b Candidate) bool {
	if a.IsUserWorkTime != b.IsUserWorkTime {
		return a.IsUserWorkTime
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Friendliness != b.Friendliness {
		return a.Friendliness > b.Friendliness
	}
	return a.Time.Before(b.Time)
}

// Rank sorts candidates in place, best first.
func Rank(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool { return Less(cs[i], cs[j]) })
}

// Best returns the top candidate without reordering cs.
func Best(cs []Candidate) (Candidate, bool) {
	if len(cs) == 0 {
		return Candidate{}, false
	}
	best := cs[0]
	for _, c := range cs[1:] {
		if Less(c, best) {
			best = c
		}
	}
	return best, true
}
