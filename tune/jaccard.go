package tune

// Jaccard returns the Jaccard similarity |a∩b| / |a∪b| of two row-id sets
// given as slices (duplicates are collapsed). Two empty sets are identical
// and score 1.
//
// The anomaly loop's first round compares against an empty previous set and
// therefore scores 0 (the union is the l current candidates, the
// intersection empty). That convention is load-bearing: it guarantees the
// loop never converges before completing a second round.
func Jaccard(a, b []string) float64 {
	seen := make(map[string]bool, len(a))
	for _, id := range a {
		seen[id] = true
	}

	union := len(seen)
	intersect := 0
	counted := make(map[string]bool, len(b))
	for _, id := range b {
		if counted[id] {
			continue
		}
		counted[id] = true
		if seen[id] {
			intersect++
		} else {
			union++
		}
	}

	if union == 0 {
		return 1
	}
	return float64(intersect) / float64(union)
}

// rowIDs projects the identifiers out of a scored-row slice.
func rowIDs(rows []ScoredRow) []string {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.RowID
	}
	return ids
}
