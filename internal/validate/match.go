package validate

import "strings"

// Scoring weights for best-effort path matching. Segment overlap dominates,
// a shared prefix breaks ties between sibling candidates, and length
// similarity penalizes wildly different nesting depths.
const (
	segmentWeight = 3.0
	prefixWeight  = 2.0
	lengthWeight  = 1.0

	// minMatchScore is the acceptance threshold; below it the field is
	// treated as unknown rather than force-fit to a wrong schema entry.
	minMatchScore = 3.0
)

// bestMatch scores every schema path against the target and returns the
// highest-scoring candidate at or above the acceptance threshold.
// Deterministic: candidates are scanned in schema declaration order and a
// later candidate must strictly beat the incumbent.
func bestMatch(target string, candidates []string) (string, bool) {
	targetSegs := strings.Split(target, ".")

	best := ""
	bestScore := 0.0
	for _, cand := range candidates {
		score := matchScore(targetSegs, strings.Split(cand, "."))
		if score > bestScore {
			best = cand
			bestScore = score
		}
	}
	if bestScore < minMatchScore {
		return "", false
	}
	return best, true
}

// matchScore rates how plausibly a candidate schema path describes the
// target document path.
func matchScore(target, cand []string) float64 {
	// The leaf field name must agree; context scoring only disambiguates
	// fields that moved within the tree.
	if target[len(target)-1] != cand[len(cand)-1] {
		return 0
	}

	candSet := make(map[string]struct{}, len(cand))
	for _, s := range cand {
		candSet[s] = struct{}{}
	}
	overlap := 0
	for _, s := range target {
		if _, ok := candSet[s]; ok {
			overlap++
		}
	}

	prefix := 0
	for prefix < len(target) && prefix < len(cand) && target[prefix] == cand[prefix] {
		prefix++
	}

	longer := len(target)
	if len(cand) > longer {
		longer = len(cand)
	}
	shorter := len(target)
	if len(cand) < shorter {
		shorter = len(cand)
	}
	lengthSim := float64(shorter) / float64(longer)

	return segmentWeight*float64(overlap) + prefixWeight*float64(prefix) + lengthWeight*lengthSim
}
