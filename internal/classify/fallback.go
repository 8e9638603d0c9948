package classify

import "strings"

// MatchByName is the deterministic fallback matcher: exact name match first,
// then substring containment, then token overlap. Returns nil when no
// candidate scores above the floor.
func MatchByName(text string, candidates []Candidate) *int64 {
	norm := normalize(text)
	if norm == "" {
		return nil
	}

	var best *int64
	bestScore := 0.0
	for i := range candidates {
		score := scoreMatch(norm, normalize(candidates[i].Name))
		if score > bestScore {
			bestScore = score
			best = &candidates[i].ID
		}
	}
	if bestScore < 0.5 {
		return nil
	}
	return best
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

func scoreMatch(text, name string) float64 {
	if name == "" {
		return 0
	}
	if text == name {
		return 1.0
	}
	if strings.Contains(text, name) || strings.Contains(name, text) {
		return 0.8
	}
	textTokens := strings.Fields(text)
	nameTokens := strings.Fields(name)
	if len(nameTokens) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(textTokens))
	for _, tok := range textTokens {
		seen[tok] = struct{}{}
	}
	overlap := 0
	for _, tok := range nameTokens {
		if _, ok := seen[tok]; ok {
			overlap++
		}
	}
	return 0.7 * float64(overlap) / float64(len(nameTokens))
}
