package usecase

import "strings"

// Keyword groups for query-complexity estimation. The corpus is mixed
// Finnish/English, so both languages are matched.
var (
	exhaustiveKeywords = []string{
		"etsi", "hae", "löydä", "kaikki", "kaikkia",
		"search", "find", "all", "every", "each",
		"listaa", "luettele", "kerro kaikki",
		"mitkä kaikki", "mitä kaikkea",
	}
	questionMarkers = []string{
		"?", "ja", "sekä", "myös", "lisäksi", "and", "also",
	}
	comparativeKeywords = []string{
		"vertaa", "vertaile", "ero", "erot", "eroa",
		"compare", "difference",
		"yhteenveto", "summary", "kokonaiskuva", "overview",
	}
	specificKeywords = []string{
		"mikä on", "kuka on", "milloin", "missä",
		"what is", "who is", "when", "where",
		"määrittele", "define",
	}
)

// EstimateTopK maps a raw query string to a recommended result count in
// [4,20]. The rule stack runs in a fixed order so results are reproducible:
// exhaustive markers override the base to 20 before any adjustment, and the
// short-query reduction is skipped in that case so an exhaustive three-word
// query still gets the full 20.
func EstimateTopK(query string) int {
	lower := strings.ToLower(query)

	topK := 6
	exhaustive := containsAny(lower, exhaustiveKeywords)
	if exhaustive {
		topK = 20
	}

	words := strings.Fields(query)
	switch {
	case len(words) > 20:
		topK += 3
	case len(words) > 10:
		topK += 2
	case len(words) < 5 && !exhaustive:
		topK = maxInt(topK-1, 4)
	}

	markerCount := 0
	for _, marker := range questionMarkers {
		if strings.Contains(lower, marker) {
			markerCount++
		}
	}
	switch {
	case markerCount > 2:
		topK += 3
	case markerCount > 1:
		topK += 2
	}

	if containsAny(lower, comparativeKeywords) {
		topK += 4
	}

	if containsAny(lower, specificKeywords) {
		topK = maxInt(topK-2, 4)
	}

	return clampInt(topK, 4, 20)
}

// IsExhaustiveQuery reports whether the query carries a marker meaning the
// user wants comprehensive rather than top-few results.
func IsExhaustiveQuery(query string) bool {
	return containsAny(strings.ToLower(query), exhaustiveKeywords)
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
