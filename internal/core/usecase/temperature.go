package usecase

import "strings"

const (
	temperatureFactual  = 0.0
	temperatureBalanced = 0.3
	temperatureCreative = 0.7
)

// Marker stems, not full words, so Spanish conjugations and English variants
// both match ("sugiere"/"sugerir", "recommend"/"recommendation").
var (
	creativeMarkers = []string{
		"suger", "sugier", "recomiend", "recomiénd", "imagin", "propon", "propón", "idea",
		"suggest", "recommend", "imagine", "brainstorm", "propose",
	}
	analyticalMarkers = []string{
		"resum", "explic", "explíc", "compar", "analiz", "analic", "evalú", "evalua",
		"summar", "explain", "compare", "analy", "describe", "overview",
	}
	factualMarkers = []string{
		"cuál", "cual", "cuánt", "cuant", "quién", "quien", "cuándo", "cuando",
		"dónde", "donde", "which", "what", "how much", "how many", "when", "where", "who",
	}
)

// ClassifyTemperature picks a generation temperature for a question from its
// phrasing: creative asks run warm, factual lookups run cold, anything
// analytical or unrecognized stays balanced. Pure and deterministic; callers
// supplying an explicit temperature bypass it entirely.
func ClassifyTemperature(question string) float64 {
	q := strings.ToLower(question)

	if containsAny(q, creativeMarkers) {
		return temperatureCreative
	}
	if containsAny(q, analyticalMarkers) {
		return temperatureBalanced
	}
	if containsAny(q, factualMarkers) || containsDigit(q) {
		return temperatureFactual
	}
	return temperatureBalanced
}

// ClampTemperature bounds an explicit caller temperature to the generator's
// valid range.
func ClampTemperature(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 2 {
		return 2
	}
	return t
}

func containsAny(q string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(q, marker) {
			return true
		}
	}
	return false
}

func containsDigit(q string) bool {
	for _, r := range q {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
