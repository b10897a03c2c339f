package extractor

import "strings"

// Stop-word tables for the languages the pipeline distinguishes. The
// detection is heuristic metadata, not a linguistic claim: it counts how
// often the most common function words of each language appear.
var stopWords = map[string][]string{
	"en": {"the", "and", "for", "that", "with", "this", "from", "are", "was", "have", "not", "you"},
	"es": {"que", "los", "las", "una", "por", "con", "para", "del", "este", "como", "más", "pero"},
	"de": {"der", "die", "das", "und", "ist", "nicht", "ein", "eine", "mit", "für", "auf", "den"},
	"fr": {"les", "des", "une", "est", "dans", "pour", "que", "qui", "pas", "sur", "avec", "par"},
}

// codeMarkers suggest the text is source code rather than prose.
var codeMarkers = []string{
	"func ", "def ", "class ", "import ", "return ", "var ", "const ",
	"#include", "package ", "=> {", "};",
}

// DetectLanguage guesses the dominant language of a text from common-word
// frequency, returning the language code and a certainty in [0,1].
// Texts dominated by code markers report "code" with high certainty.
func DetectLanguage(text string) (string, float64) {
	lower := strings.ToLower(text)

	codeHits := 0
	for _, marker := range codeMarkers {
		codeHits += strings.Count(lower, marker)
	}

	fields := strings.Fields(lower)
	if len(fields) == 0 {
		return "unknown", 0
	}
	if codeHits > 2 && codeHits*20 > len(fields) {
		return "code", 0.9
	}

	counts := make(map[string]int, len(stopWords))
	for _, word := range fields {
		word = strings.Trim(word, ".,;:!?()\"'")
		for lang, words := range stopWords {
			for _, sw := range words {
				if word == sw {
					counts[lang]++
					break
				}
			}
		}
	}

	best, bestCount, total := "unknown", 0, 0
	for lang, count := range counts {
		total += count
		if count > bestCount {
			best, bestCount = lang, count
		}
	}
	if bestCount == 0 {
		return "unknown", 0
	}

	// Certainty blends dominance over rival languages with stop-word
	// density in the text itself.
	dominance := float64(bestCount) / float64(total)
	density := float64(bestCount) / float64(len(fields))
	certainty := dominance * minFloat(1.0, density*10)
	return best, certainty
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
