package extractor

import "strings"

// EstimateComplexity buckets a document by vocabulary sophistication:
// token count, average word length, and the share of long words. Coarse
// by design; the buckets feed the per-bit complexity level downstream.
func EstimateComplexity(text string) ComplexityBucket {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ComplexitySimple
	}

	totalLen := 0
	longWords := 0
	for _, word := range fields {
		totalLen += len(word)
		if len(word) >= 10 {
			longWords++
		}
	}
	avgLen := float64(totalLen) / float64(len(fields))
	longRatio := float64(longWords) / float64(len(fields))

	score := 0
	if len(fields) > 150 {
		score++
	}
	if len(fields) > 600 {
		score++
	}
	if avgLen > 5.5 {
		score++
	}
	if longRatio > 0.12 {
		score++
	}

	switch {
	case score >= 4:
		return ComplexityVeryComplex
	case score == 3:
		return ComplexityComplex
	case score == 2:
		return ComplexityModerate
	default:
		return ComplexitySimple
	}
}

// ComplexityLevelFor maps a document bucket and span role onto the
// three-level scale stored with each bit. Code spans always rate at
// least intermediate.
func ComplexityLevelFor(bucket ComplexityBucket, role StructuralRole) string {
	level := "beginner"
	switch bucket {
	case ComplexityModerate:
		level = "intermediate"
	case ComplexityComplex, ComplexityVeryComplex:
		level = "advanced"
	}
	if role == RoleCodeBlock && level == "beginner" {
		level = "intermediate"
	}
	return level
}
