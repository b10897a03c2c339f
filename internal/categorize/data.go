package categorize

import (
	"regexp"
	"time"
)

// Rule is one classification rule, ordered by priority then age.
// Rules arrive from the store and are compiled once per rule-set swap.
type Rule struct {
	Name            string
	Type            RuleType
	Pattern         string
	Category        string
	Subcategory     string
	ConfidenceBoost float64
	Priority        int
	CreatedAt       time.Time

	// compiled regex, set for regex rules at load time
	re *regexp.Regexp
}

type RuleType string

const (
	RuleKeyword   RuleType = "keyword"
	RuleRegex     RuleType = "regex"
	RuleStructure RuleType = "structure"
	RuleSemantic  RuleType = "semantic"
)

// Classification is the outcome of running the rule set over one
// candidate span.
type Classification struct {
	Category        string
	Subcategory     string
	ContentType     string
	Tags            []string
	ConfidenceBoost float64
	// MatchCount feeds the confidence score downstream.
	MatchCount int
}

// CategoryUnknown is assigned when no rule matches.
const CategoryUnknown = "uncategorized"
