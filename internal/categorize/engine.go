package categorize

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rohmanhakim/lore-crawler/internal/extractor"
)

/*
Responsibilities
- Hold the active rule set, swappable at runtime under a write lock
- Classify candidate spans: first matching rule sets the category,
  later matches add tags and adjust the confidence boost
- Bound regex evaluation so a pathological pattern cannot stall a job

Rule Semantics
- Rules evaluate in priority order (ascending), ties broken by age
  (older rules are considered more stable)
- keyword: case-insensitive substring match on the raw text
- regex: pattern match on the raw text, bounded by a deadline
- structure: match on the candidate's structural role
- semantic: lookup in the keyword-cluster table

Content type comes from the structural role, not from rules.
*/

// regexDeadline bounds one pattern evaluation. A rule that overruns is
// disabled for the session and logged; it is never a job error.
const regexDeadline = 100 * time.Millisecond

type Engine struct {
	mu    sync.RWMutex
	rules []Rule
	log   zerolog.Logger

	// disabledMu guards the names of regex rules benched for the session.
	disabledMu sync.Mutex
	disabled   map[string]bool
}

func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		log:      log,
		disabled: make(map[string]bool),
	}
}

// SetRules replaces the active rule set. Regex patterns compile here;
// a pattern that fails to compile drops its rule with a log line.
func (e *Engine) SetRules(rules []Rule) {
	compiled := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		if rule.Type == RuleRegex {
			re, err := regexp.Compile(rule.Pattern)
			if err != nil {
				e.log.Warn().Str("rule", rule.Name).Err(err).Msg("regex rule dropped: pattern does not compile")
				continue
			}
			rule.re = re
		}
		compiled = append(compiled, rule)
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		if compiled[i].Priority != compiled[j].Priority {
			return compiled[i].Priority < compiled[j].Priority
		}
		return compiled[i].CreatedAt.Before(compiled[j].CreatedAt)
	})

	e.mu.Lock()
	e.rules = compiled
	e.mu.Unlock()

	// A fresh rule set clears session benchings.
	e.disabledMu.Lock()
	e.disabled = make(map[string]bool)
	e.disabledMu.Unlock()
}

// Classify runs the rule set over one candidate. The read lock is held
// for the duration of classifying this single candidate.
func (e *Engine) Classify(ctx context.Context, candidate extractor.Candidate) Classification {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := Classification{
		Category:    CategoryUnknown,
		ContentType: contentTypeForRole(candidate.Role),
	}

	tagSet := make(map[string]struct{})
	categorySet := false

	for i := range e.rules {
		rule := &e.rules[i]
		if e.isDisabled(rule.Name) {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		if !e.matches(rule, candidate) {
			continue
		}

		result.MatchCount++
		if !categorySet {
			result.Category = rule.Category
			result.Subcategory = rule.Subcategory
			categorySet = true
		} else if _, dup := tagSet[rule.Category]; !dup && rule.Category != result.Category {
			// Later matches contribute their category as a tag.
			tagSet[rule.Category] = struct{}{}
			result.Tags = append(result.Tags, rule.Category)
		}
		result.ConfidenceBoost = clamp(result.ConfidenceBoost+rule.ConfidenceBoost, -1, 1)
	}

	return result
}

func (e *Engine) matches(rule *Rule, candidate extractor.Candidate) bool {
	switch rule.Type {
	case RuleKeyword:
		return strings.Contains(strings.ToLower(candidate.RawText), strings.ToLower(rule.Pattern))

	case RuleRegex:
		return e.matchRegexBounded(rule, candidate.RawText)

	case RuleStructure:
		return string(candidate.Role) == rule.Pattern

	case RuleSemantic:
		return matchCluster(rule.Pattern, candidate.RawText)

	default:
		return false
	}
}

// matchRegexBounded evaluates a regex with a watchdog. Go's RE2 engine
// has no catastrophic backtracking, but rule patterns are user input and
// the deadline also guards against huge inputs; an overrunning rule is
// disabled for the session.
func (e *Engine) matchRegexBounded(rule *Rule, text string) bool {
	done := make(chan bool, 1)
	go func() {
		done <- rule.re.MatchString(text)
	}()

	select {
	case matched := <-done:
		return matched
	case <-time.After(regexDeadline):
		e.disabledMu.Lock()
		e.disabled[rule.Name] = true
		e.disabledMu.Unlock()
		e.log.Warn().Str("rule", rule.Name).Msg("regex rule disabled: evaluation deadline exceeded")
		return false
	}
}

func (e *Engine) isDisabled(name string) bool {
	e.disabledMu.Lock()
	defer e.disabledMu.Unlock()
	return e.disabled[name]
}

// contentTypeForRole derives the stored content type from where the
// span sat in the document.
func contentTypeForRole(role extractor.StructuralRole) string {
	switch role {
	case extractor.RoleCodeBlock:
		return "code"
	case extractor.RoleDefinition:
		return "definition"
	case extractor.RoleHeadingParagraph:
		return "concept"
	case extractor.RoleTutorialStep:
		return "tutorial-step"
	case extractor.RoleListItem:
		return "example"
	case extractor.RoleBlockquote:
		return "reference"
	default:
		return "other"
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
