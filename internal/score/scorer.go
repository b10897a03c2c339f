package score

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rohmanhakim/lore-crawler/internal/categorize"
	"github.com/rohmanhakim/lore-crawler/internal/extractor"
	"github.com/rohmanhakim/lore-crawler/internal/store"
)

/*
Responsibilities
- Compute importance and confidence for each classified candidate
- Decide keep/drop against the adaptive thresholds (with per-category
  bonuses applied before the comparison)
- Observe outcomes and adapt thresholds toward the target retention rate

Importance is a weighted feature sum squashed to [0,1] by a logistic;
confidence is a bounded linear blend. Both are pure functions of their
inputs, so scoring is deterministic given the rule set.
*/

// ThresholdStore is the slice of the store the scorer needs.
type ThresholdStore interface {
	GetThresholds(ctx context.Context) (store.Thresholds, error)
	SetThresholds(ctx context.Context, t store.Thresholds) error
}

// Feature weights for the importance sum. The logistic bias puts a short
// concept paragraph on the seed page near 0.5; a plain mid-length
// paragraph there scores about 0.7.
const (
	weightLength    = 1.2
	weightStructure = 0.8
	weightKeywords  = 0.9
	weightDepth     = 0.5
	weightLinkIn    = 0.4
	logisticBias    = 1.0
)

type Scorer struct {
	thresholdStore ThresholdStore
	log            zerolog.Logger

	mu         sync.RWMutex
	thresholds store.Thresholds
	// lowercase keyword patterns from active keyword rules, for the
	// domain-keyword-density feature
	ruleKeywords []string

	adapt adaptationWindow
}

func NewScorer(thresholdStore ThresholdStore, log zerolog.Logger) *Scorer {
	return &Scorer{
		thresholdStore: thresholdStore,
		log:            log,
		thresholds:     store.DefaultThresholds(),
	}
}

// Load pulls the current thresholds from the store.
func (s *Scorer) Load(ctx context.Context) error {
	t, err := s.thresholdStore.GetThresholds(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.thresholds = t
	s.mu.Unlock()
	return nil
}

// SetRuleKeywords refreshes the domain keyword list used as an
// importance feature. Call whenever the rule set is swapped.
func (s *Scorer) SetRuleKeywords(keywords []string) {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	s.mu.Lock()
	s.ruleKeywords = lowered
	s.mu.Unlock()
}

// Score computes (importance, confidence) for one classified candidate.
// pageDepth is the crawl depth of the candidate's page; linkInCount is
// how many bits reference it so far.
func (s *Scorer) Score(
	candidate extractor.Candidate,
	classification categorize.Classification,
	languageCertainty float64,
	pageDepth int,
	linkInCount int,
) (float64, float64) {
	s.mu.RLock()
	keywords := s.ruleKeywords
	s.mu.RUnlock()

	importance := s.importance(candidate, keywords, pageDepth, linkInCount)
	confidence := s.confidence(candidate, classification, languageCertainty)
	return importance, confidence
}

func (s *Scorer) importance(candidate extractor.Candidate, keywords []string, pageDepth, linkInCount int) float64 {
	words := len(strings.Fields(candidate.RawText))

	// Mid-range lengths (40-400 words) carry the most signal.
	var lengthScore float64
	switch {
	case words <= 0:
		lengthScore = 0
	case words < 40:
		lengthScore = float64(words) / 40
	case words <= 400:
		lengthScore = 1
	default:
		lengthScore = 400 / float64(words)
	}

	var structureScore float64
	switch candidate.Role {
	case extractor.RoleCodeBlock:
		structureScore = 1.0
	case extractor.RoleDefinition:
		structureScore = 0.9
	case extractor.RoleTutorialStep:
		structureScore = 0.8
	case extractor.RoleHeadingParagraph:
		structureScore = 0.6
	case extractor.RoleListItem, extractor.RoleBlockquote:
		structureScore = 0.4
	default:
		structureScore = 0.2
	}

	var keywordScore float64
	if len(keywords) > 0 && words > 0 {
		lower := strings.ToLower(candidate.RawText)
		hits := 0
		for _, keyword := range keywords {
			hits += strings.Count(lower, keyword)
		}
		keywordScore = math.Min(1, float64(hits*10)/float64(words))
	}

	depthScore := 1.0 / (1.0 + float64(pageDepth))
	linkInScore := math.Min(1, float64(linkInCount)/5)

	sum := weightLength*lengthScore +
		weightStructure*structureScore +
		weightKeywords*keywordScore +
		weightDepth*depthScore +
		weightLinkIn*linkInScore

	return logistic(sum - logisticBias)
}

func (s *Scorer) confidence(candidate extractor.Candidate, classification categorize.Classification, languageCertainty float64) float64 {
	matchScore := math.Min(1, float64(classification.MatchCount)/3)

	confidence := 0.4 +
		0.3*languageCertainty +
		0.2*matchScore +
		0.3*classification.ConfidenceBoost +
		0.1*boilerplateFree(candidate.RawText)

	return clamp01(confidence)
}

// boilerplateFree is 1 for sentence-like prose and degrades for spans
// that read like navigation debris.
func boilerplateFree(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) < 3 {
		return 0
	}
	// Navigation fragments tend to be chains of capitalized short tokens.
	capitalized := 0
	for _, f := range fields {
		if f[0] >= 'A' && f[0] <= 'Z' {
			capitalized++
		}
	}
	if float64(capitalized)/float64(len(fields)) > 0.8 {
		return 0.2
	}
	return 1
}

// Keep decides whether a scored bit clears the adaptive thresholds.
// The category bonus shifts both comparisons before the decision.
func (s *Scorer) Keep(importance, confidence float64, category string) bool {
	s.mu.RLock()
	t := s.thresholds
	bonus := t.CategoryBonuses[category]
	s.mu.RUnlock()

	return importance >= clamp01(t.MinImportance+bonus) &&
		confidence >= clamp01(t.MinConfidence+bonus)
}

// Thresholds returns a snapshot of the current cutoffs.
func (s *Scorer) Thresholds() store.Thresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.thresholds
	bonuses := make(map[string]float64, len(t.CategoryBonuses))
	for k, v := range t.CategoryBonuses {
		bonuses[k] = v
	}
	t.CategoryBonuses = bonuses
	return t
}

func logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
