package score

import (
	"context"
	"math"
)

// The adaptive loop nudges thresholds so the share of candidates that
// get stored converges toward the target retention rate. Each step is
// bounded to prevent oscillation, and runs only after enough bits have
// been persisted since the last step.
const (
	adaptationInterval = 100  // persisted bits between adaptation steps
	targetRetention    = 0.60 // desired share of candidates kept
	retentionTolerance = 0.10
	maxStep            = 0.05 // largest threshold move per step
	maxCategoryBonus   = 0.20
	minCategorySample  = 10
)

type observation struct {
	category string
	kept     bool
}

type adaptationWindow struct {
	observations   []observation
	persistedCount int
}

// Observe records one scoring decision. After every adaptation interval
// of persisted bits, the thresholds are recomputed and stored atomically.
func (s *Scorer) Observe(ctx context.Context, category string, kept bool) {
	s.mu.Lock()
	s.adapt.observations = append(s.adapt.observations, observation{category: category, kept: kept})
	if kept {
		s.adapt.persistedCount++
	}
	due := s.adapt.persistedCount >= adaptationInterval
	s.mu.Unlock()

	if due {
		s.adaptStep(ctx)
	}
}

// adaptStep recomputes thresholds from the window and persists them.
// Any single step changes a threshold by at most maxStep.
func (s *Scorer) adaptStep(ctx context.Context) {
	s.mu.Lock()
	window := s.adapt.observations
	s.adapt.observations = nil
	s.adapt.persistedCount = 0
	t := s.thresholds
	s.mu.Unlock()

	if len(window) == 0 {
		return
	}

	keptTotal := 0
	perCategory := make(map[string]*struct{ kept, total int })
	for _, obs := range window {
		if obs.kept {
			keptTotal++
		}
		c := perCategory[obs.category]
		if c == nil {
			c = &struct{ kept, total int }{}
			perCategory[obs.category] = c
		}
		c.total++
		if obs.kept {
			c.kept++
		}
	}

	retention := float64(keptTotal) / float64(len(window))

	// Too much is getting through: raise the bar. Too little: lower it.
	switch {
	case retention > targetRetention+retentionTolerance:
		t.MinImportance = clamp01(t.MinImportance + maxStep)
	case retention < targetRetention-retentionTolerance:
		t.MinImportance = clamp01(t.MinImportance - maxStep)
	}

	// Per-category bonuses move toward the same target, one bounded
	// step at a time, only with enough samples to mean anything.
	if t.CategoryBonuses == nil {
		t.CategoryBonuses = make(map[string]float64)
	}
	for category, c := range perCategory {
		if c.total < minCategorySample {
			continue
		}
		catRetention := float64(c.kept) / float64(c.total)
		bonus := t.CategoryBonuses[category]
		switch {
		case catRetention > targetRetention+retentionTolerance:
			bonus += maxStep
		case catRetention < targetRetention-retentionTolerance:
			bonus -= maxStep
		default:
			continue
		}
		t.CategoryBonuses[category] = math.Max(-maxCategoryBonus, math.Min(maxCategoryBonus, bonus))
	}

	if err := s.thresholdStore.SetThresholds(ctx, t); err != nil {
		s.log.Warn().Err(err).Msg("threshold persistence failed; keeping previous cutoffs")
		return
	}

	s.mu.Lock()
	s.thresholds = t
	s.mu.Unlock()

	s.log.Info().
		Float64("retention", retention).
		Float64("min_importance", t.MinImportance).
		Float64("min_confidence", t.MinConfidence).
		Msg("adaptive thresholds updated")
}
