package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// GetThresholds loads the singleton adaptive-threshold tuple, seeding the
// default row on first access.
func (s *Store) GetThresholds(ctx context.Context) (Thresholds, error) {
	var t Thresholds
	var bonuses, updatedAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT min_importance, min_confidence, category_bonuses, updated_at
		FROM adaptive_thresholds WHERE id = 1`,
	).Scan(&t.MinImportance, &t.MinConfidence, &bonuses, &updatedAt)

	if err == sql.ErrNoRows {
		defaults := DefaultThresholds()
		if err := s.SetThresholds(ctx, defaults); err != nil {
			return Thresholds{}, err
		}
		return defaults, nil
	}
	if err != nil {
		return Thresholds{}, &StoreError{
			Message: fmt.Sprintf("threshold read failed: %v", err),
			Cause:   ErrCauseUnavailable,
		}
	}

	if err := json.Unmarshal([]byte(bonuses), &t.CategoryBonuses); err != nil {
		t.CategoryBonuses = map[string]float64{}
	}
	t.UpdatedAt = unmarshalTime(updatedAt)
	return t, nil
}

// SetThresholds replaces the singleton tuple atomically.
func (s *Store) SetThresholds(ctx context.Context, t Thresholds) error {
	if t.MinImportance < 0 || t.MinImportance > 1 || t.MinConfidence < 0 || t.MinConfidence > 1 {
		return &StoreError{
			Message: fmt.Sprintf("thresholds (%f, %f) outside [0,1]", t.MinImportance, t.MinConfidence),
			Cause:   ErrCauseInvalidInput,
		}
	}

	bonuses, err := json.Marshal(t.CategoryBonuses)
	if err != nil {
		return &StoreError{Message: fmt.Sprintf("bonus encode failed: %v", err), Cause: ErrCauseInvalidInput}
	}

	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO adaptive_thresholds
				(id, min_importance, min_confidence, category_bonuses, updated_at)
			VALUES (1, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				min_importance = excluded.min_importance,
				min_confidence = excluded.min_confidence,
				category_bonuses = excluded.category_bonuses,
				updated_at = excluded.updated_at`,
			t.MinImportance, t.MinConfidence, string(bonuses),
			marshalTime(time.Now()),
		)
		return err
	})
}
