package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UpsertRule creates or updates a categorization rule. A new rule keeps
// its creation timestamp forever; updates only touch updated_at.
func (s *Store) UpsertRule(ctx context.Context, rule CategorizationRule) error {
	if rule.RuleName == "" {
		return &StoreError{Message: "rule_name is required", Cause: ErrCauseInvalidInput}
	}
	if !ValidRuleType(string(rule.RuleType)) {
		return &StoreError{
			Message: fmt.Sprintf("unknown rule type %q", rule.RuleType),
			Cause:   ErrCauseInvalidInput,
		}
	}
	if rule.ConfidenceBoost < -1 || rule.ConfidenceBoost > 1 {
		return &StoreError{
			Message: fmt.Sprintf("confidence boost %f outside [-1,1]", rule.ConfidenceBoost),
			Cause:   ErrCauseInvalidInput,
		}
	}

	now := time.Now()
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO categorization_rules
				(rule_name, rule_type, pattern, category, subcategory,
				 confidence_boost, priority, active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(rule_name) DO UPDATE SET
				rule_type = excluded.rule_type,
				pattern = excluded.pattern,
				category = excluded.category,
				subcategory = excluded.subcategory,
				confidence_boost = excluded.confidence_boost,
				priority = excluded.priority,
				active = excluded.active,
				updated_at = excluded.updated_at`,
			rule.RuleName, string(rule.RuleType), rule.Pattern, rule.Category,
			rule.Subcategory, rule.ConfidenceBoost, rule.Priority,
			boolToInt(rule.Active), marshalTime(now), marshalTime(now),
		)
		return err
	})
}

// InsertRule creates a rule and fails if the name is already taken.
func (s *Store) InsertRule(ctx context.Context, rule CategorizationRule) error {
	existing, err := s.GetRule(ctx, rule.RuleName)
	if err == nil && existing.RuleName != "" {
		return &StoreError{
			Message: fmt.Sprintf("rule %q already exists", rule.RuleName),
			Cause:   ErrCauseConstraint,
		}
	}
	return s.UpsertRule(ctx, rule)
}

// GetRule loads a single rule by name.
func (s *Store) GetRule(ctx context.Context, ruleName string) (CategorizationRule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT rule_name, rule_type, pattern, category, subcategory,
		       confidence_boost, priority, active, created_at, updated_at
		FROM categorization_rules WHERE rule_name = ?`, ruleName)

	rule, err := scanRule(row.Scan)
	if err == sql.ErrNoRows {
		return CategorizationRule{}, &StoreError{Message: "rule not found", Cause: ErrCauseNotFound}
	}
	if err != nil {
		return CategorizationRule{}, &StoreError{
			Message: fmt.Sprintf("rule scan failed: %v", err),
			Cause:   ErrCauseUnavailable,
		}
	}
	return rule, nil
}

// ListRules returns rules ordered by priority (ascending), then age.
func (s *Store) ListRules(ctx context.Context, activeOnly bool) ([]CategorizationRule, error) {
	query := `
		SELECT rule_name, rule_type, pattern, category, subcategory,
		       confidence_boost, priority, active, created_at, updated_at
		FROM categorization_rules`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY priority ASC, created_at ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &StoreError{
			Message: fmt.Sprintf("rule query failed: %v", err),
			Cause:   ErrCauseUnavailable,
		}
	}
	defer rows.Close()

	var rules []CategorizationRule
	for rows.Next() {
		rule, err := scanRule(rows.Scan)
		if err != nil {
			return nil, &StoreError{
				Message: fmt.Sprintf("rule scan failed: %v", err),
				Cause:   ErrCauseUnavailable,
			}
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// DeactivateRule disables a rule without deleting it.
func (s *Store) DeactivateRule(ctx context.Context, ruleName string) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE categorization_rules
			SET active = 0, updated_at = ?
			WHERE rule_name = ?`, marshalTime(time.Now()), ruleName)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return &StoreError{Message: "rule not found", Cause: ErrCauseNotFound}
		}
		return nil
	})
}

func scanRule(scan func(dest ...any) error) (CategorizationRule, error) {
	var rule CategorizationRule
	var ruleType, createdAt, updatedAt string
	var active int
	err := scan(
		&rule.RuleName, &ruleType, &rule.Pattern, &rule.Category,
		&rule.Subcategory, &rule.ConfidenceBoost, &rule.Priority,
		&active, &createdAt, &updatedAt,
	)
	if err != nil {
		return CategorizationRule{}, err
	}
	rule.RuleType = RuleType(ruleType)
	rule.Active = active == 1
	rule.CreatedAt = unmarshalTime(createdAt)
	rule.UpdatedAt = unmarshalTime(updatedAt)
	return rule, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
