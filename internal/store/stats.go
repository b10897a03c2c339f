package store

import (
	"context"
	"fmt"
)

// Statistics aggregates the learning corpus: distribution by category,
// content type and complexity, the top source domains, average scores,
// and activity over the trailing seven days.
func (s *Store) Statistics(ctx context.Context) (Statistics, error) {
	stats := Statistics{
		CategoryCounts:    map[string]int{},
		ContentTypeCounts: map[string]int{},
		ComplexityCounts:  map[string]int{},
		TopDomains:        map[string]int{},
		JobCountsByState:  map[string]int{},
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM learning_bits WHERE deleted = 0`,
	).Scan(&stats.TotalBits); err != nil {
		return Statistics{}, statError(err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pages`,
	).Scan(&stats.TotalPages); err != nil {
		return Statistics{}, statError(err)
	}

	if err := s.groupCount(ctx,
		`SELECT category, COUNT(*) FROM learning_bits WHERE deleted = 0 GROUP BY category`,
		stats.CategoryCounts); err != nil {
		return Statistics{}, err
	}
	if err := s.groupCount(ctx,
		`SELECT content_type, COUNT(*) FROM learning_bits WHERE deleted = 0 GROUP BY content_type`,
		stats.ContentTypeCounts); err != nil {
		return Statistics{}, err
	}
	if err := s.groupCount(ctx,
		`SELECT complexity_level, COUNT(*) FROM learning_bits WHERE deleted = 0 GROUP BY complexity_level`,
		stats.ComplexityCounts); err != nil {
		return Statistics{}, err
	}
	if err := s.groupCount(ctx, `
		SELECT p.domain, COUNT(b.bit_id)
		FROM learning_bits b JOIN pages p ON p.page_id = b.page_id
		WHERE b.deleted = 0
		GROUP BY p.domain
		ORDER BY COUNT(b.bit_id) DESC
		LIMIT 10`,
		stats.TopDomains); err != nil {
		return Statistics{}, err
	}
	if err := s.groupCount(ctx,
		`SELECT state, COUNT(*) FROM crawl_jobs GROUP BY state`,
		stats.JobCountsByState); err != nil {
		return Statistics{}, err
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(importance_score), 0),
		       COALESCE(AVG(confidence_score), 0),
		       COALESCE(AVG(reference_count), 0)
		FROM learning_bits WHERE deleted = 0`,
	).Scan(&stats.AvgImportance, &stats.AvgConfidence, &stats.AvgReferences); err != nil {
		return Statistics{}, statError(err)
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM learning_bits
		WHERE deleted = 0 AND extracted_at >= datetime('now', '-7 days')`,
	).Scan(&stats.BitsLastSevenDays); err != nil {
		return Statistics{}, statError(err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM search_queries`,
	).Scan(&stats.SearchQueriesLogged); err != nil {
		return Statistics{}, statError(err)
	}

	return stats, nil
}

func (s *Store) groupCount(ctx context.Context, query string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return statError(err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return statError(err)
		}
		into[key] = count
	}
	return rows.Err()
}

func statError(err error) error {
	return &StoreError{
		Message: fmt.Sprintf("statistics query failed: %v", err),
		Cause:   ErrCauseUnavailable,
	}
}
