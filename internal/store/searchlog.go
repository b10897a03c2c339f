package store

import (
	"context"
	"database/sql"
	"fmt"
)

// RecordSearchQuery logs one dispatched provider query and returns its
// row id for attaching results.
func (s *Store) RecordSearchQuery(ctx context.Context, q SearchQueryLog) (int64, error) {
	if q.Query == "" || q.Engine == "" {
		return 0, &StoreError{Message: "query and engine are required", Cause: ErrCauseInvalidInput}
	}

	var id int64
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO search_queries (query, engine, queried_at, result_count, duration_ms)
			VALUES (?, ?, ?, ?, ?)`,
			q.Query, q.Engine, marshalTime(q.QueriedAt), q.ResultCount, q.DurationMs,
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// RecordSearchResults logs the candidate URLs a query produced.
func (s *Store) RecordSearchResults(ctx context.Context, queryID int64, results []SearchResultLog) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		for _, r := range results {
			if _, err := tx.Exec(`
				INSERT INTO search_results
					(query_id, url, title, snippet, rank, relevance_score, content_type)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				queryID, r.URL, r.Title, r.Snippet, r.Rank,
				r.RelevanceScore, r.ContentType,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// SeenSearchURL reports whether a URL already appeared in any logged
// search result. The dispatcher does not call it; it ranks results
// without consulting the log.
func (s *Store) SeenSearchURL(ctx context.Context, url string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM search_results WHERE url = ?`, url,
	).Scan(&count)
	if err != nil {
		return false, &StoreError{
			Message: fmt.Sprintf("search log lookup failed: %v", err),
			Cause:   ErrCauseUnavailable,
		}
	}
	return count > 0, nil
}
