package store

import "fmt"

// migrations are applied in order; each entry runs at most once per
// database. Append-only: never edit a shipped migration, add a new one.
var migrations = []string{
	// v1: core schema
	`
	CREATE TABLE IF NOT EXISTS pages (
		page_id         TEXT PRIMARY KEY,
		url             TEXT NOT NULL,
		domain          TEXT NOT NULL,
		depth           INTEGER NOT NULL DEFAULT 0,
		fetched_at      TEXT NOT NULL,
		last_seen       TEXT NOT NULL,
		content_hash    TEXT NOT NULL,
		status          TEXT NOT NULL,
		title           TEXT NOT NULL DEFAULT '',
		language        TEXT NOT NULL DEFAULT '',
		byte_length     INTEGER NOT NULL DEFAULT 0,
		markdown        TEXT NOT NULL DEFAULT '',
		reference_count INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_pages_domain ON pages(domain);
	CREATE INDEX IF NOT EXISTS idx_pages_content_hash ON pages(content_hash);

	CREATE TABLE IF NOT EXISTS learning_bits (
		bit_id           TEXT PRIMARY KEY,
		page_id          TEXT NOT NULL REFERENCES pages(page_id),
		content          TEXT NOT NULL,
		context          TEXT NOT NULL DEFAULT '',
		content_type     TEXT NOT NULL,
		category         TEXT NOT NULL,
		subcategory      TEXT NOT NULL DEFAULT '',
		complexity_level TEXT NOT NULL,
		importance_score REAL NOT NULL,
		confidence_score REAL NOT NULL,
		tags             TEXT NOT NULL DEFAULT '[]',
		extracted_at     TEXT NOT NULL,
		reference_count  INTEGER NOT NULL DEFAULT 0,
		deleted          INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_bits_category_importance
		ON learning_bits(category, importance_score DESC);
	CREATE INDEX IF NOT EXISTS idx_bits_content_type
		ON learning_bits(content_type);

	CREATE VIRTUAL TABLE IF NOT EXISTS learning_bits_fts
		USING fts5(content, context, bit_id UNINDEXED);

	CREATE TABLE IF NOT EXISTS cross_references (
		source_bit_id TEXT NOT NULL,
		target_bit_id TEXT NOT NULL,
		relation_type TEXT NOT NULL,
		strength      REAL NOT NULL DEFAULT 0,
		created_at    TEXT NOT NULL,
		PRIMARY KEY (source_bit_id, target_bit_id, relation_type)
	);

	CREATE TABLE IF NOT EXISTS categorization_rules (
		rule_name        TEXT PRIMARY KEY,
		rule_type        TEXT NOT NULL,
		pattern          TEXT NOT NULL,
		category         TEXT NOT NULL,
		subcategory      TEXT NOT NULL DEFAULT '',
		confidence_boost REAL NOT NULL DEFAULT 0.1,
		priority         INTEGER NOT NULL DEFAULT 5,
		active           INTEGER NOT NULL DEFAULT 1,
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS crawl_jobs (
		job_id           TEXT PRIMARY KEY,
		seed_url         TEXT NOT NULL,
		config           TEXT NOT NULL DEFAULT '{}',
		state            TEXT NOT NULL,
		priority         INTEGER NOT NULL DEFAULT 3,
		created_at       TEXT NOT NULL,
		started_at       TEXT NOT NULL DEFAULT '',
		ended_at         TEXT NOT NULL DEFAULT '',
		attempts         INTEGER NOT NULL DEFAULT 0,
		error            TEXT NOT NULL DEFAULT '',
		pages_fetched    INTEGER NOT NULL DEFAULT 0,
		bits_emitted     INTEGER NOT NULL DEFAULT 0,
		bytes_downloaded INTEGER NOT NULL DEFAULT 0,
		errors_by_kind   TEXT NOT NULL DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_state ON crawl_jobs(state);

	CREATE TABLE IF NOT EXISTS search_queries (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		query        TEXT NOT NULL,
		engine       TEXT NOT NULL,
		queried_at   TEXT NOT NULL,
		result_count INTEGER NOT NULL DEFAULT 0,
		duration_ms  INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS search_results (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		query_id        INTEGER NOT NULL REFERENCES search_queries(id),
		url             TEXT NOT NULL,
		title           TEXT NOT NULL DEFAULT '',
		snippet         TEXT NOT NULL DEFAULT '',
		rank            INTEGER NOT NULL DEFAULT 0,
		relevance_score REAL NOT NULL DEFAULT 0,
		content_type    TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS adaptive_thresholds (
		id               INTEGER PRIMARY KEY CHECK (id = 1),
		min_importance   REAL NOT NULL,
		min_confidence   REAL NOT NULL,
		category_bonuses TEXT NOT NULL DEFAULT '{}',
		updated_at       TEXT NOT NULL
	);
	`,
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)`); err != nil {
		return &StoreError{
			Message: fmt.Sprintf("failed to create migrations table: %v", err),
			Cause:   ErrCauseMigration,
		}
	}

	var current int
	if err := s.db.QueryRow(
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`,
	).Scan(&current); err != nil {
		return &StoreError{
			Message: fmt.Sprintf("failed to read schema version: %v", err),
			Cause:   ErrCauseMigration,
		}
	}

	for version := current + 1; version <= len(migrations); version++ {
		stmt := migrations[version-1]
		err := s.runMigration(version, stmt)
		if err != nil {
			return &StoreError{
				Message: fmt.Sprintf("migration %d failed: %v", version, err),
				Cause:   ErrCauseMigration,
			}
		}
		s.log.Debug().Int("version", version).Msg("schema migrated")
	}

	return nil
}

func (s *Store) runMigration(version int, stmt string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(stmt); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Exec(
		`INSERT INTO schema_migrations (version, applied_at) VALUES (?, datetime('now'))`,
		version,
	); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
