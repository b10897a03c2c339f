package store

import (
	"context"
	"database/sql"
	"fmt"
)

// UpsertPage persists a fetched page. A page that already exists with the
// same content hash only has its last_seen refreshed; a changed body
// updates the row in place. page_id stays stable either way.
func (s *Store) UpsertPage(ctx context.Context, page Page) error {
	if page.PageID == "" || page.URL == "" {
		return &StoreError{
			Message: "page_id and url are required",
			Cause:   ErrCauseInvalidInput,
		}
	}

	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		var existingHash string
		err := tx.QueryRow(
			`SELECT content_hash FROM pages WHERE page_id = ?`, page.PageID,
		).Scan(&existingHash)

		switch {
		case err == sql.ErrNoRows:
			_, err = tx.Exec(`
				INSERT INTO pages
					(page_id, url, domain, depth, fetched_at, last_seen,
					 content_hash, status, title, language, byte_length, markdown)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				page.PageID, page.URL, page.Domain, page.Depth,
				marshalTime(page.FetchedAt), marshalTime(page.FetchedAt),
				page.ContentHash, string(page.Status), page.Title,
				page.Language, page.ByteLength, page.Markdown,
			)
			return err

		case err != nil:
			return err

		case existingHash == page.ContentHash:
			// Same document seen again: touch last_seen only.
			_, err = tx.Exec(
				`UPDATE pages SET last_seen = ? WHERE page_id = ?`,
				marshalTime(page.FetchedAt), page.PageID,
			)
			return err

		default:
			_, err = tx.Exec(`
				UPDATE pages SET
					depth = ?, last_seen = ?, content_hash = ?, status = ?,
					title = ?, language = ?, byte_length = ?, markdown = ?
				WHERE page_id = ?`,
				page.Depth, marshalTime(page.FetchedAt), page.ContentHash,
				string(page.Status), page.Title, page.Language,
				page.ByteLength, page.Markdown, page.PageID,
			)
			return err
		}
	})
}

// GetPage loads a page by its identity hash.
func (s *Store) GetPage(ctx context.Context, pageID string) (Page, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT page_id, url, domain, depth, fetched_at, last_seen,
		       content_hash, status, title, language, byte_length,
		       markdown, reference_count
		FROM pages WHERE page_id = ?`, pageID)
	return scanPage(row)
}

// HasContentHash reports whether any page already carries the given body
// hash. Used by the crawler for content-level deduplication.
func (s *Store) HasContentHash(ctx context.Context, contentHash string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pages WHERE content_hash = ?`, contentHash,
	).Scan(&count)
	if err != nil {
		return false, &StoreError{
			Message: fmt.Sprintf("content hash lookup failed: %v", err),
			Cause:   ErrCauseUnavailable,
		}
	}
	return count > 0, nil
}

func scanPage(row *sql.Row) (Page, error) {
	var p Page
	var fetchedAt, lastSeen, status string
	err := row.Scan(
		&p.PageID, &p.URL, &p.Domain, &p.Depth, &fetchedAt, &lastSeen,
		&p.ContentHash, &status, &p.Title, &p.Language, &p.ByteLength,
		&p.Markdown, &p.ReferenceCount,
	)
	if err == sql.ErrNoRows {
		return Page{}, &StoreError{Message: "page not found", Cause: ErrCauseNotFound}
	}
	if err != nil {
		return Page{}, &StoreError{
			Message: fmt.Sprintf("page scan failed: %v", err),
			Cause:   ErrCauseUnavailable,
		}
	}
	p.FetchedAt = unmarshalTime(fetchedAt)
	p.LastSeen = unmarshalTime(lastSeen)
	p.Status = PageStatus(status)
	return p, nil
}
