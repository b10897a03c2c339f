package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// insertBatchSize bounds how many bits go into one transaction. Batching
// keeps the full-text index write in the same transaction as the primary
// row without holding the writer lock for an unbounded stretch.
const insertBatchSize = 64

// InsertBits persists a batch of learning bits for a page. The operation
// is idempotent on bit_id: a bit that already exists is skipped, and the
// full-text index row is only written for newly inserted bits.
// Returns the number of bits actually inserted.
func (s *Store) InsertBits(ctx context.Context, bits []LearningBit) (int, error) {
	for _, bit := range bits {
		if err := validateBit(bit); err != nil {
			return 0, err
		}
	}

	inserted := 0
	for start := 0; start < len(bits); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(bits) {
			end = len(bits)
		}
		batch := bits[start:end]

		err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
			for _, bit := range batch {
				tags, err := json.Marshal(bit.Tags)
				if err != nil {
					return &StoreError{
						Message: fmt.Sprintf("tags encode failed: %v", err),
						Cause:   ErrCauseInvalidInput,
					}
				}

				res, err := tx.Exec(`
					INSERT OR IGNORE INTO learning_bits
						(bit_id, page_id, content, context, content_type,
						 category, subcategory, complexity_level,
						 importance_score, confidence_score, tags, extracted_at)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
					bit.BitID, bit.PageID, bit.Content, bit.Context,
					string(bit.ContentType), bit.Category, bit.Subcategory,
					string(bit.ComplexityLevel), bit.ImportanceScore,
					bit.ConfidenceScore, string(tags), marshalTime(bit.ExtractedAt),
				)
				if err != nil {
					return err
				}
				affected, err := res.RowsAffected()
				if err != nil {
					return err
				}
				if affected == 0 {
					continue // already present, keep the index untouched
				}

				if _, err := tx.Exec(
					`INSERT INTO learning_bits_fts (content, context, bit_id) VALUES (?, ?, ?)`,
					bit.Content, bit.Context, bit.BitID,
				); err != nil {
					return err
				}
				inserted++
			}
			return nil
		})
		if err != nil {
			return inserted, err
		}
	}

	return inserted, nil
}

func validateBit(bit LearningBit) error {
	switch {
	case bit.BitID == "" || bit.PageID == "":
		return &StoreError{Message: "bit_id and page_id are required", Cause: ErrCauseInvalidInput}
	case bit.Content == "":
		return &StoreError{Message: "bit content cannot be empty", Cause: ErrCauseInvalidInput}
	case bit.ImportanceScore < 0 || bit.ImportanceScore > 1:
		return &StoreError{
			Message: fmt.Sprintf("importance %f outside [0,1]", bit.ImportanceScore),
			Cause:   ErrCauseInvalidInput,
		}
	case bit.ConfidenceScore < 0 || bit.ConfidenceScore > 1:
		return &StoreError{
			Message: fmt.Sprintf("confidence %f outside [0,1]", bit.ConfidenceScore),
			Cause:   ErrCauseInvalidInput,
		}
	}
	return nil
}

// QueryBits returns bits matching the filter, ordered by importance then
// recency. Soft-deleted bits never surface.
func (s *Store) QueryBits(ctx context.Context, filter BitFilter) ([]LearningBit, error) {
	var where []string
	var args []any
	where = append(where, "deleted = 0")

	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Subcategory != "" {
		where = append(where, "subcategory = ?")
		args = append(args, filter.Subcategory)
	}
	if filter.ContentType != "" {
		where = append(where, "content_type = ?")
		args = append(args, filter.ContentType)
	}
	if filter.Complexity != "" {
		where = append(where, "complexity_level = ?")
		args = append(args, filter.Complexity)
	}
	if filter.MinImportance > 0 {
		where = append(where, "importance_score >= ?")
		args = append(args, filter.MinImportance)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, filter.Offset)

	query := fmt.Sprintf(`
		SELECT bit_id, page_id, content, context, content_type, category,
		       subcategory, complexity_level, importance_score,
		       confidence_score, tags, extracted_at, reference_count
		FROM learning_bits
		WHERE %s
		ORDER BY importance_score DESC, extracted_at DESC
		LIMIT ? OFFSET ?`, strings.Join(where, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StoreError{
			Message: fmt.Sprintf("bit query failed: %v", err),
			Cause:   ErrCauseUnavailable,
		}
	}
	defer rows.Close()
	return scanBits(rows)
}

// SearchBits runs a full-text match over content and context, ranked by
// text relevance first, then importance, then recency.
func (s *Store) SearchBits(ctx context.Context, text string, category string, limit int) ([]LearningBit, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &StoreError{Message: "search text cannot be empty", Cause: ErrCauseInvalidInput}
	}
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT b.bit_id, b.page_id, b.content, b.context, b.content_type,
		       b.category, b.subcategory, b.complexity_level,
		       b.importance_score, b.confidence_score, b.tags,
		       b.extracted_at, b.reference_count
		FROM learning_bits_fts f
		JOIN learning_bits b ON b.bit_id = f.bit_id
		WHERE learning_bits_fts MATCH ? AND b.deleted = 0`
	args := []any{ftsQuery(text)}

	if category != "" {
		query += ` AND b.category = ?`
		args = append(args, category)
	}
	query += `
		ORDER BY bm25(learning_bits_fts), b.importance_score DESC, b.extracted_at DESC
		LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StoreError{
			Message: fmt.Sprintf("full-text search failed: %v", err),
			Cause:   ErrCauseUnavailable,
		}
	}
	defer rows.Close()
	return scanBits(rows)
}

// ftsQuery turns free text into an FTS5 query: each token quoted and
// AND-ed, so user input cannot inject FTS syntax.
func ftsQuery(text string) string {
	fields := strings.Fields(text)
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		quoted = append(quoted, `"`+strings.ReplaceAll(f, `"`, ``)+`"`)
	}
	return strings.Join(quoted, " AND ")
}

// IncrementBitReferences bumps the usage counter of the given bits.
// Retrieval paths call this so often-read bits gain weight over time.
func (s *Store) IncrementBitReferences(ctx context.Context, bitIDs []string) error {
	if len(bitIDs) == 0 {
		return nil
	}
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		for _, id := range bitIDs {
			if _, err := tx.Exec(
				`UPDATE learning_bits SET reference_count = reference_count + 1 WHERE bit_id = ?`,
				id,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// SoftDeleteBit hides a bit from every query without destroying it.
func (s *Store) SoftDeleteBit(ctx context.Context, bitID string) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`UPDATE learning_bits SET deleted = 1 WHERE bit_id = ?`, bitID,
		); err != nil {
			return err
		}
		_, err := tx.Exec(`DELETE FROM learning_bits_fts WHERE bit_id = ?`, bitID)
		return err
	})
}

// BitCountForPage reports how many live bits a page produced.
func (s *Store) BitCountForPage(ctx context.Context, pageID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM learning_bits WHERE page_id = ? AND deleted = 0`, pageID,
	).Scan(&count)
	if err != nil {
		return 0, &StoreError{
			Message: fmt.Sprintf("bit count failed: %v", err),
			Cause:   ErrCauseUnavailable,
		}
	}
	return count, nil
}

func scanBits(rows *sql.Rows) ([]LearningBit, error) {
	var bits []LearningBit
	for rows.Next() {
		var b LearningBit
		var contentType, complexity, tags, extractedAt string
		if err := rows.Scan(
			&b.BitID, &b.PageID, &b.Content, &b.Context, &contentType,
			&b.Category, &b.Subcategory, &complexity, &b.ImportanceScore,
			&b.ConfidenceScore, &tags, &extractedAt, &b.ReferenceCount,
		); err != nil {
			return nil, &StoreError{
				Message: fmt.Sprintf("bit scan failed: %v", err),
				Cause:   ErrCauseUnavailable,
			}
		}
		b.ContentType = ContentType(contentType)
		b.ComplexityLevel = ComplexityLevel(complexity)
		b.ExtractedAt = unmarshalTime(extractedAt)
		if err := json.Unmarshal([]byte(tags), &b.Tags); err != nil {
			b.Tags = nil
		}
		bits = append(bits, b)
	}
	return bits, rows.Err()
}
