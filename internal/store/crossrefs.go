package store

import (
	"context"
	"database/sql"
	"fmt"
)

// InsertCrossRefs persists directed relations between bits, idempotent on
// the (source, target, relation) triple.
func (s *Store) InsertCrossRefs(ctx context.Context, refs []CrossReference) error {
	for _, ref := range refs {
		if ref.SourceBitID == "" || ref.TargetBitID == "" {
			return &StoreError{Message: "cross-reference bit ids are required", Cause: ErrCauseInvalidInput}
		}
		if ref.Strength < 0 || ref.Strength > 1 {
			return &StoreError{
				Message: fmt.Sprintf("strength %f outside [0,1]", ref.Strength),
				Cause:   ErrCauseInvalidInput,
			}
		}
	}

	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		for _, ref := range refs {
			if _, err := tx.Exec(`
				INSERT OR IGNORE INTO cross_references
					(source_bit_id, target_bit_id, relation_type, strength, created_at)
				VALUES (?, ?, ?, ?, ?)`,
				ref.SourceBitID, ref.TargetBitID, string(ref.RelationType),
				ref.Strength, marshalTime(ref.CreatedAt),
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListCrossRefs returns every relation whose source is the given bit.
func (s *Store) ListCrossRefs(ctx context.Context, sourceBitID string) ([]CrossReference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_bit_id, target_bit_id, relation_type, strength, created_at
		FROM cross_references
		WHERE source_bit_id = ?
		ORDER BY strength DESC`, sourceBitID)
	if err != nil {
		return nil, &StoreError{
			Message: fmt.Sprintf("cross-reference query failed: %v", err),
			Cause:   ErrCauseUnavailable,
		}
	}
	defer rows.Close()

	var refs []CrossReference
	for rows.Next() {
		var ref CrossReference
		var relation, createdAt string
		if err := rows.Scan(
			&ref.SourceBitID, &ref.TargetBitID, &relation, &ref.Strength, &createdAt,
		); err != nil {
			return nil, &StoreError{
				Message: fmt.Sprintf("cross-reference scan failed: %v", err),
				Cause:   ErrCauseUnavailable,
			}
		}
		ref.RelationType = RelationType(relation)
		ref.CreatedAt = unmarshalTime(createdAt)
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
