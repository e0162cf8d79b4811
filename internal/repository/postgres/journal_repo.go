package postgres

import (
	"context"
	"fmt"

	"github.com/and161185/docsnap/internal/model"
)

// DefaultHistoryLimit caps Recent when the caller passes a non-positive limit.
const DefaultHistoryLimit = 20

// JournalRepo implements JournalRepository using PostgreSQL.
type JournalRepo struct{ db *DB }

// NewJournalRepo constructs a journal repository.
func NewJournalRepo(db *DB) *JournalRepo { return &JournalRepo{db: db} }

// Record inserts one collection outcome.
func (r *JournalRepo) Record(ctx context.Context, rec model.RunRecord) error {
	const q = `
INSERT INTO snapshot_journal (run_id, operation, collection, file, documents, checksum, error, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.Pool.Exec(ctx, q,
		rec.RunID, string(rec.Operation), rec.Collection, rec.File, rec.Documents,
		rec.Checksum, rec.Error, rec.StartedAt, rec.FinishedAt)
	if err != nil {
		return fmt.Errorf("journal insert %s/%s: %w", rec.Operation, rec.Collection, err)
	}
	return nil
}

// Recent returns up to limit records ordered by finish time, newest first.
func (r *JournalRepo) Recent(ctx context.Context, limit int) ([]model.RunRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	const q = `
SELECT run_id, operation, collection, file, documents, checksum, error, started_at, finished_at
FROM snapshot_journal
ORDER BY finished_at DESC, id DESC
LIMIT $1`
	rows, err := r.db.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer rows.Close()

	var out []model.RunRecord
	for rows.Next() {
		var (
			rec model.RunRecord
			op  string
		)
		if err := rows.Scan(&rec.RunID, &op, &rec.Collection, &rec.File, &rec.Documents,
			&rec.Checksum, &rec.Error, &rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		rec.Operation = model.Operation(op)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal rows: %w", err)
	}
	return out, nil
}
