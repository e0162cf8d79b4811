package repository

import (
	"context"

	"github.com/and161185/docsnap/internal/model"
)

// JournalRepository stores the audit trail of backup and restore runs.
type JournalRepository interface {
	// Record appends one collection outcome.
	Record(ctx context.Context, rec model.RunRecord) error
	// Recent returns the latest records, newest first.
	Recent(ctx context.Context, limit int) ([]model.RunRecord, error)
}
