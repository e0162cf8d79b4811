// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/docsnap/internal/model"
)

// CollectionStore provides whole-collection access to the document database.
// Every operation works on the full collection; there is no filtering.
type CollectionStore interface {
	// ListCollections returns the names of all collections in the database.
	ListCollections(ctx context.Context) ([]string, error)
	// Find returns every document of the collection.
	Find(ctx context.Context, collection string) ([]model.Doc, error)
	// DeleteMany removes every document of the collection and returns the count.
	DeleteMany(ctx context.Context, collection string) (int64, error)
	// InsertMany inserts docs in order and returns the number inserted.
	InsertMany(ctx context.Context, collection string, docs []model.Doc) (int, error)
}
