// Package service implements backup and restore runs on top of the snapshot
// files and the collection store.
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/docsnap/internal/codec"
	"github.com/and161185/docsnap/internal/model"
	"github.com/and161185/docsnap/internal/repository"
)

// Restorer replaces the contents of a collection with snapshot documents.
type Restorer struct {
	log *zap.Logger
}

// NewRestorer constructs a Restorer.
func NewRestorer(log *zap.Logger) *Restorer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Restorer{log: log}
}

// RestoreCollection decodes encoded, deletes every document of collection and
// inserts the decoded ones. An empty snapshot leaves the collection untouched.
//
// Delete and insert are not atomic: if the insert fails the collection stays
// empty until the restore is run again.
func (r *Restorer) RestoreCollection(ctx context.Context, store repository.CollectionStore, collection string, encoded []model.Doc) (int, error) {
	log := r.log.With(zap.String("collection", collection))
	if len(encoded) == 0 {
		log.Info("snapshot is empty, collection left as is")
		return 0, nil
	}

	docs := make([]model.Doc, 0, len(encoded))
	for i, e := range encoded {
		d, warnings := codec.Decode(e)
		for _, w := range warnings {
			log.Warn("type registry entry not applied",
				zap.Int("document", i),
				zap.String("path", w.Path),
				zap.String("tag", string(w.Tag)),
				zap.String("reason", w.Reason),
			)
		}
		docs = append(docs, d)
	}

	deleted, err := store.DeleteMany(ctx, collection)
	if err != nil {
		return 0, fmt.Errorf("restore %s: clear collection: %w", collection, err)
	}
	n, err := store.InsertMany(ctx, collection, docs)
	if err != nil {
		return n, fmt.Errorf("restore %s: insert after removing %d documents: %w", collection, deleted, err)
	}

	log.Info("collection restored", zap.Int64("deleted", deleted), zap.Int("documents", n))
	return n, nil
}
