// Package mongo contains the MongoDB implementation of the collection store.
package mongo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"github.com/and161185/docsnap/internal/convert"
	"github.com/and161185/docsnap/internal/model"
)

// DefaultDatabase is used when neither the configuration nor the URI names one.
const DefaultDatabase = "test"

// Store implements repository.CollectionStore on one MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri, pings the primary and binds the store to database. An
// empty database falls back to the one named in the URI path.
func Connect(ctx context.Context, uri, database string, timeout time.Duration) (*Store, error) {
	if database == "" {
		name, err := DatabaseFromURI(uri)
		if err != nil {
			return nil, err
		}
		database = name
	}

	opts := options.Client().ApplyURI(uri)
	if timeout > 0 {
		opts.SetConnectTimeout(timeout).SetServerSelectionTimeout(timeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return newStore(client, client.Database(database)), nil
}

func newStore(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{client: client, db: db}
}

// DatabaseFromURI returns the database named in the URI path, or
// DefaultDatabase when the path is empty.
func DatabaseFromURI(uri string) (string, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return "", fmt.Errorf("mongo uri: %w", err)
	}
	if cs.Database == "" {
		return DefaultDatabase, nil
	}
	return cs.Database, nil
}

// Database returns the bound database name.
func (s *Store) Database() string { return s.db.Name() }

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// ListCollections returns collection names sorted by name.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Find loads every document of the collection.
func (s *Store) Find(ctx context.Context, collection string) ([]model.Doc, error) {
	cur, err := s.db.Collection(collection).Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	var raw []bson.D
	if err := cur.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("read %s: %w", collection, err)
	}
	docs, err := convert.FromBSONAll(raw)
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", collection, err)
	}
	return docs, nil
}

// DeleteMany removes every document of the collection.
func (s *Store) DeleteMany(ctx context.Context, collection string) (int64, error) {
	res, err := s.db.Collection(collection).DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", collection, err)
	}
	return res.DeletedCount, nil
}

// InsertMany inserts docs in order. An empty batch is a no-op.
func (s *Store) InsertMany(ctx context.Context, collection string, docs []model.Doc) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	batch, err := convert.ToBSONAll(docs)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", collection, err)
	}
	res, err := s.db.Collection(collection).InsertMany(ctx, batch, options.InsertMany().SetOrdered(true))
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", collection, err)
	}
	return len(res.InsertedIDs), nil
}
