package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/and161185/docsnap/internal/codec"
	"github.com/and161185/docsnap/internal/model"
)

func TestRestorer_EmptyIsNoop(t *testing.T) {
	store := newFakeStore(map[string][]model.Doc{"c": {{{Name: "x", Value: model.Int(1)}}}})
	n, err := NewRestorer(nil).RestoreCollection(context.Background(), store, "c", nil)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Zero(t, store.deletes)
	require.Len(t, store.get("c"), 1)
}

func TestRestorer_ReplacesAndLogsWarnings(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	store := newFakeStore(map[string][]model.Doc{"c": {{{Name: "old", Value: model.Bool(true)}}}})

	enc := model.Doc{
		{Name: "_id", Value: model.Text("not-hex")},
		{Name: codec.RegistryKey, Value: model.Doc{{Name: "_id", Value: model.Text(string(model.TagRefID))}}},
	}
	n, err := NewRestorer(zap.New(core)).RestoreCollection(context.Background(), store, "c", []model.Doc{enc})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got := store.get("c")
	require.Len(t, got, 1)
	require.True(t, model.Equal(model.Doc{{Name: "_id", Value: model.Text("not-hex")}}, got[0]))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	require.Equal(t, "c", entry.ContextMap()["collection"])
	require.Equal(t, "_id", entry.ContextMap()["path"])
}

func TestRestorer_InsertFailure(t *testing.T) {
	store := newFakeStore(map[string][]model.Doc{"c": {{{Name: "x", Value: model.Int(1)}}}})
	store.insertErr = errors.New("duplicate key")

	enc, err := codec.Encode(model.Doc{{Name: "x", Value: model.Int(2)}})
	require.NoError(t, err)

	_, err = NewRestorer(nil).RestoreCollection(context.Background(), store, "c", []model.Doc{enc})
	require.ErrorIs(t, err, store.insertErr)
	require.ErrorContains(t, err, "removing 1 documents")
	require.Empty(t, store.get("c"), "crash window: collection stays empty until the next restore")
}
