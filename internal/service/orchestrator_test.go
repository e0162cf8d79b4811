package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/and161185/docsnap/internal/errs"
	"github.com/and161185/docsnap/internal/metrics"
	"github.com/and161185/docsnap/internal/model"
	"github.com/and161185/docsnap/internal/repository"
	"github.com/and161185/docsnap/internal/snapshot"
)

type fakeStore struct {
	mu          sync.Mutex
	collections map[string][]model.Doc

	findErr   map[string]error
	insertErr error

	deletes int
	inserts int
	closed  int
}

var _ Conn = (*fakeStore)(nil)

func newFakeStore(collections map[string][]model.Doc) *fakeStore {
	if collections == nil {
		collections = map[string][]model.Doc{}
	}
	return &fakeStore{collections: collections, findErr: map[string]error{}}
}

func (f *fakeStore) ListCollections(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.collections))
	for n := range f.collections {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeStore) Find(_ context.Context, collection string) ([]model.Doc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.findErr[collection]; err != nil {
		return nil, err
	}
	out := make([]model.Doc, 0, len(f.collections[collection]))
	for _, d := range f.collections[collection] {
		out = append(out, model.CloneDoc(d))
	}
	return out, nil
}

func (f *fakeStore) DeleteMany(_ context.Context, collection string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	n := len(f.collections[collection])
	f.collections[collection] = nil
	return int64(n), nil
}

func (f *fakeStore) InsertMany(_ context.Context, collection string, docs []model.Doc) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.collections[collection] = append(f.collections[collection], docs...)
	return len(docs), nil
}

func (f *fakeStore) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeStore) get(collection string) []model.Doc {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.collections[collection]
}

type fakeJournal struct {
	mu   sync.Mutex
	recs []model.RunRecord
	err  error
}

var _ repository.JournalRepository = (*fakeJournal)(nil)

func (j *fakeJournal) Record(_ context.Context, rec model.RunRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.recs = append(j.recs, rec)
	return j.err
}

func (j *fakeJournal) Recent(_ context.Context, limit int) ([]model.RunRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if limit > len(j.recs) {
		limit = len(j.recs)
	}
	return append([]model.RunRecord(nil), j.recs[:limit]...), nil
}

func connectTo(s *fakeStore) Connector {
	return func(context.Context) (Conn, error) { return s, nil }
}

var fixedNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.Local)

func fixedClock() time.Time { return fixedNow }

func sampleDocs(t *testing.T) map[string][]model.Doc {
	t.Helper()
	id, err := model.ParseRefID("65a1b2c3d4e5f60718293a4b")
	require.NoError(t, err)
	return map[string][]model.Doc{
		"users": {
			{
				{Name: "_id", Value: id},
				{Name: "createdAt", Value: model.NewTemporal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))},
				{Name: "nickname", Value: model.Null{}},
				{Name: "legacy", Value: model.Elided{}},
				{Name: "tags", Value: model.Seq{model.Text("a"), model.Int(2)}},
			},
		},
		"orders": {
			{{Name: "_id", Value: model.Int(1)}, {Name: "total", Value: model.Float(9.5)}},
			{{Name: "_id", Value: model.Int(2)}, {Name: "total", Value: model.Float(3)}},
		},
		"system.views": {
			{{Name: "_id", Value: model.Text("v")}},
		},
	}
}

func TestOrchestrator_BackupRestoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	src := newFakeStore(sampleDocs(t))
	journal := &fakeJournal{}
	m := metrics.New()

	o := NewOrchestrator(connectTo(src), root,
		WithClock(fixedClock),
		WithExclude([]string{"system.*"}),
		WithJournal(journal),
		WithMetrics(m),
		WithWorkers(2),
	)

	rep, err := o.Backup(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "2024-06-01_10-00-00"), rep.RunDir)
	require.Len(t, rep.Collections, 2, "system.* excluded")
	require.Empty(t, rep.Failed())
	require.Equal(t, 1, src.closed)

	manifest, err := snapshot.LoadManifest(rep.RunDir)
	require.NoError(t, err)
	require.NotNil(t, manifest)
	require.Len(t, manifest.Files, 2)
	require.Equal(t, rep.RunID.String(), manifest.RunID)

	// restore into an empty database
	dst := newFakeStore(nil)
	o2 := NewOrchestrator(connectTo(dst), root, WithJournal(journal), WithMetrics(m))
	rep2, err := o2.Restore(context.Background(), "", "2024-06-01_10-00-00")
	require.NoError(t, err)
	require.Len(t, rep2.Collections, 2)
	require.Equal(t, 1, dst.closed)

	want := sampleDocs(t)
	for _, c := range []string{"users", "orders"} {
		got := dst.get(c)
		require.Len(t, got, len(want[c]), c)
		for i := range got {
			require.True(t, model.Equal(want[c][i], got[i]), "%s[%d]: %#v", c, i, got[i])
		}
	}
	require.Empty(t, dst.get("system.views"))

	require.Len(t, journal.recs, 4)
	for _, r := range journal.recs {
		require.True(t, r.Succeeded(), r.Collection)
		require.NotEmpty(t, r.Checksum)
	}
	series, err := testutil.GatherAndCount(m.Registry(), "docsnap_collections_total")
	require.NoError(t, err)
	require.Equal(t, 2, series, "backup/ok and restore/ok")
}

func TestOrchestrator_RestoreIsIdempotent(t *testing.T) {
	root := t.TempDir()
	src := newFakeStore(sampleDocs(t))
	_, err := NewOrchestrator(connectTo(src), root, WithClock(fixedClock)).Backup(context.Background(), "users")
	require.NoError(t, err)

	dst := newFakeStore(map[string][]model.Doc{
		"users": {{{Name: "_id", Value: model.Text("stale")}}},
	})
	o := NewOrchestrator(connectTo(dst), root)

	_, err = o.Restore(context.Background(), "users", "2024-06-01_10-00-00")
	require.NoError(t, err)
	first := dst.get("users")

	_, err = o.Restore(context.Background(), "users", "2024-06-01_10-00-00")
	require.NoError(t, err)
	second := dst.get("users")

	require.Len(t, second, 1)
	for i := range first {
		require.True(t, model.Equal(first[i], second[i]))
	}
	require.True(t, model.Equal(sampleDocs(t)["users"][0], second[0]))
}

func TestOrchestrator_RestoreEmptySnapshotLeavesCollection(t *testing.T) {
	root := t.TempDir()
	src := newFakeStore(map[string][]model.Doc{"audit": nil})
	_, err := NewOrchestrator(connectTo(src), root, WithClock(fixedClock)).Backup(context.Background(), "audit")
	require.NoError(t, err)

	existing := []model.Doc{{{Name: "_id", Value: model.Int(1)}}}
	dst := newFakeStore(map[string][]model.Doc{"audit": existing})
	rep, err := NewOrchestrator(connectTo(dst), root).Restore(context.Background(), "audit", "2024-06-01_10-00-00")
	require.NoError(t, err)
	require.Zero(t, rep.Collections[0].Documents)
	require.Zero(t, dst.deletes)
	require.Zero(t, dst.inserts)
	require.Equal(t, existing, dst.get("audit"))
}

func TestOrchestrator_RestoreRequiresRunFolder(t *testing.T) {
	connected := false
	o := NewOrchestrator(func(context.Context) (Conn, error) {
		connected = true
		return newFakeStore(nil), nil
	}, t.TempDir())

	_, err := o.Restore(context.Background(), "users", "")
	require.ErrorIs(t, err, errs.ErrRunFolderRequired)
	require.False(t, connected)

	_, err = o.Restore(context.Background(), "", "1999-01-01_00-00-00")
	require.ErrorIs(t, err, errs.ErrRunNotFound)
	require.False(t, connected)
}

func TestOrchestrator_MissingBackupClosesConnection(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "2024-06-01_10-00-00"), 0o700))
	store := newFakeStore(nil)
	o := NewOrchestrator(connectTo(store), root)

	_, err := o.Restore(context.Background(), "users", "2024-06-01_10-00-00")
	require.ErrorIs(t, err, errs.ErrNoBackup)
	require.Equal(t, 1, store.closed)

	// restore-all of an empty run is a failure too
	_, err = o.Restore(context.Background(), "", "2024-06-01_10-00-00")
	require.ErrorIs(t, err, errs.ErrNoBackup)
	require.Equal(t, 2, store.closed)
	require.Zero(t, store.deletes)
}

func TestOrchestrator_ConnectFailure(t *testing.T) {
	boom := errors.New("no reachable servers")
	o := NewOrchestrator(func(context.Context) (Conn, error) { return nil, boom }, t.TempDir())

	_, err := o.Backup(context.Background(), "")
	require.ErrorIs(t, err, boom)
}

func TestOrchestrator_PartialBackupFailure(t *testing.T) {
	root := t.TempDir()
	store := newFakeStore(sampleDocs(t))
	boom := errors.New("cursor killed")
	store.findErr["orders"] = boom
	journal := &fakeJournal{err: errors.New("journal down")}

	rep, err := NewOrchestrator(connectTo(store), root,
		WithClock(fixedClock),
		WithJournal(journal),
	).Backup(context.Background(), "")
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "orders")
	require.Len(t, rep.Failed(), 1)
	require.Equal(t, "orders", rep.Failed()[0].Collection)
	require.Equal(t, 1, store.closed)

	// journal failures are not collection failures
	require.Len(t, journal.recs, 3)

	// the manifest lists only what was written
	m, err := snapshot.LoadManifest(rep.RunDir)
	require.NoError(t, err)
	require.Len(t, m.Files, 2)
	for _, c := range rep.Collections {
		_, ok := m.Entry(c.File)
		require.Equal(t, c.Err == nil, ok, c.Collection)
	}
}

func TestOrchestrator_ChecksumMismatch(t *testing.T) {
	root := t.TempDir()
	src := newFakeStore(sampleDocs(t))
	rep, err := NewOrchestrator(connectTo(src), root, WithClock(fixedClock)).Backup(context.Background(), "orders")
	require.NoError(t, err)

	path := filepath.Join(rep.RunDir, rep.Collections[0].File)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(data, '\n'), 0o600))

	dst := newFakeStore(nil)
	_, err = NewOrchestrator(connectTo(dst), root).Restore(context.Background(), "orders", "2024-06-01_10-00-00")
	require.ErrorIs(t, err, errs.ErrChecksumMismatch)
	require.Zero(t, dst.deletes)
}

func TestOrchestrator_RestoreAllTruncatesUnderscoreNames(t *testing.T) {
	root := t.TempDir()
	src := newFakeStore(map[string][]model.Doc{
		"user_events": {{{Name: "_id", Value: model.Int(1)}}},
	})
	_, err := NewOrchestrator(connectTo(src), root, WithClock(fixedClock)).Backup(context.Background(), "")
	require.NoError(t, err)

	dst := newFakeStore(nil)
	rep, err := NewOrchestrator(connectTo(dst), root).Restore(context.Background(), "", "2024-06-01_10-00-00")
	require.NoError(t, err)
	require.Equal(t, "user", rep.Collections[0].Collection)
	require.Len(t, dst.get("user"), 1)

	// naming the collection explicitly restores it under its real name
	_, err = NewOrchestrator(connectTo(dst), root).Restore(context.Background(), "user_events", "2024-06-01_10-00-00")
	require.NoError(t, err)
	require.Len(t, dst.get("user_events"), 1)
}

func TestOrchestrator_CancelledBeforeStart(t *testing.T) {
	store := newFakeStore(sampleDocs(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := NewOrchestrator(connectTo(store), t.TempDir(), WithClock(fixedClock), WithManifest(false)).Backup(ctx, "")
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, rep.Failed(), len(rep.Collections))
	require.Equal(t, 1, store.closed)
}

func TestOrchestrator_RunsAndHistory(t *testing.T) {
	root := t.TempDir()
	store := newFakeStore(sampleDocs(t))

	o := NewOrchestrator(connectTo(store), root, WithClock(fixedClock))
	_, err := o.Backup(context.Background(), "orders")
	require.NoError(t, err)

	runs, err := o.Runs()
	require.NoError(t, err)
	require.Equal(t, []string{"2024-06-01_10-00-00"}, runs)

	_, err = o.History(context.Background(), 10)
	require.ErrorIs(t, err, errs.ErrJournalDisabled)

	journal := &fakeJournal{}
	o = NewOrchestrator(connectTo(store), root, WithJournal(journal))
	_, err = o.Backup(context.Background(), "orders")
	require.NoError(t, err)
	recs, err := o.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, model.OpBackup, recs[0].Operation)
}
