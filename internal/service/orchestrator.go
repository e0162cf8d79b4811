package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/docsnap/internal/crypto"
	"github.com/and161185/docsnap/internal/errs"
	"github.com/and161185/docsnap/internal/metrics"
	"github.com/and161185/docsnap/internal/model"
	"github.com/and161185/docsnap/internal/repository"
	"github.com/and161185/docsnap/internal/snapshot"
)

const (
	defaultWorkers = 4
	closeTimeout   = 10 * time.Second
	journalTimeout = 5 * time.Second
)

// Conn is an open database session.
type Conn interface {
	repository.CollectionStore
	Close(ctx context.Context) error
}

// Connector opens a database session for one run.
type Connector func(ctx context.Context) (Conn, error)

// CollectionResult is the outcome of one collection within a run.
type CollectionResult struct {
	Collection string
	File       string // snapshot file name inside the run directory
	Documents  int
	Checksum   string
	Err        error
}

// Report summarises a run.
type Report struct {
	RunID       uuid.UUID
	Operation   model.Operation
	RunDir      string
	StartedAt   time.Time
	FinishedAt  time.Time
	Collections []CollectionResult
}

// Failed returns the collections that did not complete.
func (r *Report) Failed() []CollectionResult {
	var out []CollectionResult
	for _, c := range r.Collections {
		if c.Err != nil {
			out = append(out, c)
		}
	}
	return out
}

// Orchestrator runs backups and restores of one or all collections. It owns
// the connection lifecycle: every run opens its own session and closes it
// regardless of outcome.
type Orchestrator struct {
	connect  Connector
	writer   *snapshot.Writer
	reader   *snapshot.Reader
	restorer *Restorer
	journal  repository.JournalRepository
	metrics  *metrics.Metrics
	log      *zap.Logger

	workers  int
	exclude  []string
	manifest bool
	now      func() time.Time
}

// NewOrchestrator constructs an Orchestrator over the backups root.
func NewOrchestrator(connect Connector, root string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		connect:  connect,
		journal:  nopJournal{},
		log:      zap.NewNop(),
		workers:  defaultWorkers,
		manifest: true,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.writer = snapshot.NewWriter(root, o.log)
	o.reader = snapshot.NewReader(root)
	o.restorer = NewRestorer(o.log)
	return o
}

type target struct {
	collection string
	file       string
}

// Backup writes collection, or every collection when it is empty, into a new
// run directory.
func (o *Orchestrator) Backup(ctx context.Context, collection string) (*Report, error) {
	rep := o.newReport(model.OpBackup)
	log := o.log.With(zap.String("run_id", rep.RunID.String()))

	conn, err := o.connect(ctx)
	if err != nil {
		return o.finish(rep, fmt.Errorf("connect: %w", err))
	}
	defer o.closeConn(conn)

	runDir, err := o.writer.NewRun(rep.StartedAt)
	if err != nil {
		return o.finish(rep, err)
	}
	rep.RunDir = runDir

	targets, err := o.backupTargets(ctx, conn, collection)
	if err != nil {
		return o.finish(rep, err)
	}
	log.Info("backup started", zap.String("run_dir", runDir), zap.Int("collections", len(targets)))

	rep.Collections = o.fanOut(ctx, targets, func(ctx context.Context, t target) CollectionResult {
		return o.backupOne(ctx, conn, rep.RunID, runDir, t.collection)
	})

	runErr := collectErrors(rep.Collections)
	if o.manifest {
		if err := o.writeManifest(rep); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}
	return o.finish(rep, runErr)
}

func (o *Orchestrator) backupTargets(ctx context.Context, conn Conn, collection string) ([]target, error) {
	if collection != "" {
		return []target{{collection: collection}}, nil
	}
	names, err := conn.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]target, 0, len(names))
	for _, n := range names {
		if o.excluded(n) {
			o.log.Debug("collection excluded", zap.String("collection", n))
			continue
		}
		out = append(out, target{collection: n})
	}
	return out, nil
}

func (o *Orchestrator) excluded(name string) bool {
	for _, p := range o.exclude {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

func (o *Orchestrator) backupOne(ctx context.Context, conn Conn, runID uuid.UUID, runDir, collection string) CollectionResult {
	started := o.now()
	res := CollectionResult{Collection: collection}

	docs, err := conn.Find(ctx, collection)
	if err == nil {
		var f snapshot.File
		f, err = o.writer.WriteCollection(collection, docs, runDir)
		res.File, res.Documents, res.Checksum = f.Name, f.Documents, f.Checksum
	}
	res.Err = err

	o.observe(ctx, runID, model.OpBackup, res, started)
	return res
}

func (o *Orchestrator) writeManifest(rep *Report) error {
	files := make([]snapshot.File, 0, len(rep.Collections))
	for _, c := range rep.Collections {
		if c.Err == nil {
			files = append(files, snapshot.File{Collection: c.Collection, Name: c.File, Documents: c.Documents, Checksum: c.Checksum})
		}
	}
	m := snapshot.NewManifest(rep.RunID, rep.StartedAt, files)
	prev, err := snapshot.LoadManifest(rep.RunDir)
	if err != nil {
		o.log.Warn("existing manifest ignored", zap.Error(err))
	}
	m.Merge(prev)
	return o.writer.WriteManifest(rep.RunDir, m)
}

// Restore loads collection, or every collection when it is empty, from the
// named run folder. runFolder is required.
func (o *Orchestrator) Restore(ctx context.Context, collection, runFolder string) (*Report, error) {
	if runFolder == "" {
		return nil, errs.ErrRunFolderRequired
	}
	rep := o.newReport(model.OpRestore)
	log := o.log.With(zap.String("run_id", rep.RunID.String()))

	runDir, err := o.reader.RunDir(runFolder)
	if err != nil {
		return o.finish(rep, err)
	}
	rep.RunDir = runDir

	conn, err := o.connect(ctx)
	if err != nil {
		return o.finish(rep, fmt.Errorf("connect: %w", err))
	}
	defer o.closeConn(conn)

	targets, err := restoreTargets(runDir, collection)
	if err != nil {
		return o.finish(rep, err)
	}
	manifest, err := snapshot.LoadManifest(runDir)
	if err != nil {
		return o.finish(rep, err)
	}
	log.Info("restore started", zap.String("run_dir", runDir), zap.Int("collections", len(targets)))

	rep.Collections = o.fanOut(ctx, targets, func(ctx context.Context, t target) CollectionResult {
		return o.restoreOne(ctx, conn, rep.RunID, runDir, t, manifest)
	})
	return o.finish(rep, collectErrors(rep.Collections))
}

// restoreTargets picks one file per collection so that exactly one writer
// touches each collection.
func restoreTargets(runDir, collection string) ([]target, error) {
	if collection != "" {
		name, err := snapshot.SelectFile(runDir, collection)
		if err != nil {
			return nil, err
		}
		return []target{{collection: collection, file: name}}, nil
	}

	names, err := snapshot.SelectAll(runDir)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %s holds no snapshot files", errs.ErrNoBackup, filepath.Base(runDir))
	}
	out := make([]target, 0, len(names))
	for _, n := range names {
		out = append(out, target{collection: snapshot.CollectionFromFile(n), file: n})
	}
	return out, nil
}

func (o *Orchestrator) restoreOne(ctx context.Context, conn Conn, runID uuid.UUID, runDir string, t target, m *snapshot.Manifest) CollectionResult {
	started := o.now()
	res := CollectionResult{Collection: t.collection, File: t.file}

	encoded, data, err := snapshot.ReadCollection(filepath.Join(runDir, t.file))
	if data != nil {
		res.Checksum = crypto.Checksum(data)
	}
	if err == nil {
		err = m.Verify(t.file, data)
	}
	if err == nil {
		res.Documents, err = o.restorer.RestoreCollection(ctx, conn, t.collection, encoded)
	}
	res.Err = err

	o.observe(ctx, runID, model.OpRestore, res, started)
	return res
}

// fanOut runs fn for every target with at most o.workers in flight. Failures
// do not cancel siblings; a cancelled ctx stops collections not yet started.
func (o *Orchestrator) fanOut(ctx context.Context, targets []target, fn func(context.Context, target) CollectionResult) []CollectionResult {
	results := make([]CollectionResult, len(targets))

	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = CollectionResult{Collection: t.collection, File: t.file, Err: err}
				return nil
			}
			results[i] = fn(ctx, t)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (o *Orchestrator) observe(ctx context.Context, runID uuid.UUID, op model.Operation, res CollectionResult, started time.Time) {
	finished := o.now()
	fields := []zap.Field{
		zap.String("collection", res.Collection),
		zap.String("file", res.File),
		zap.Int("documents", res.Documents),
		zap.Duration("took", finished.Sub(started)),
	}
	if res.Err != nil {
		o.log.Error(string(op)+" failed", append(fields, zap.Error(res.Err))...)
	} else {
		o.log.Info(string(op)+" done", fields...)
	}

	if o.metrics != nil {
		o.metrics.ObserveCollection(string(op), res.Collection, res.Documents, res.Err)
	}

	rec := model.RunRecord{
		RunID:      runID,
		Operation:  op,
		Collection: res.Collection,
		File:       res.File,
		Documents:  res.Documents,
		Checksum:   res.Checksum,
		StartedAt:  started,
		FinishedAt: finished,
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()
	if err := o.journal.Record(jctx, rec); err != nil {
		o.log.Warn("journal record failed", zap.String("collection", res.Collection), zap.Error(err))
	}
}

func (o *Orchestrator) newReport(op model.Operation) *Report {
	return &Report{
		RunID:     uuid.Must(uuid.NewV7()),
		Operation: op,
		StartedAt: o.now(),
	}
}

func (o *Orchestrator) finish(rep *Report, err error) (*Report, error) {
	rep.FinishedAt = o.now()
	if o.metrics != nil {
		o.metrics.ObserveRun(string(rep.Operation), rep.StartedAt, rep.FinishedAt, err)
	}
	return rep, err
}

func (o *Orchestrator) closeConn(conn Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := conn.Close(ctx); err != nil {
		o.log.Warn("closing database connection", zap.Error(err))
	}
}

// Runs lists run folders under the backups root, newest first.
func (o *Orchestrator) Runs() ([]string, error) {
	return o.reader.ListRuns()
}

// History returns the latest journal records.
func (o *Orchestrator) History(ctx context.Context, limit int) ([]model.RunRecord, error) {
	return o.journal.Recent(ctx, limit)
}

func collectErrors(results []CollectionResult) error {
	var out []error
	for _, r := range results {
		if r.Err != nil {
			out = append(out, fmt.Errorf("%s: %w", r.Collection, r.Err))
		}
	}
	return errors.Join(out...)
}

// nopJournal is used when no journal database is configured.
type nopJournal struct{}

func (nopJournal) Record(context.Context, model.RunRecord) error { return nil }

func (nopJournal) Recent(context.Context, int) ([]model.RunRecord, error) {
	return nil, errs.ErrJournalDisabled
}
