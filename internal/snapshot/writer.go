package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/docsnap/internal/codec"
	"github.com/and161185/docsnap/internal/crypto"
	"github.com/and161185/docsnap/internal/model"
)

const (
	dirPerm  os.FileMode = 0o750
	filePerm os.FileMode = 0o640
)

// File describes one written snapshot file.
type File struct {
	Collection string
	Name       string // base name inside the run directory
	Path       string
	Documents  int
	Size       int64
	Checksum   string
}

// Writer encodes collections into snapshot files under a backups root.
type Writer struct {
	root string
	log  *zap.Logger
	now  func() time.Time
}

// NewWriter constructs a writer rooted at the backups directory.
func NewWriter(root string, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{root: root, log: log, now: time.Now}
}

// NewRun creates the run directory for a backup started at now and returns its
// path. An already existing directory is reused.
func (w *Writer) NewRun(now time.Time) (string, error) {
	dir := filepath.Join(w.root, RunDirName(now))
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("snapshot: create run directory %s: %w", dir, err)
	}
	return dir, nil
}

// WriteCollection encodes docs and writes them as one snapshot file in runDir.
func (w *Writer) WriteCollection(collection string, docs []model.Doc, runDir string) (File, error) {
	if err := validateCollection(collection); err != nil {
		return File{}, err
	}

	encoded := make([]model.Doc, 0, len(docs))
	for i, d := range docs {
		e, err := codec.Encode(d)
		if err != nil {
			return File{}, fmt.Errorf("snapshot: encode %s %s: %w", collection, docLabel(d, i), err)
		}
		encoded = append(encoded, e)
	}

	data, err := codec.MarshalDocuments(encoded)
	if err != nil {
		return File{}, fmt.Errorf("snapshot: serialize %s: %w", collection, err)
	}

	if err := os.MkdirAll(runDir, dirPerm); err != nil {
		return File{}, fmt.Errorf("snapshot: create run directory %s: %w", runDir, err)
	}

	name := FileName(collection, w.now())
	path := filepath.Join(runDir, name)
	if err := writeFileAtomic(path, data, filePerm); err != nil {
		return File{}, fmt.Errorf("snapshot: write %s: %w", path, err)
	}

	f := File{
		Collection: collection,
		Name:       name,
		Path:       path,
		Documents:  len(docs),
		Size:       int64(len(data)),
		Checksum:   crypto.Checksum(data),
	}
	w.log.Debug("snapshot written",
		zap.String("collection", collection),
		zap.String("file", path),
		zap.Int("documents", f.Documents),
		zap.Int64("bytes", f.Size),
	)
	return f, nil
}

// WriteManifest stores m as manifest.yaml inside runDir.
func (w *Writer) WriteManifest(runDir string, m *Manifest) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	if err := writeFileAtomic(filepath.Join(runDir, ManifestName), data, filePerm); err != nil {
		return fmt.Errorf("snapshot: write manifest: %w", err)
	}
	return nil
}

func docLabel(d model.Doc, i int) string {
	if id, ok := d.ID(); ok {
		switch v := id.(type) {
		case model.RefID:
			return "document " + v.String()
		case model.Text:
			return "document " + string(v)
		}
	}
	return fmt.Sprintf("document #%d", i)
}
