package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/and161185/docsnap/internal/codec"
	"github.com/and161185/docsnap/internal/errs"
	"github.com/and161185/docsnap/internal/model"
)

// Reader locates runs and snapshot files under a backups root.
type Reader struct {
	root string
}

// NewReader constructs a reader over the backups root.
func NewReader(root string) *Reader {
	return &Reader{root: root}
}

// RunDir resolves a run folder name to a directory under the root.
func (r *Reader) RunDir(runFolder string) (string, error) {
	if runFolder == "" {
		return "", errs.ErrRunFolderRequired
	}
	clean := filepath.Clean(runFolder)
	if filepath.IsAbs(clean) || clean == "." || clean == ".." ||
		strings.HasPrefix(clean, ".."+string(filepath.Separator)) ||
		strings.ContainsRune(clean, filepath.Separator) {
		return "", fmt.Errorf("%w: %q is not a run folder name", errs.ErrRunNotFound, runFolder)
	}

	dir := filepath.Join(r.root, clean)
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", errs.ErrRunNotFound, runFolder)
		}
		return "", fmt.Errorf("snapshot: stat run %s: %w", runFolder, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", errs.ErrRunNotFound, runFolder)
	}
	return dir, nil
}

// ListRuns returns run folder names under the root, newest first. A missing
// root yields no runs.
func (r *Reader) ListRuns() ([]string, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshot: list runs: %w", err)
	}
	runs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			runs = append(runs, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(runs)))
	return runs, nil
}

// SelectFile picks the snapshot of collection in runDir. When several match,
// the lexicographically greatest name (the latest timestamp) wins.
func SelectFile(runDir, collection string) (string, error) {
	names, err := snapshotFiles(runDir)
	if err != nil {
		return "", err
	}
	best := ""
	for _, n := range names {
		if IsFileOf(n, collection) && n > best {
			best = n
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w: collection %q in %s", errs.ErrNoBackup, collection, filepath.Base(runDir))
	}
	return best, nil
}

// SelectAll returns one snapshot file per derived collection name in runDir,
// keeping the greatest name of each group. The result is sorted.
func SelectAll(runDir string) ([]string, error) {
	names, err := snapshotFiles(runDir)
	if err != nil {
		return nil, err
	}
	latest := make(map[string]string, len(names))
	for _, n := range names {
		c := CollectionFromFile(n)
		if n > latest[c] {
			latest[c] = n
		}
	}
	out := make([]string, 0, len(latest))
	for _, n := range latest {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

// ReadCollection loads a snapshot file and returns its encoded documents
// together with the raw bytes for checksum verification.
func ReadCollection(path string) ([]model.Doc, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot: read %s: %w", path, err)
	}
	docs, err := codec.UnmarshalDocuments(data)
	if err != nil {
		return nil, data, fmt.Errorf("snapshot: parse %s: %w", filepath.Base(path), err)
	}
	return docs, data, nil
}

func snapshotFiles(runDir string) ([]string, error) {
	entries, err := os.ReadDir(runDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", errs.ErrRunNotFound, filepath.Base(runDir))
		}
		return nil, fmt.Errorf("snapshot: list %s: %w", runDir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || strings.HasPrefix(n, ".") || !strings.HasSuffix(n, Extension) {
			continue
		}
		names = append(names, n)
	}
	return names, nil
}
