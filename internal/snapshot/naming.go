// Package snapshot writes collection snapshots into timestamped run directories
// and locates them again for restore.
//
// A run directory is named by local wall time (2006-01-02_15-04-05) and holds
// one <collection>_<UTC timestamp>.json file per collection plus an optional
// manifest.yaml with document counts and checksums.
package snapshot

import (
	"fmt"
	"strings"
	"time"
)

const (
	// Extension is the suffix of every snapshot file.
	Extension = ".json"
	// ManifestName is the per-run manifest file.
	ManifestName = "manifest.yaml"

	runDirLayout    = "2006-01-02_15-04-05"
	fileStampLayout = "2006-01-02T15:04:05.000Z"
	tempPrefix      = ".docsnap-tmp-"
	nameSeparator   = "_"
)

var stampReplacer = strings.NewReplacer(":", "-", ".", "-")

// RunDirName returns the run directory name for t in local time.
func RunDirName(t time.Time) string {
	return t.Local().Format(runDirLayout)
}

// FileName returns the snapshot file name for collection written at t, e.g.
// users_2024-06-01T10-00-00-000Z.json.
func FileName(collection string, t time.Time) string {
	return collection + nameSeparator + stampReplacer.Replace(t.UTC().Format(fileStampLayout)) + Extension
}

// CollectionFromFile derives the collection name from a snapshot file name by
// taking everything before the first separator. A collection whose own name
// contains "_" is therefore truncated: a_b_<stamp>.json yields "a".
func CollectionFromFile(name string) string {
	base := strings.TrimSuffix(name, Extension)
	if i := strings.Index(base, nameSeparator); i >= 0 {
		return base[:i]
	}
	return base
}

// IsFileOf reports whether name is a snapshot file of exactly collection, that
// is <collection>_<stamp>.json. Sibling collections sharing the prefix, such as
// user_events for user, do not match.
func IsFileOf(name, collection string) bool {
	rest, ok := strings.CutPrefix(name, collection+nameSeparator)
	if !ok {
		return false
	}
	stamp, ok := strings.CutSuffix(rest, Extension)
	if !ok {
		return false
	}
	_, err := parseFileStamp(stamp)
	return err == nil
}

// parseFileStamp reverses the ':' and '.' replacements made by FileName.
func parseFileStamp(stamp string) (time.Time, error) {
	b := []byte(stamp)
	if len(b) != len(fileStampLayout) {
		return time.Time{}, fmt.Errorf("snapshot: bad file stamp %q", stamp)
	}
	for i, c := range fileStampLayout {
		if c == ':' || c == '.' {
			if b[i] != '-' {
				return time.Time{}, fmt.Errorf("snapshot: bad file stamp %q", stamp)
			}
			b[i] = byte(c)
		}
	}
	return time.Parse(fileStampLayout, string(b))
}

func validateCollection(name string) error {
	if name == "" {
		return fmt.Errorf("snapshot: empty collection name")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("snapshot: collection name %q cannot be used as a file name", name)
	}
	return nil
}
