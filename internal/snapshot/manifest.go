package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/uuid/v5"
	"gopkg.in/yaml.v3"

	"github.com/and161185/docsnap/internal/crypto"
)

// Manifest lists the files of one backup run with their checksums.
type Manifest struct {
	RunID     string          `yaml:"run_id"`
	CreatedAt time.Time       `yaml:"created_at"`
	Algorithm string          `yaml:"checksum_algorithm"`
	Files     []ManifestEntry `yaml:"files"`
}

// ManifestEntry is one file record of a Manifest.
type ManifestEntry struct {
	Collection string `yaml:"collection"`
	File       string `yaml:"file"`
	Documents  int    `yaml:"documents"`
	Checksum   string `yaml:"checksum"`
}

// NewManifest builds a manifest for the files written by run.
func NewManifest(runID uuid.UUID, createdAt time.Time, files []File) *Manifest {
	m := &Manifest{
		RunID:     runID.String(),
		CreatedAt: createdAt.UTC(),
		Algorithm: crypto.ChecksumAlgorithm,
		Files:     make([]ManifestEntry, 0, len(files)),
	}
	for _, f := range files {
		m.Files = append(m.Files, ManifestEntry{
			Collection: f.Collection,
			File:       f.Name,
			Documents:  f.Documents,
			Checksum:   f.Checksum,
		})
	}
	return m
}

// Marshal renders the manifest as YAML.
func (m *Manifest) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal manifest: %w", err)
	}
	return data, nil
}

// Entry finds the record for file.
func (m *Manifest) Entry(file string) (ManifestEntry, bool) {
	if m == nil {
		return ManifestEntry{}, false
	}
	for _, e := range m.Files {
		if e.File == file {
			return e, true
		}
	}
	return ManifestEntry{}, false
}

// Merge keeps entries of prev whose files m does not list. Two backups
// started within the same second share a run directory.
func (m *Manifest) Merge(prev *Manifest) {
	if prev == nil {
		return
	}
	var kept []ManifestEntry
	for _, e := range prev.Files {
		if _, ok := m.Entry(e.File); !ok {
			kept = append(kept, e)
		}
	}
	m.Files = append(kept, m.Files...)
}

// Verify checks data against the recorded checksum of file. Files the
// manifest does not know about, and a nil manifest, pass unchecked.
func (m *Manifest) Verify(file string, data []byte) error {
	e, ok := m.Entry(file)
	if !ok || e.Checksum == "" {
		return nil
	}
	if m.Algorithm != "" && m.Algorithm != crypto.ChecksumAlgorithm {
		return nil
	}
	if err := crypto.VerifyChecksum(data, e.Checksum); err != nil {
		return fmt.Errorf("snapshot: %s: %w", file, err)
	}
	return nil
}

// LoadManifest reads manifest.yaml from runDir. Runs written without a
// manifest yield (nil, nil).
func LoadManifest(runDir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(runDir, ManifestName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshot: read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("snapshot: parse manifest: %w", err)
	}
	return &m, nil
}
