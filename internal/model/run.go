package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Operation is the kind of run a journal entry belongs to.
type Operation string

// Run operations.
const (
	OpBackup  Operation = "backup"
	OpRestore Operation = "restore"
)

// RunRecord is the journal entry for one collection within a backup or restore run.
type RunRecord struct {
	RunID      uuid.UUID // shared by every collection of one invocation
	Operation  Operation
	Collection string
	File       string // snapshot file name relative to the run directory
	Documents  int    // documents written (backup) or inserted (restore)
	Checksum   string // BLAKE2b-256 of the snapshot file, hex
	Error      string // empty on success
	StartedAt  time.Time
	FinishedAt time.Time
}

// Succeeded reports whether the collection completed without error.
func (r RunRecord) Succeeded() bool { return r.Error == "" }
