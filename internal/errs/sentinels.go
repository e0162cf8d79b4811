// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across codec/snapshot/service layers.
var (
	// ErrNoBackup indicates that a run directory holds no snapshot file for the requested collection.
	ErrNoBackup = errors.New("no backup found")

	// ErrRunNotFound indicates the requested run folder does not exist under the backups root.
	ErrRunNotFound = errors.New("run folder not found")

	// ErrRunFolderRequired indicates a restore was requested without naming a run folder.
	ErrRunFolderRequired = errors.New("run folder is required")

	// ErrReservedKey indicates a document already carries a field named like the type registry key.
	ErrReservedKey = errors.New("reserved field name")

	// ErrSentinelCollision indicates a text value equal to the elided-value sentinel.
	ErrSentinelCollision = errors.New("text collides with elided sentinel")

	// ErrFieldName indicates a field name that cannot be addressed by a registry path:
	// it contains the path separator, repeats a sibling name or is not valid UTF-8.
	ErrFieldName = errors.New("field name cannot be encoded")

	// ErrUnsupportedType indicates a value the codec cannot represent without loss.
	ErrUnsupportedType = errors.New("unsupported value type")

	// ErrChecksumMismatch indicates a snapshot file does not match the digest in its run manifest.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrJournalDisabled indicates the run journal was queried without a configured database.
	ErrJournalDisabled = errors.New("run journal is not configured")
)
