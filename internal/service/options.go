package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/and161185/docsnap/internal/metrics"
	"github.com/and161185/docsnap/internal/repository"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

// WithJournal records every collection outcome in j.
func WithJournal(j repository.JournalRepository) Option {
	return func(o *Orchestrator) {
		if j != nil {
			o.journal = j
		}
	}
}

// WithMetrics records run metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithWorkers bounds how many collections are processed at once.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithExclude skips collections matching any of the glob patterns when
// backing up the whole database.
func WithExclude(patterns []string) Option {
	return func(o *Orchestrator) { o.exclude = append([]string(nil), patterns...) }
}

// WithManifest toggles writing manifest.yaml for backup runs.
func WithManifest(enabled bool) Option {
	return func(o *Orchestrator) { o.manifest = enabled }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}
