// Package metrics records per-run Prometheus metrics and pushes them to a
// Pushgateway, since a batch run exits before anything could scrape it.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "docsnap"

// Collection outcome labels.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Metrics holds the collectors of one process.
type Metrics struct {
	registry *prometheus.Registry

	documents   *prometheus.CounterVec
	collections *prometheus.CounterVec
	duration    *prometheus.GaugeVec
	lastSuccess *prometheus.GaugeVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents written to snapshots or inserted on restore",
		}, []string{"operation", "collection"}),
		collections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collections_total",
			Help:      "Collections processed, by outcome",
		}, []string{"operation", "status"}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Wall time of the last run",
		}, []string{"operation"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix timestamp of the last run that finished without errors",
		}, []string{"operation"}),
	}

	m.registry.MustRegister(m.documents, m.collections, m.duration, m.lastSuccess)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveCollection records the outcome of one collection.
func (m *Metrics) ObserveCollection(operation, collection string, documents int, err error) {
	status := StatusOK
	if err != nil {
		status = StatusFailed
	} else {
		m.documents.WithLabelValues(operation, collection).Add(float64(documents))
	}
	m.collections.WithLabelValues(operation, status).Inc()
}

// ObserveRun records the duration of a whole run and, when it succeeded,
// its finish time.
func (m *Metrics) ObserveRun(operation string, started time.Time, finished time.Time, err error) {
	m.duration.WithLabelValues(operation).Set(finished.Sub(started).Seconds())
	if err == nil {
		m.lastSuccess.WithLabelValues(operation).Set(float64(finished.Unix()))
	}
}

// Push sends the current values to the Pushgateway at url under job.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("metrics push: %w", err)
	}
	return nil
}
