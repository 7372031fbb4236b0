// Package metrics defines the process counters and histograms. Collectors
// live on a private registry so the CLI can dump them to a node-exporter
// textfile without pulling in the Go runtime collectors of the default one.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every stemma collector.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// ModelsRegistered counts model registrations by engine.
	ModelsRegistered = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "stemma_models_registered_total",
		Help: "Models registered, by engine",
	}, []string{"engine"})

	// UIDMismatches counts failed identity verifications.
	UIDMismatches = factory.NewCounter(prometheus.CounterOpts{
		Name: "stemma_uid_mismatches_total",
		Help: "Model loads rejected because the recomputed uid differed",
	})

	// ScannedFiles counts files seen by source scans.
	// Labels: "added", "known", "ignored", "failed"
	ScannedFiles = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "stemma_scanned_files_total",
		Help: "Files visited by external source scans, by outcome",
	}, []string{"result"})

	BatchesLogged = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "stemma_batches_logged_total",
		Help: "Inference batches recorded, by mode",
	}, []string{"mode"})

	SamplesLogged = factory.NewCounter(prometheus.CounterOpts{
		Name: "stemma_samples_logged_total",
		Help: "Audio samples written by the inference logger",
	})

	// Exports counts export calls. Labels: "single", "batch"
	Exports = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "stemma_exports_total",
		Help: "Completed exports, by kind",
	}, []string{"kind"})

	FeatureFailures = factory.NewCounter(prometheus.CounterOpts{
		Name: "stemma_feature_failures_total",
		Help: "Audio nodes skipped because feature extraction failed",
	})

	FeatureCacheHits = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "stemma_feature_cache_lookups_total",
		Help: "Feature cache lookups, by result",
	}, []string{"result"})

	ProjectionDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "stemma_projection_duration_seconds",
		Help:    "Wall time of a projection update",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 120},
	})

	StateSaves = factory.NewCounter(prometheus.CounterOpts{
		Name: "stemma_state_saves_total",
		Help: "Successful project state writes",
	})
)

// WriteTextfile writes the registry in the text exposition format. An empty
// path is a no-op.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
