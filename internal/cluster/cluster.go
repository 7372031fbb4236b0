// Package cluster computes low-dimensional coordinates for every audio node
// from per-file feature vectors and stores them in the node's tsne
// attribute.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/stemma/internal/element"
	"github.com/roach88/stemma/internal/graph"
	"github.com/roach88/stemma/internal/metrics"
)

// FeatureExtractor computes the feature vector of an audio file.
type FeatureExtractor interface {
	Extract(ctx context.Context, path string) ([]float64, error)
}

// Options configures a projection run.
type Options struct {
	Components int
	Perplexity float64
	Iterations int

	// Workers bounds parallel feature extraction. Zero means GOMAXPROCS.
	Workers int
	Seed    int64
}

// DefaultOptions returns a 2-D projection with perplexity 40 over 300
// iterations.
func DefaultOptions() Options {
	return Options{Components: 2, Perplexity: 40, Iterations: 300, Seed: 42}
}

// Failure is an audio node skipped by a run.
type Failure struct {
	Node string
	Err  error
}

// Report summarizes a projection run.
type Report struct {
	// Samples is the number of audio nodes considered.
	Samples int

	// Projected lists the nodes whose tsne attribute was written.
	Projected []string
	Failures  []Failure

	// Perplexity is the value actually used after clamping.
	Perplexity float64
	Duration   time.Duration
}

// Clusterer projects the audio nodes of one store.
type Clusterer struct {
	store     *graph.Store
	projector Projector
	logger    *slog.Logger
}

// New binds a clusterer to st. A nil projector selects exact t-SNE.
func New(st *graph.Store, projector Projector, logger *slog.Logger) *Clusterer {
	if projector == nil {
		projector = TSNE{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Clusterer{store: st, projector: projector, logger: logger}
}

// ClampPerplexity keeps perplexity below the sample count.
func ClampPerplexity(perplexity float64, samples int) float64 {
	return min(perplexity, float64(samples-1))
}

// UpdateProjection extracts a vector for every audio node, projects them
// together and writes each result back to its node. Nodes whose extraction
// fails, or whose vector length differs from the rest, are skipped and
// keep their previous coordinates. With no audio nodes it does nothing.
func (c *Clusterer) UpdateProjection(ctx context.Context, opts Options, fx FeatureExtractor) (*Report, error) {
	const op = "update projection"
	if opts.Components < 1 || opts.Iterations < 1 || opts.Perplexity <= 0 {
		return nil, graph.Invalid(op, "", fmt.Sprintf("invalid options %+v", opts))
	}
	if fx == nil {
		return nil, graph.Invalid(op, "", "feature extractor is required")
	}
	start := time.Now()

	names := c.store.Nodes(element.KindAudio)
	report := &Report{Samples: len(names)}
	if len(names) == 0 {
		c.logger.Info("projection skipped: no audio nodes")
		return report, nil
	}

	vecs := make([][]float64, len(names))
	errs := make([]error, len(names))
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range names {
		path, ok := c.store.ResolvePath(name)
		if !ok {
			errs[i] = errors.New("node has no path")
			continue
		}
		g.Go(func() error {
			v, err := fx.Extract(gctx, path)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				errs[i] = err
				return nil
			}
			vecs[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dim := 0
	for i, v := range vecs {
		if errs[i] == nil && len(v) > 0 {
			dim = len(v)
			break
		}
	}
	var (
		keep []string
		x    [][]float64
	)
	for i, name := range names {
		err := errs[i]
		if err == nil && len(vecs[i]) != dim {
			err = fmt.Errorf("feature vector has %d values, want %d", len(vecs[i]), dim)
		}
		if err != nil {
			metrics.FeatureFailures.Inc()
			c.logger.Warn("feature extraction failed, skipping node", "node", name, "error", err)
			report.Failures = append(report.Failures, Failure{Node: name, Err: err})
			continue
		}
		keep = append(keep, name)
		x = append(x, vecs[i])
	}
	if len(keep) == 0 {
		c.logger.Warn("projection skipped: no usable feature vectors", "failures", len(report.Failures))
		return report, nil
	}

	run := opts
	run.Perplexity = ClampPerplexity(opts.Perplexity, len(keep))
	report.Perplexity = run.Perplexity

	y, err := c.projector.Project(ctx, x, run)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(y) != len(keep) {
		return nil, fmt.Errorf("%s: projector returned %d rows for %d samples", op, len(y), len(keep))
	}

	for i, name := range keep {
		if err := c.store.UpdateAttributes(name, map[string]any{"tsne": y[i]}); err != nil {
			return nil, err
		}
	}
	report.Projected = keep
	report.Duration = time.Since(start)
	metrics.ProjectionDuration.Observe(report.Duration.Seconds())
	c.logger.Info("projection updated",
		"samples", len(keep),
		"failures", len(report.Failures),
		"perplexity", run.Perplexity,
		"duration", report.Duration,
	)
	return report, nil
}
