package featurecache

import (
	"context"
	"log/slog"

	"github.com/roach88/stemma/internal/metrics"
)

// FeatureExtractor computes a feature vector for an audio file.
type FeatureExtractor interface {
	Extract(ctx context.Context, path string) ([]float64, error)
}

// Extractor serves vectors from the cache and falls back to an inner
// extractor on a miss. Cache failures are logged and never fail an
// extraction.
type Extractor struct {
	cache     *Cache
	inner     FeatureExtractor
	signature string
	logger    *slog.Logger
}

// NewExtractor wraps inner. signature must change whenever inner's output
// would change for the same file.
func NewExtractor(cache *Cache, inner FeatureExtractor, signature string, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{cache: cache, inner: inner, signature: signature, logger: logger}
}

func (e *Extractor) Extract(ctx context.Context, path string) ([]float64, error) {
	key, err := KeyFor(path, e.signature)
	if err != nil {
		return nil, err
	}

	vec, ok, err := e.cache.Get(ctx, key)
	switch {
	case err != nil:
		e.logger.Warn("feature cache read failed", "path", path, "error", err)
	case ok:
		metrics.FeatureCacheHits.WithLabelValues("hit").Inc()
		return vec, nil
	}
	metrics.FeatureCacheHits.WithLabelValues("miss").Inc()

	vec, err = e.inner.Extract(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := e.cache.Put(ctx, key, vec); err != nil {
		e.logger.Warn("feature cache write failed", "path", path, "error", err)
	}
	return vec, nil
}
