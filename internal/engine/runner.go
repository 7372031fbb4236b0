package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/stemma/internal/audio"
	"github.com/roach88/stemma/internal/metrics"
	"github.com/roach88/stemma/internal/uid"
)

// Registration is the result of registering a checkpoint: everything needed
// to build a model node, without the weights themselves.
type Registration struct {
	Name           string
	Engine         string
	CheckpointPath string
	ConfigPath     string
	Config         *ModelConfig
	Identity       uid.Identity
}

// ModelRef points at a registered model and its stored identity.
type ModelRef struct {
	Name           string
	Engine         string
	CheckpointPath string
	ConfigPath     string
	Identity       uid.Identity
}

// Runner registers, verifies and holds models for the backends of a
// Registry.
type Runner struct {
	registry *Registry
	hasher   uid.Generator
	logger   *slog.Logger

	mu     sync.Mutex
	loaded map[string]*Model
}

// NewRunner creates a runner hashing new registrations with hasher.
func NewRunner(registry *Registry, hasher uid.Generator, logger *slog.Logger) *Runner {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if hasher == nil {
		hasher = uid.NewXXH3()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		registry: registry,
		hasher:   hasher,
		logger:   logger,
		loaded:   make(map[string]*Model),
	}
}

// Registry returns the backends the runner dispatches to.
func (r *Runner) Registry() *Registry { return r.registry }

// RegisterModel loads a checkpoint only to compute its identity. The weights
// are dropped before returning.
func (r *Runner) RegisterModel(ctx context.Context, engineName, name, checkpointPath, configPath string) (*Registration, error) {
	backend, err := r.registry.Get(engineName)
	if err != nil {
		return nil, err
	}
	cfg, err := loadOptionalConfig(configPath)
	if err != nil {
		return nil, err
	}
	weights, err := backend.LoadWeights(ctx, checkpointPath)
	if err != nil {
		return nil, err
	}
	id, err := uid.Identify(r.hasher, weights)
	if err != nil {
		return nil, fmt.Errorf("register %q: %w", name, err)
	}

	metrics.ModelsRegistered.WithLabelValues(backend.Name()).Inc()
	r.logger.Debug("model registered",
		"model", name,
		"engine", backend.Name(),
		"tensors", len(weights),
		"uid", id.UID,
		"uid_type", id.Type,
	)
	return &Registration{
		Name:           name,
		Engine:         backend.Name(),
		CheckpointPath: checkpointPath,
		ConfigPath:     configPath,
		Config:         cfg,
		Identity:       id,
	}, nil
}

// LoadModel reads the checkpoint of ref and verifies it against the stored
// identity using the algorithm recorded in it. Any previously loaded copy is
// dropped first, so a failed verification leaves the model unusable.
func (r *Runner) LoadModel(ctx context.Context, ref ModelRef) (*Model, error) {
	r.Unload(ref.Name)

	backend, err := r.registry.Get(ref.Engine)
	if err != nil {
		return nil, err
	}
	g, err := uid.New(ref.Identity.Type)
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", ref.Name, err)
	}
	cfg, err := loadOptionalConfig(ref.ConfigPath)
	if err != nil {
		return nil, err
	}
	weights, err := backend.LoadWeights(ctx, ref.CheckpointPath)
	if err != nil {
		return nil, err
	}

	if err := uid.Verify(g, ref.Name, ref.Identity, weights); err != nil {
		var mismatch *uid.MismatchError
		if errors.As(err, &mismatch) {
			metrics.UIDMismatches.Inc()
			r.logger.Error("model identity mismatch",
				"model", ref.Name,
				"stored", mismatch.Stored.UID,
				"computed", mismatch.Computed.UID,
			)
		}
		return nil, err
	}

	m := &Model{
		Name:     ref.Name,
		Engine:   backend.Name(),
		Config:   cfg,
		Weights:  weights,
		Identity: ref.Identity,
	}
	r.mu.Lock()
	r.loaded[ref.Name] = m
	r.mu.Unlock()
	r.logger.Debug("model loaded", "model", ref.Name, "engine", backend.Name())
	return m, nil
}

// Loaded returns the verified model called name.
func (r *Runner) Loaded(name string) (*Model, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.loaded[name]
	return m, ok
}

// Unload drops name from memory.
func (r *Runner) Unload(name string) {
	r.mu.Lock()
	delete(r.loaded, name)
	r.mu.Unlock()
}

// Generate runs the backend of a loaded model.
func (r *Runner) Generate(ctx context.Context, name string, p GenerateParams) ([]audio.Buffer, error) {
	m, ok := r.Loaded(name)
	if !ok {
		return nil, fmt.Errorf("generate %q: %w", name, ErrNotLoaded)
	}
	backend, err := r.registry.Get(m.Engine)
	if err != nil {
		return nil, err
	}
	if p.Mode == ModeVariation && p.Source == nil {
		return nil, fmt.Errorf("generate %q: variation needs source audio", name)
	}
	return backend.Generate(ctx, m, p)
}

func loadOptionalConfig(path string) (*ModelConfig, error) {
	if path == "" {
		return nil, nil
	}
	return LoadConfig(path)
}
