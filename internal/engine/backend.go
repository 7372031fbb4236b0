package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/stemma/internal/audio"
	"github.com/roach88/stemma/internal/uid"
)

var (
	// ErrGenerationUnsupported is returned by backends that can only
	// register and verify checkpoints.
	ErrGenerationUnsupported = errors.New("engine: backend does not support generation")

	// ErrNotLoaded is returned when generating from a model that has not
	// passed LoadModel.
	ErrNotLoaded = errors.New("engine: model not loaded")
)

// Mode of a generation call.
type Mode string

const (
	ModeGeneration Mode = "generation"
	ModeVariation  Mode = "variation"
)

// GenerateParams are the sampling parameters of one generation call.
type GenerateParams struct {
	Mode       Mode
	ChunkSize  int
	BatchSize  int
	Seed       int64
	Steps      int
	Sampler    string
	Scheduler  string
	NoiseLevel float64

	// Source is the input audio of a variation.
	Source *audio.Buffer
}

// Model is a checkpoint held in memory by a backend.
type Model struct {
	Name     string
	Engine   string
	Config   *ModelConfig
	Weights  uid.WeightMap
	Identity uid.Identity
}

// Backend is a generation engine.
type Backend interface {
	Name() string
	LoadWeights(ctx context.Context, checkpointPath string) (uid.WeightMap, error)
	Generate(ctx context.Context, m *Model, p GenerateParams) ([]audio.Buffer, error)
}

// Registry maps backend names to implementations.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry returns a registry holding backends.
func NewRegistry(backends ...Backend) *Registry {
	r := &Registry{backends: make(map[string]Backend)}
	for _, b := range backends {
		r.Register(b)
	}
	return r
}

// DefaultRegistry returns a registry with every built-in backend.
func DefaultRegistry() *Registry {
	return NewRegistry(SafetensorsBackend{})
}

// Register adds b, replacing any backend with the same name.
func (r *Registry) Register(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[b.Name()] = b
}

// Get returns the backend called name.
func (r *Registry) Get(name string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("engine: unknown backend %q (have %v)", name, r.namesLocked())
	}
	return b, nil
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.backends))
	for n := range r.backends {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
