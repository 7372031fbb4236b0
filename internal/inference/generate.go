package inference

import (
	"context"
	"fmt"

	"github.com/roach88/stemma/internal/audio"
	"github.com/roach88/stemma/internal/element"
	"github.com/roach88/stemma/internal/engine"
	"github.com/roach88/stemma/internal/graph"
	"github.com/roach88/stemma/internal/uid"
)

// ModelRef builds the runner reference of model node name, resolving its
// checkpoint and config paths against the project root.
func ModelRef(st *graph.Store, name string) (engine.ModelRef, error) {
	el, ok := st.Node(name)
	if !ok {
		return engine.ModelRef{}, graph.NotFound("model ref", name, "model not found")
	}
	m, ok := el.(*element.Model)
	if !ok {
		return engine.ModelRef{}, graph.Invalid("model ref", name, fmt.Sprintf("%s node is not a model", el.Kind()))
	}
	ref := engine.ModelRef{
		Name:           name,
		Engine:         m.Engine,
		CheckpointPath: st.Abs(m.Path),
		Identity:       uid.Identity{UID: m.UID, Type: m.UIDType, Version: m.UIDVersion},
	}
	if m.ConfigPath != "" {
		ref.ConfigPath = st.Abs(m.ConfigPath)
	}
	return ref, nil
}

// Generate loads and verifies the request's model, runs it and logs the
// output. An identity mismatch aborts before anything is generated.
func (l *Logger) Generate(ctx context.Context, runner *engine.Runner, req Request) (*Result, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, graph.Invalid("generate", req.Model, err.Error())
	}
	ref, err := ModelRef(l.store, req.Model)
	if err != nil {
		return nil, err
	}
	if _, err := runner.LoadModel(ctx, ref); err != nil {
		return nil, err
	}

	params := req.Params()
	if params.Mode == engine.ModeVariation {
		path, ok := l.store.ResolvePath(req.Source)
		if !ok {
			return nil, graph.NotFound("generate", req.Source, "source audio not found")
		}
		src, err := audio.WAVCodec{Channels: 2}.Load(ctx, path, req.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("generate: load source: %w", err)
		}
		params.Source = &src
	}

	samples, err := runner.Generate(ctx, req.Model, params)
	if err != nil {
		return nil, err
	}
	return l.LogInference(ctx, req, samples)
}
