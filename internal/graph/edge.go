package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// EdgeType tags the relation an edge records.
type EdgeType string

const (
	EdgeGeneration  EdgeType = "dd_generation"
	EdgeVariation   EdgeType = "dd_variation"
	EdgeAudioSource EdgeType = "audio_source"
)

// ProducingEdgeType maps an inference mode to the type of the edge from the
// producing model to its batch.
func ProducingEdgeType(mode string) (EdgeType, error) {
	switch mode {
	case "generation":
		return EdgeGeneration, nil
	case "variation":
		return EdgeVariation, nil
	default:
		return "", fmt.Errorf("unknown inference mode %q", mode)
	}
}

// IsProducing reports whether t links a model to the batch it produced.
func (t EdgeType) IsProducing() bool {
	return t == EdgeGeneration || t == EdgeVariation
}

func parseEdgeType(s string) (EdgeType, error) {
	switch t := EdgeType(s); t {
	case EdgeGeneration, EdgeVariation, EdgeAudioSource:
		return t, nil
	default:
		return "", fmt.Errorf("unknown edge type %q", s)
	}
}

// GenerationParams are the parameters of the call that produced a batch.
type GenerationParams struct {
	ModelName  string   `json:"model_name"`
	ChunkSize  int      `json:"chunk_size"`
	BatchSize  int      `json:"batch_size"`
	Seed       int64    `json:"seed"`
	Steps      int      `json:"steps"`
	Sampler    string   `json:"sampler"`
	Scheduler  string   `json:"scheduler"`
	NoiseLevel *float64 `json:"noise_level,omitempty"`
}

// Edge is a directed, typed relation between two nodes.
type Edge struct {
	Source  string
	Target  string
	Type    EdgeType
	Created int64

	// Generation is set on producing edges only.
	Generation *GenerationParams

	// Strength is set on audio_source edges: 1 - noise_level, 5 decimals.
	Strength *float64

	Extra map[string]any
}

// SourceStrength converts a variation noise level to the strength of the
// source audio's influence.
func SourceStrength(noiseLevel float64) float64 {
	return math.Round((1-noiseLevel)*1e5) / 1e5
}

// Attributes returns the edge attribute map without source and target.
func (e *Edge) Attributes() map[string]any {
	m := make(map[string]any, len(e.Extra)+10)
	for k, v := range e.Extra {
		m[k] = v
	}
	m["type"] = string(e.Type)
	if e.Created != 0 {
		m["created"] = e.Created
	}
	if p := e.Generation; p != nil {
		m["model_name"] = p.ModelName
		m["chunk_size"] = p.ChunkSize
		m["batch_size"] = p.BatchSize
		m["seed"] = p.Seed
		m["steps"] = p.Steps
		m["sampler"] = p.Sampler
		m["scheduler"] = p.Scheduler
		if p.NoiseLevel != nil {
			m["noise_level"] = *p.NoiseLevel
		}
	}
	if e.Strength != nil {
		m["strength"] = *e.Strength
	}
	return m
}

var generationKeys = []string{
	"model_name", "chunk_size", "batch_size", "seed", "steps", "sampler", "scheduler", "noise_level",
}

// decodeEdge builds an edge from its attribute map.
func decodeEdge(source, target string, attrs map[string]any) (*Edge, error) {
	typ, _ := attrs["type"].(string)
	et, err := parseEdgeType(typ)
	if err != nil {
		return nil, err
	}
	e := &Edge{Source: source, Target: target, Type: et}
	known := map[string]bool{"type": true}

	if v, ok := attrs["created"]; ok {
		n, ok := toInt64(v)
		if !ok {
			return nil, fmt.Errorf("edge created must be an integer, got %v", v)
		}
		e.Created = n
		known["created"] = true
	}
	if v, ok := attrs["strength"]; ok {
		f, ok := toFloat64(v)
		if !ok {
			return nil, fmt.Errorf("edge strength must be a number, got %v", v)
		}
		e.Strength = &f
		known["strength"] = true
	}
	if et.IsProducing() {
		typed := make(map[string]any)
		for _, k := range generationKeys {
			known[k] = true
			if v, ok := attrs[k]; ok && v != nil {
				typed[k] = v
			}
		}
		raw, err := json.Marshal(typed)
		if err != nil {
			return nil, err
		}
		var p GenerationParams
		dec := json.NewDecoder(bytes.NewReader(raw))
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("edge generation params: %w", err)
		}
		e.Generation = &p
	}

	for k, v := range attrs {
		if known[k] {
			continue
		}
		if e.Extra == nil {
			e.Extra = make(map[string]any)
		}
		e.Extra[k] = v
	}
	return e, nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), n == math.Trunc(n)
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
