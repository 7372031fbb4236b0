// Package inference records generation and variation calls in the graph:
// one batch node, the producing edge from the model, one audio node per
// sample and, for variations, the audio_source edge.
package inference

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/roach88/stemma/internal/audio"
	"github.com/roach88/stemma/internal/element"
	"github.com/roach88/stemma/internal/graph"
	"github.com/roach88/stemma/internal/metrics"
	"github.com/roach88/stemma/internal/uid"
)

// AudioDir is the directory, relative to the project root, that holds
// logged samples as {mode}/{model}/sample_{id}_{i}.wav.
const AudioDir = "audio"

// Result names what one LogInference call added.
type Result struct {
	Batch      string
	BatchAlias string
	Samples    []string
	Paths      []string
	Created    int64
}

// Logger writes inference results into a store.
type Logger struct {
	store  *graph.Store
	codec  audio.WAVCodec
	hasher uid.Generator
	logger *slog.Logger
}

// New binds a logger to st. A nil hasher selects XXH3_64.
func New(st *graph.Store, hasher uid.Generator, logger *slog.Logger) *Logger {
	if hasher == nil {
		hasher = uid.NewXXH3()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{store: st, codec: audio.WAVCodec{BitDepth: 16}, hasher: hasher, logger: logger}
}

// BatchID is the shared prefix of a batch and its samples.
func BatchID(model string, seed, created int64) string {
	return model + "_" + strconv.FormatInt(seed, 10) + "_" + strconv.FormatInt(created, 10)
}

// BatchAlias is the short label of batch: the first three characters of
// the model name and the last ten of the batch name.
func BatchAlias(model, batch string) string {
	m := []rune(model)
	if len(m) > 3 {
		m = m[:3]
	}
	b := []rune(batch)
	if len(b) > 10 {
		b = b[len(b)-10:]
	}
	return string(m) + "_" + string(b)
}

// LogInference adds the batch, its edges and one audio node per sample. It
// validates everything it can before touching the graph and never saves;
// on a sample write failure the store is left partially populated and the
// caller must discard it.
func (l *Logger) LogInference(ctx context.Context, req Request, samples []audio.Buffer) (*Result, error) {
	const op = "log inference"
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, graph.Invalid(op, req.Model, err.Error())
	}
	if len(samples) == 0 {
		return nil, graph.Invalid(op, req.Model, "no output samples")
	}
	// Samples are written at the request's rate whatever they carry.
	bufs := make([]audio.Buffer, len(samples))
	for i, s := range samples {
		s.SampleRate = req.SampleRate
		if err := s.Validate(); err != nil {
			return nil, graph.Invalid(op, req.Model, fmt.Sprintf("sample %d: %v", i+1, err))
		}
		bufs[i] = s
	}

	el, ok := l.store.Node(req.Model)
	if !ok {
		return nil, graph.NotFound(op, req.Model, "model not found")
	}
	if el.Kind() != element.KindModel {
		return nil, graph.Invalid(op, req.Model, fmt.Sprintf("%s node is not a model", el.Kind()))
	}
	producing, err := graph.ProducingEdgeType(req.Mode)
	if err != nil {
		return nil, graph.Invalid(op, req.Model, err.Error())
	}
	if producing == graph.EdgeVariation {
		src, ok := l.store.Node(req.Source)
		if !ok {
			return nil, graph.NotFound(op, req.Source, "source audio not found")
		}
		if src.Kind() != element.KindAudio {
			return nil, graph.Invalid(op, req.Source, fmt.Sprintf("%s node is not audio", src.Kind()))
		}
	}

	created := l.store.Now().Unix()
	id := BatchID(req.Model, req.Seed, created)
	batch := "batch_" + id
	if l.store.HasNode(batch) {
		return nil, graph.Invalid(op, batch, "batch already exists")
	}
	alias := BatchAlias(req.Model, batch)

	relDir := filepath.Join(AudioDir, req.Mode, req.Model)
	if err := os.MkdirAll(l.store.Abs(relDir), 0o755); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := l.store.AddNode(batch, &element.Batch{
		Base:  element.NewBase(element.KindBatch, created),
		Alias: alias,
	}); err != nil {
		return nil, err
	}
	params := &graph.GenerationParams{
		ModelName: req.Model,
		ChunkSize: req.ChunkSize,
		BatchSize: req.BatchSize,
		Seed:      req.Seed,
		Steps:     req.Steps,
		Sampler:   req.Sampler,
		Scheduler: req.Scheduler,
	}
	if producing == graph.EdgeVariation {
		noise := req.NoiseLevel
		params.NoiseLevel = &noise
	}
	if err := l.store.AddEdge(&graph.Edge{
		Source: req.Model, Target: batch, Type: producing, Created: created, Generation: params,
	}); err != nil {
		return nil, err
	}
	if producing == graph.EdgeVariation {
		strength := graph.SourceStrength(req.NoiseLevel)
		if err := l.store.AddEdge(&graph.Edge{
			Source: req.Source, Target: batch, Type: graph.EdgeAudioSource, Created: created, Strength: &strength,
		}); err != nil {
			return nil, err
		}
	}

	res := &Result{Batch: batch, BatchAlias: alias, Created: created}
	for i, s := range bufs {
		index := i + 1
		name := fmt.Sprintf("sample_%s_%d", id, index)
		rel := filepath.Join(relDir, name+".wav")

		abs := l.store.Abs(rel)
		if err := l.codec.Save(ctx, s, abs); err != nil {
			return res, fmt.Errorf("%s: sample %d: %w", op, index, err)
		}
		sum, err := l.hashFile(abs)
		if err != nil {
			return res, fmt.Errorf("%s: sample %d: %w", op, index, err)
		}
		if err := l.store.AddNode(name, &element.Audio{
			Base: element.NewBase(element.KindAudio, created),
			Artifact: element.Artifact{
				UID:        sum,
				UIDType:    l.hasher.Type(),
				UIDVersion: l.hasher.Version(),
				Alias:      fmt.Sprintf("%s_%d", alias, index),
				Path:       rel,
			},
			Parent:     batch,
			BatchIndex: index,
		}); err != nil {
			return res, err
		}
		res.Samples = append(res.Samples, name)
		res.Paths = append(res.Paths, rel)
	}

	metrics.BatchesLogged.WithLabelValues(req.Mode).Inc()
	metrics.SamplesLogged.Add(float64(len(bufs)))
	l.logger.Info("inference logged",
		"mode", req.Mode,
		"model", req.Model,
		"batch", batch,
		"samples", len(samples),
	)
	return res, nil
}

// hashFile hashes the bytes written to disk, so a logged sample carries the
// same uid as the file would get from a scan.
func (l *Logger) hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return l.hasher.FromReader(f)
}
