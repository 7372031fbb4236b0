package cluster

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stemma/internal/element"
	"github.com/roach88/stemma/internal/graph"
)

// mapExtractor serves vectors by file base name.
type mapExtractor map[string][]float64

func (m mapExtractor) Extract(_ context.Context, path string) ([]float64, error) {
	v, ok := m[filepath.Base(path)]
	if !ok {
		return nil, fmt.Errorf("no features for %s", path)
	}
	return v, nil
}

// recordingProjector returns row i as (i, -i) and keeps the options it saw.
type recordingProjector struct {
	mu   sync.Mutex
	seen []Options
}

func (p *recordingProjector) Project(_ context.Context, x [][]float64, opts Options) ([][]float64, error) {
	p.mu.Lock()
	p.seen = append(p.seen, opts)
	p.mu.Unlock()
	out := make([][]float64, len(x))
	for i := range x {
		out[i] = []float64{float64(i), -float64(i)}
	}
	return out, nil
}

func newStore(t *testing.T, audio int) *graph.Store {
	t.Helper()
	st, err := graph.Create(filepath.Join(t.TempDir(), "proj"), "proj")
	require.NoError(t, err)
	for i := 1; i <= audio; i++ {
		require.NoError(t, st.AddNode(fmt.Sprintf("a%d", i), &element.Audio{
			Base:     element.NewBase(element.KindAudio, 1),
			Artifact: element.Artifact{Path: fmt.Sprintf("audio/a%d.wav", i)},
		}))
	}
	return st
}

func vectors(n int) mapExtractor {
	m := mapExtractor{}
	for i := 1; i <= n; i++ {
		m[fmt.Sprintf("a%d.wav", i)] = []float64{float64(i), float64(i * i), 1}
	}
	return m
}

func TestUpdateProjection_EmptyIsNoop(t *testing.T) {
	st := newStore(t, 0)
	before := st.View(graph.ModeFull)

	p := &recordingProjector{}
	report, err := New(st, p, nil).UpdateProjection(context.Background(), DefaultOptions(), mapExtractor{})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Samples)
	assert.Empty(t, report.Projected)
	assert.Empty(t, p.seen, "projector must not run")
	assert.Equal(t, before, st.View(graph.ModeFull))
}

func TestUpdateProjection_ClampsPerplexity(t *testing.T) {
	st := newStore(t, 5)
	p := &recordingProjector{}

	report, err := New(st, p, nil).UpdateProjection(context.Background(), DefaultOptions(), vectors(5))
	require.NoError(t, err)
	assert.Equal(t, 4.0, report.Perplexity)
	require.Len(t, p.seen, 1)
	assert.Equal(t, 4.0, p.seen[0].Perplexity)
	assert.Len(t, report.Projected, 5)

	el, _ := st.Node("a3")
	assert.Equal(t, []float64{2, -2}, el.(*element.Audio).TSNE)
}

func TestUpdateProjection_SkipsFailures(t *testing.T) {
	st := newStore(t, 5)
	require.NoError(t, st.UpdateAttributes("a2", map[string]any{"tsne": []float64{9, 9}}))

	fx := vectors(5)
	delete(fx, "a2.wav")
	fx["a4.wav"] = []float64{1}

	report, err := New(st, &recordingProjector{}, nil).UpdateProjection(context.Background(), DefaultOptions(), fx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a3", "a5"}, report.Projected)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, "a2", report.Failures[0].Node)
	assert.Equal(t, "a4", report.Failures[1].Node)
	assert.Equal(t, 2.0, report.Perplexity)

	el, _ := st.Node("a2")
	assert.Equal(t, []float64{9, 9}, el.(*element.Audio).TSNE, "failed nodes keep stale coordinates")
	el, _ = st.Node("a4")
	assert.Nil(t, el.(*element.Audio).TSNE)
}

func TestUpdateProjection_AllFail(t *testing.T) {
	st := newStore(t, 3)
	p := &recordingProjector{}
	report, err := New(st, p, nil).UpdateProjection(context.Background(), DefaultOptions(), mapExtractor{})
	require.NoError(t, err)
	assert.Len(t, report.Failures, 3)
	assert.Empty(t, p.seen)
}

type cancelExtractor struct{ cancel context.CancelFunc }

func (c cancelExtractor) Extract(ctx context.Context, _ string) ([]float64, error) {
	c.cancel()
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestUpdateProjection_Canceled(t *testing.T) {
	st := newStore(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := New(st, &recordingProjector{}, nil).UpdateProjection(ctx, DefaultOptions(), cancelExtractor{cancel})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestUpdateProjection_InvalidOptions(t *testing.T) {
	st := newStore(t, 1)
	c := New(st, nil, nil)

	_, err := c.UpdateProjection(context.Background(), Options{Components: 0, Perplexity: 40, Iterations: 1}, vectors(1))
	assert.True(t, graph.IsValidation(err))
	_, err = c.UpdateProjection(context.Background(), DefaultOptions(), nil)
	assert.True(t, graph.IsValidation(err))
}

func TestUpdateProjection_SingleSample(t *testing.T) {
	st := newStore(t, 1)
	report, err := New(st, nil, nil).UpdateProjection(context.Background(), DefaultOptions(), vectors(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, report.Projected)

	el, _ := st.Node("a1")
	assert.Equal(t, []float64{0, 0}, el.(*element.Audio).TSNE)
}

func TestClampPerplexity(t *testing.T) {
	assert.Equal(t, 4.0, ClampPerplexity(40, 5))
	assert.Equal(t, 30.0, ClampPerplexity(30, 100))
}
