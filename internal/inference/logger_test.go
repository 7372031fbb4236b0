package inference

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stemma/internal/audio"
	"github.com/roach88/stemma/internal/element"
	"github.com/roach88/stemma/internal/graph"
	"github.com/roach88/stemma/internal/testutil"
	"github.com/roach88/stemma/internal/uid"
)

const fixtureTime = int64(1700000000)

func fixture(t *testing.T) *graph.Store {
	t.Helper()
	st, err := graph.Create(filepath.Join(t.TempDir(), "proj"), "proj",
		graph.WithClock(testutil.FixedClock(fixtureTime).Now))
	require.NoError(t, err)
	require.NoError(t, st.AddNode("dd", &element.Model{
		Base:     element.NewBase(element.KindModel, 1),
		Artifact: element.Artifact{UID: "abc", UIDType: "XXH3_64", Path: "models/dd.safetensors"},
		Engine:   "safetensors",
	}))
	require.NoError(t, st.AddNode("src", &element.Audio{
		Base:     element.NewBase(element.KindAudio, 1),
		Artifact: element.Artifact{UID: "def", Path: "found/src.wav"},
	}))
	return st
}

func samples(n int) []audio.Buffer {
	out := make([]audio.Buffer, n)
	for i := range out {
		out[i] = testutil.Sine(8000, 256, float64(220*(i+1)))
	}
	return out
}

func generationRequest() Request {
	return Request{
		Mode:       "generation",
		Model:      "dd",
		SampleRate: 8000,
		ChunkSize:  256,
		BatchSize:  3,
		Seed:       7,
		Steps:      100,
		Sampler:    "dpmpp-3m-sde",
		Scheduler:  "v-diffusion",
	}
}

func TestLogInference_Generation(t *testing.T) {
	st := fixture(t)
	res, err := New(st, nil, nil).LogInference(context.Background(), generationRequest(), samples(3))
	require.NoError(t, err)

	assert.Equal(t, "batch_dd_7_1700000000", res.Batch)
	assert.Equal(t, "dd_1700000000", res.BatchAlias)
	assert.Equal(t, []string{"sample_dd_7_1700000000_1", "sample_dd_7_1700000000_2", "sample_dd_7_1700000000_3"}, res.Samples)

	assert.Len(t, st.Nodes(element.KindBatch), 1)
	assert.Equal(t, res.Samples, st.Children(res.Batch))

	out := st.OutEdges("dd")
	require.Len(t, out, 1)
	assert.Equal(t, graph.EdgeGeneration, out[0].Type)
	assert.Equal(t, res.Batch, out[0].Target)
	assert.Equal(t, fixtureTime, out[0].Created)
	require.NotNil(t, out[0].Generation)
	assert.Equal(t, int64(7), out[0].Generation.Seed)
	assert.Nil(t, out[0].Generation.NoiseLevel)

	for i, name := range res.Samples {
		el, ok := st.Node(name)
		require.True(t, ok)
		a := el.(*element.Audio)
		assert.Equal(t, res.Batch, a.Parent)
		assert.Equal(t, i+1, a.BatchIndex)
		assert.Equal(t, fixtureTime, a.Created)
		assert.Equal(t, res.BatchAlias+"_"+string(rune('1'+i)), a.Alias)
		assert.Equal(t, filepath.Join("audio", "generation", "dd", name+".wav"), a.Path)
		raw, err := os.ReadFile(st.Abs(a.Path))
		require.NoError(t, err)
		assert.Equal(t, uid.NewXXH3().FromBytes(raw), a.UID, "sample uid is the hash of the written file")
		assert.Equal(t, uid.TypeXXH3_64, a.UIDType)

		buf, err := audio.WAVCodec{}.Load(context.Background(), st.Abs(a.Path), 0)
		require.NoError(t, err)
		assert.Equal(t, 8000, buf.SampleRate)
		assert.Equal(t, 256, buf.Frames())
	}

	assert.Empty(t, st.CheckIntegrity())
}

func TestLogInference_Variation(t *testing.T) {
	st := fixture(t)
	req := generationRequest()
	req.Mode = "Variation"
	req.Source = "src"
	req.NoiseLevel = 0.3

	res, err := New(st, nil, nil).LogInference(context.Background(), req, samples(2))
	require.NoError(t, err)

	src, ok := st.Edge("src", res.Batch)
	require.True(t, ok)
	assert.Equal(t, graph.EdgeAudioSource, src.Type)
	require.NotNil(t, src.Strength)
	assert.Equal(t, 0.7, *src.Strength)

	prod, ok := st.Edge("dd", res.Batch)
	require.True(t, ok)
	assert.Equal(t, graph.EdgeVariation, prod.Type)
	require.NotNil(t, prod.Generation.NoiseLevel)
	assert.Equal(t, 0.3, *prod.Generation.NoiseLevel)

	_, err = os.Stat(filepath.Join(st.Root(), "audio", "variation", "dd", res.Samples[0]+".wav"))
	assert.NoError(t, err)
}

func TestLogInference_RejectsBeforeMutation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Request)
		samples int
		check   func(error) bool
	}{
		{"unknown mode", func(r *Request) { r.Mode = "remix" }, 1, graph.IsValidation},
		{"missing model name", func(r *Request) { r.Model = "" }, 1, graph.IsValidation},
		{"zero sample rate", func(r *Request) { r.SampleRate = 0 }, 1, graph.IsValidation},
		{"no samples", func(*Request) {}, 0, graph.IsValidation},
		{"unknown model", func(r *Request) { r.Model = "nope" }, 1, graph.IsNotFound},
		{"model is audio", func(r *Request) { r.Model = "src" }, 1, graph.IsValidation},
		{"variation without source", func(r *Request) { r.Mode = "variation" }, 1, graph.IsValidation},
		{"variation with unknown source", func(r *Request) { r.Mode = "variation"; r.Source = "ghost" }, 1, graph.IsNotFound},
		{"variation from model", func(r *Request) { r.Mode = "variation"; r.Source = "dd" }, 1, graph.IsValidation},
		{"noise above one", func(r *Request) { r.Mode = "variation"; r.Source = "src"; r.NoiseLevel = 1.5 }, 1, graph.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := fixture(t)
			req := generationRequest()
			tt.mutate(&req)

			_, err := New(st, nil, nil).LogInference(context.Background(), req, samples(tt.samples))
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
			assert.Equal(t, 2, st.Len())
			assert.Empty(t, st.Edges())
			_, statErr := os.Stat(filepath.Join(st.Root(), AudioDir))
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestLogInference_EmptySample(t *testing.T) {
	st := fixture(t)
	bad := []audio.Buffer{{SampleRate: 8000, Channels: [][]float32{{}}}}
	_, err := New(st, nil, nil).LogInference(context.Background(), generationRequest(), bad)
	assert.True(t, graph.IsValidation(err))
	assert.Equal(t, 2, st.Len())
}

func TestLogInference_BatchCollision(t *testing.T) {
	st := fixture(t)
	l := New(st, nil, nil)
	_, err := l.LogInference(context.Background(), generationRequest(), samples(1))
	require.NoError(t, err)

	before := st.Len()
	_, err = l.LogInference(context.Background(), generationRequest(), samples(1))
	assert.True(t, graph.IsValidation(err))
	assert.Equal(t, before, st.Len())
}

func TestBatchAlias(t *testing.T) {
	assert.Equal(t, "dd_1700000000", BatchAlias("dd", "batch_dd_7_1700000000"))
	assert.Equal(t, "sta_1700000000", BatchAlias("stable", "batch_stable_1_1700000000"))
	assert.Equal(t, "ü_b", BatchAlias("ü", "b"))
}
