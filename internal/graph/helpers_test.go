package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/stemma/internal/element"
)

const fixtureTime = int64(100)

func fixedClock(sec int64) func() time.Time {
	return func() time.Time { return time.Unix(sec, 0) }
}

func newModel(name string) *element.Model {
	return &element.Model{
		Base: element.NewBase(element.KindModel, fixtureTime),
		Artifact: element.Artifact{
			UID: "abc123", UIDType: "XXH3_64", UIDVersion: "v1",
			Path: "models/" + name + ".safetensors",
		},
		Engine: "safetensors",
	}
}

func newBatch(alias string) *element.Batch {
	return &element.Batch{Base: element.NewBase(element.KindBatch, fixtureTime), Alias: alias}
}

func newAudio(path, parent string, index int) *element.Audio {
	return &element.Audio{
		Base:       element.NewBase(element.KindAudio, fixtureTime),
		Artifact:   element.Artifact{Path: path},
		Parent:     parent,
		BatchIndex: index,
	}
}

func generationEdge(model, batch string) *Edge {
	return &Edge{
		Source:  model,
		Target:  batch,
		Type:    EdgeGeneration,
		Created: fixtureTime,
		Generation: &GenerationParams{
			ModelName: model,
			ChunkSize: 32768,
			BatchSize: 2,
			Seed:      7,
			Steps:     100,
			Sampler:   "dpmpp-3m-sde",
			Scheduler: "v-diffusion",
		},
	}
}

// buildFixture populates g with one model, one batch of two samples and an
// unrelated found audio file.
func buildFixture(t *testing.T, g *Graph) {
	t.Helper()
	require.NoError(t, g.AddNode("dd", newModel("dd")))
	require.NoError(t, g.AddNode("batch_dd_7_100", newBatch("dd_batch")))
	require.NoError(t, g.AddEdge(generationEdge("dd", "batch_dd_7_100")))

	a1 := newAudio("audio/generation/dd/sample_dd_7_100_1.wav", "batch_dd_7_100", 1)
	a1.Alias = "dd_batch_1"
	a1.TSNE = []float64{0.5, -1}
	require.NoError(t, g.AddNode("sample_dd_7_100_1", a1))

	a2 := newAudio("audio/generation/dd/sample_dd_7_100_2.wav", "batch_dd_7_100", 2)
	a2.Alias = "dd_batch_2"
	require.NoError(t, g.AddNode("sample_dd_7_100_2", a2))

	require.NoError(t, g.AddNode("found", newAudio("/ext/found.wav", "", 0)))
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Create(t.TempDir(), "test", WithClock(fixedClock(1000)))
	require.NoError(t, err)
	return s
}
