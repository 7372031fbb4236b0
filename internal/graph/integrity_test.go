package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckIntegrity_CleanFixture(t *testing.T) {
	g := New()
	buildFixture(t, g)
	assert.Empty(t, g.CheckIntegrity())
	assert.NoError(t, integrityError("check", "", g.CheckIntegrity()))
}

func TestCheckIntegrity_Violations(t *testing.T) {
	tests := []struct {
		name  string
		build func(t *testing.T, g *Graph)
		node  string
		msg   string
	}{
		{
			name: "orphan batch",
			build: func(t *testing.T, g *Graph) {
				require.NoError(t, g.AddNode("b", newBatch("b")))
			},
			node: "b",
			msg:  "batch has no producing edge",
		},
		{
			name: "missing parent",
			build: func(t *testing.T, g *Graph) {
				require.NoError(t, g.AddNode("a", newAudio("a.wav", "gone", 0)))
			},
			node: "a",
			msg:  `parent "gone" does not exist`,
		},
		{
			name: "parent is a model",
			build: func(t *testing.T, g *Graph) {
				require.NoError(t, g.AddNode("m", newModel("m")))
				require.NoError(t, g.AddNode("a", newAudio("a.wav", "m", 0)))
			},
			node: "a",
			msg:  `parent "m" is a model node`,
		},
		{
			name: "two producing edges",
			build: func(t *testing.T, g *Graph) {
				require.NoError(t, g.AddNode("m1", newModel("m1")))
				require.NoError(t, g.AddNode("m2", newModel("m2")))
				require.NoError(t, g.AddNode("b", newBatch("b")))
				require.NoError(t, g.AddEdge(generationEdge("m1", "b")))
				require.NoError(t, g.AddEdge(generationEdge("m2", "b")))
			},
			node: "b",
			msg:  "batch has 2 producing edges",
		},
		{
			name: "audio source from a model",
			build: func(t *testing.T, g *Graph) {
				require.NoError(t, g.AddNode("m", newModel("m")))
				require.NoError(t, g.AddNode("m2", newModel("m2")))
				require.NoError(t, g.AddNode("b", newBatch("b")))
				require.NoError(t, g.AddEdge(generationEdge("m", "b")))
				require.NoError(t, g.AddEdge(&Edge{Source: "m2", Target: "b", Type: EdgeAudioSource}))
			},
			node: "b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			tt.build(t, g)
			vs := g.CheckIntegrity()
			require.NotEmpty(t, vs)
			assert.Equal(t, tt.node, vs[0].Node)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, vs[0].Message)
			}
			assert.True(t, IsIntegrity(integrityError("check", "", vs)))
		})
	}
}
