package graph

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// normalizeJSON passes v through encoding/json so typed and decoded values
// compare equal.
func normalizeJSON(t *testing.T, v any) any {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	var out any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func assertGoldenView(t *testing.T, name string, v View) {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, append(data, '\n'))
}

func TestView_FullGolden(t *testing.T) {
	g := New()
	buildFixture(t, g)
	assertGoldenView(t, "view_full", g.View(ModeFull))
}

func TestView_ClusterGolden(t *testing.T) {
	g := New()
	buildFixture(t, g)
	assertGoldenView(t, "view_cluster", g.View(ModeCluster))
}

func TestView_ClusterStripsParentOnly(t *testing.T) {
	g := New()
	buildFixture(t, g)

	v := g.View(ModeCluster)
	require.Len(t, v.Elements.Nodes, 3)
	assert.Empty(t, v.Elements.Edges)
	for _, n := range v.Elements.Nodes {
		assert.Equal(t, "audio", n.Data["type"])
		assert.NotContains(t, n.Data, "parent")
	}

	// The graph itself keeps the back-reference.
	assert.Equal(t, []string{"sample_dd_7_100_1", "sample_dd_7_100_2"}, g.Children("batch_dd_7_100"))
}

func TestView_EmptyGraph(t *testing.T) {
	raw, err := json.Marshal(New().View(ModeFull))
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[],"directed":true,"multigraph":false,"elements":{"nodes":[],"edges":[]}}`, string(raw))
}

func TestFromView_RoundTrip(t *testing.T) {
	g := New()
	buildFixture(t, g)

	raw, err := json.Marshal(g.View(ModeFull))
	require.NoError(t, err)
	var v View
	require.NoError(t, json.Unmarshal(raw, &v))

	back, err := FromView(v)
	require.NoError(t, err)
	assert.Equal(t, normalizeJSON(t, g.View(ModeFull)), normalizeJSON(t, back.View(ModeFull)))
}

func TestFromView_Errors(t *testing.T) {
	cases := map[string]View{
		"node without id": {Elements: Elements{Nodes: []ViewItem{{Data: map[string]any{"type": "set", "alias": "s"}}}}},
		"bad node type":   {Elements: Elements{Nodes: []ViewItem{{Data: map[string]any{"id": "x", "type": "artifact"}}}}},
		"dangling edge": {Elements: Elements{
			Nodes: []ViewItem{{Data: map[string]any{"id": "s", "type": "set", "alias": "s"}}},
			Edges: []ViewItem{{Data: map[string]any{"source": "s", "target": "missing", "type": "audio_source"}}},
		}},
		"bad edge type": {Elements: Elements{
			Nodes: []ViewItem{
				{Data: map[string]any{"id": "a", "type": "set", "alias": "a"}},
				{Data: map[string]any{"id": "b", "type": "set", "alias": "b"}},
			},
			Edges: []ViewItem{{Data: map[string]any{"source": "a", "target": "b", "type": "batch_split"}}},
		}},
	}
	for name, v := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromView(v)
			assert.Error(t, err)
		})
	}
}

func TestParseViewMode(t *testing.T) {
	for in, want := range map[string]ViewMode{"": ModeFull, "batch": ModeFull, "full": ModeFull, "cluster": ModeCluster, "clusterOnly": ModeCluster} {
		got, err := ParseViewMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseViewMode("tree")
	assert.Error(t, err)
}
