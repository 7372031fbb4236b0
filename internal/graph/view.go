package graph

import (
	"fmt"

	"github.com/roach88/stemma/internal/element"
)

// ViewMode selects a JSON projection of the graph.
type ViewMode string

const (
	// ModeFull is every node and edge with all attributes.
	ModeFull ViewMode = "full"

	// ModeCluster is the audio nodes only, without parent back-references or
	// edges. Batch membership is re-derived from tsne coordinates.
	ModeCluster ViewMode = "cluster"
)

// ParseViewMode accepts the mode names used by callers. "batch" is the
// historical name of the full view.
func ParseViewMode(s string) (ViewMode, error) {
	switch s {
	case "", "full", "batch":
		return ModeFull, nil
	case "cluster", "clusterOnly", "cluster-only":
		return ModeCluster, nil
	default:
		return "", fmt.Errorf("unknown view mode %q", s)
	}
}

// View is the cytoscape node-link JSON shape of a graph.
type View struct {
	Data       []any    `json:"data"`
	Directed   bool     `json:"directed"`
	Multigraph bool     `json:"multigraph"`
	Elements   Elements `json:"elements"`
}

// Elements holds the node and edge lists of a View.
type Elements struct {
	Nodes []ViewItem `json:"nodes"`
	Edges []ViewItem `json:"edges"`
}

// ViewItem wraps one node or edge attribute map.
type ViewItem struct {
	Data map[string]any `json:"data"`
}

// View projects the graph in the requested mode.
func (g *Graph) View(mode ViewMode) View {
	v := View{
		Data:     []any{},
		Directed: true,
		Elements: Elements{Nodes: []ViewItem{}, Edges: []ViewItem{}},
	}

	for _, name := range g.order {
		el := g.nodes[name]
		if mode == ModeCluster && el.Kind() != element.KindAudio {
			continue
		}
		data := el.Attributes()
		if mode == ModeCluster {
			delete(data, "parent")
		}
		data["id"] = name
		data["value"] = name
		if _, ok := data["name"]; !ok {
			data["name"] = name
		}
		v.Elements.Nodes = append(v.Elements.Nodes, ViewItem{Data: data})
	}

	if mode == ModeCluster {
		return v
	}
	for _, k := range g.edgeOrder {
		data := g.edges[k].Attributes()
		data["source"] = k.source
		data["target"] = k.target
		v.Elements.Edges = append(v.Elements.Edges, ViewItem{Data: data})
	}
	return v
}

// FromView rebuilds a graph from its full cytoscape view.
func FromView(v View) (*Graph, error) {
	g := New()
	for i, item := range v.Elements.Nodes {
		data := item.Data
		name, _ := data["value"].(string)
		if name == "" {
			name, _ = data["id"].(string)
		}
		if name == "" {
			return nil, fmt.Errorf("node %d: missing id", i)
		}
		attrs := make(map[string]any, len(data))
		for k, val := range data {
			switch k {
			case "id", "value":
				continue
			}
			attrs[k] = val
		}
		if typ, _ := attrs["type"].(string); typ != string(element.KindModel) && typ != string(element.KindAudio) {
			// Only artifacts carry a name attribute; elsewhere it mirrors the id.
			delete(attrs, "name")
		}
		el, err := element.Decode(attrs)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", name, err)
		}
		if err := g.AddNode(name, el); err != nil {
			return nil, err
		}
	}

	for i, item := range v.Elements.Edges {
		data := item.Data
		source, _ := data["source"].(string)
		target, _ := data["target"].(string)
		if source == "" || target == "" {
			return nil, fmt.Errorf("edge %d: missing source or target", i)
		}
		attrs := make(map[string]any, len(data))
		for k, val := range data {
			switch k {
			case "source", "target", "id":
				continue
			}
			attrs[k] = val
		}
		e, err := decodeEdge(source, target, attrs)
		if err != nil {
			return nil, fmt.Errorf("edge %s -> %s: %w", source, target, err)
		}
		if err := g.AddEdge(e); err != nil {
			return nil, err
		}
	}
	return g, nil
}
