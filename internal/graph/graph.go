package graph

import (
	"fmt"
	"path/filepath"

	"github.com/roach88/stemma/internal/element"
)

type edgeKey struct {
	source string
	target string
}

// Graph is the in-memory provenance graph. Node and edge iteration follows
// insertion order so views and saved state are deterministic.
type Graph struct {
	nodes     map[string]element.Element
	order     []string
	edges     map[edgeKey]*Edge
	edgeOrder []edgeKey
	paths     map[string]string // artifact path -> node name
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]element.Element),
		edges: make(map[edgeKey]*Edge),
		paths: make(map[string]string),
	}
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.order) }

// HasNode reports whether name exists.
func (g *Graph) HasNode(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// Node returns the element stored under name.
func (g *Graph) Node(name string) (element.Element, bool) {
	el, ok := g.nodes[name]
	return el, ok
}

// Nodes returns node names in insertion order, restricted to kinds when given.
func (g *Graph) Nodes(kinds ...element.Kind) []string {
	out := make([]string, 0, len(g.order))
	for _, name := range g.order {
		if len(kinds) == 0 || kindIn(g.nodes[name].Kind(), kinds) {
			out = append(out, name)
		}
	}
	return out
}

func kindIn(k element.Kind, kinds []element.Kind) bool {
	for _, want := range kinds {
		if k == want {
			return true
		}
	}
	return false
}

// Children returns the audio nodes whose parent is name.
func (g *Graph) Children(name string) []string {
	var out []string
	for _, n := range g.order {
		if a, ok := g.nodes[n].(*element.Audio); ok && a.Parent == name {
			out = append(out, n)
		}
	}
	return out
}

// Edge returns the edge from source to target.
func (g *Graph) Edge(source, target string) (*Edge, bool) {
	e, ok := g.edges[edgeKey{source, target}]
	return e, ok
}

// Edges returns every edge in insertion order.
func (g *Graph) Edges() []*Edge {
	out := make([]*Edge, 0, len(g.edgeOrder))
	for _, k := range g.edgeOrder {
		out = append(out, g.edges[k])
	}
	return out
}

// InEdges returns the edges targeting name.
func (g *Graph) InEdges(name string) []*Edge {
	var out []*Edge
	for _, k := range g.edgeOrder {
		if k.target == name {
			out = append(out, g.edges[k])
		}
	}
	return out
}

// OutEdges returns the edges leaving name.
func (g *Graph) OutEdges(name string) []*Edge {
	var out []*Edge
	for _, k := range g.edgeOrder {
		if k.source == name {
			out = append(out, g.edges[k])
		}
	}
	return out
}

// NodeByPath returns the artifact registered for path.
func (g *Graph) NodeByPath(path string) (string, bool) {
	name, ok := g.paths[filepath.Clean(path)]
	return name, ok
}

// AddNode inserts a new node. Names are unique and immutable; artifact paths
// must not collide with another artifact.
func (g *Graph) AddNode(name string, el element.Element) error {
	const op = "add node"
	if name == "" {
		return Invalid(op, name, "node name is required")
	}
	if el == nil {
		return Invalid(op, name, "element is required")
	}
	if _, exists := g.nodes[name]; exists {
		return Invalid(op, name, "node already exists")
	}
	if a := element.ArtifactOf(el); a != nil {
		if a.Name == "" {
			a.Name = name
		} else if a.Name != name {
			return Invalid(op, name, fmt.Sprintf("artifact name %q differs from node name", a.Name))
		}
	}
	if err := el.Validate(); err != nil {
		return wrapValidation(op, name, err)
	}
	if err := g.checkPath(op, name, el); err != nil {
		return err
	}
	g.nodes[name] = el
	g.order = append(g.order, name)
	g.indexPath(name, el)
	return nil
}

// replaceNode swaps the element of an existing node, keeping its position.
func (g *Graph) replaceNode(op, name string, el element.Element) error {
	old, ok := g.nodes[name]
	if !ok {
		return NotFound(op, name, "node not found")
	}
	if err := g.checkPath(op, name, el); err != nil {
		return err
	}
	g.unindexPath(name, old)
	g.nodes[name] = el
	g.indexPath(name, el)
	return nil
}

func (g *Graph) checkPath(op, name string, el element.Element) error {
	if !element.IsArtifact(el) {
		return nil
	}
	p := element.PathOf(el)
	if p == "" {
		return nil
	}
	if owner, ok := g.paths[filepath.Clean(p)]; ok && owner != name {
		return &Error{
			Code:    ErrCodePathCollision,
			Op:      op,
			Name:    name,
			Message: fmt.Sprintf("path %q already belongs to %q", p, owner),
		}
	}
	return nil
}

func (g *Graph) indexPath(name string, el element.Element) {
	if element.IsArtifact(el) {
		if p := element.PathOf(el); p != "" {
			g.paths[filepath.Clean(p)] = name
		}
	}
}

func (g *Graph) unindexPath(name string, el element.Element) {
	if p := element.PathOf(el); p != "" {
		if owner := g.paths[filepath.Clean(p)]; owner == name {
			delete(g.paths, filepath.Clean(p))
		}
	}
}

// AddEdge inserts a new edge. Both endpoints must exist and the ordered pair
// must not already be linked.
func (g *Graph) AddEdge(e *Edge) error {
	const op = "add edge"
	if e == nil {
		return Invalid(op, "", "edge is required")
	}
	if _, err := parseEdgeType(string(e.Type)); err != nil {
		return wrapValidation(op, e.Target, err)
	}
	if !g.HasNode(e.Source) {
		return NotFound(op, e.Source, "edge source not found")
	}
	if !g.HasNode(e.Target) {
		return NotFound(op, e.Target, "edge target not found")
	}
	k := edgeKey{e.Source, e.Target}
	if _, exists := g.edges[k]; exists {
		return Invalid(op, e.Target, fmt.Sprintf("edge %s -> %s already exists", e.Source, e.Target))
	}
	g.edges[k] = e
	g.edgeOrder = append(g.edgeOrder, k)
	return nil
}

// removeNodes deletes the named nodes and every incident edge in one step.
func (g *Graph) removeNodes(names []string) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}

	order := g.order[:0:0]
	for _, n := range g.order {
		if drop[n] {
			g.unindexPath(n, g.nodes[n])
			delete(g.nodes, n)
			continue
		}
		order = append(order, n)
	}
	g.order = order

	edgeOrder := g.edgeOrder[:0:0]
	for _, k := range g.edgeOrder {
		if drop[k.source] || drop[k.target] {
			delete(g.edges, k)
			continue
		}
		edgeOrder = append(edgeOrder, k)
	}
	g.edgeOrder = edgeOrder
}
