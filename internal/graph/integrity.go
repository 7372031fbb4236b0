package graph

import (
	"fmt"

	"github.com/roach88/stemma/internal/element"
)

// Violation is one broken cross-node invariant.
type Violation struct {
	Node    string
	Message string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Node, v.Message)
}

// CheckIntegrity reports every node violating a graph invariant:
//   - an audio parent must reference an existing batch or set
//   - a batch must have exactly one producing edge from a model
//   - producing edges must start at a model and end at a batch
//   - audio_source edges must start at an audio node and end at a batch
func (g *Graph) CheckIntegrity() []Violation {
	var out []Violation

	for _, name := range g.order {
		switch el := g.nodes[name].(type) {
		case *element.Audio:
			if el.Parent == "" {
				continue
			}
			parent, ok := g.nodes[el.Parent]
			if !ok {
				out = append(out, Violation{name, fmt.Sprintf("parent %q does not exist", el.Parent)})
				continue
			}
			if k := parent.Kind(); k != element.KindBatch && k != element.KindSet {
				out = append(out, Violation{name, fmt.Sprintf("parent %q is a %s node", el.Parent, k)})
			}
		case *element.Batch:
			producing := 0
			for _, e := range g.InEdges(name) {
				if e.Type.IsProducing() {
					producing++
				}
			}
			switch producing {
			case 0:
				out = append(out, Violation{name, "batch has no producing edge"})
			case 1:
			default:
				out = append(out, Violation{name, fmt.Sprintf("batch has %d producing edges", producing)})
			}
		}
	}

	for _, k := range g.edgeOrder {
		e := g.edges[k]
		src := g.nodes[k.source].Kind()
		dst := g.nodes[k.target].Kind()
		switch {
		case e.Type.IsProducing() && (src != element.KindModel || dst != element.KindBatch):
			out = append(out, Violation{k.target, fmt.Sprintf("%s edge from %s node %q to %s node", e.Type, src, k.source, dst)})
		case e.Type == EdgeAudioSource && (src != element.KindAudio || dst != element.KindBatch):
			out = append(out, Violation{k.target, fmt.Sprintf("audio_source edge from %s node %q to %s node", src, k.source, dst)})
		}
	}
	return out
}

// integrityError summarizes violations as an ErrCodeIntegrity error, or
// returns nil when there are none.
func integrityError(op, name string, vs []Violation) error {
	if len(vs) == 0 {
		return nil
	}
	return &Error{
		Code:    ErrCodeIntegrity,
		Op:      op,
		Name:    name,
		Message: fmt.Sprintf("%d integrity violation(s), first: %s", len(vs), vs[0]),
	}
}
