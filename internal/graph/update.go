package graph

import (
	"fmt"
	"strings"

	"github.com/roach88/stemma/internal/element"
)

// UpdateAttributes merges attrs into the attribute map of node name. Keys
// outside the node's typed field set are accepted and preserved. Renaming is
// not supported: the name attribute of an artifact cannot change.
func (s *Store) UpdateAttributes(name string, attrs map[string]any) error {
	const op = "update attributes"
	el, ok := s.Node(name)
	if !ok {
		return NotFound(op, name, "node not found")
	}
	updated, err := element.Merge(el, attrs)
	if err != nil {
		return wrapValidation(op, name, err)
	}
	if a := element.ArtifactOf(updated); a != nil && a.Name != name {
		return Invalid(op, name, "nodes cannot be renamed")
	}
	if err := s.replaceNode(op, name, updated); err != nil {
		return err
	}
	s.logger.Debug("attributes updated", "node", name, "keys", len(attrs))
	return nil
}

// BatchUpdate describes an update of a batch (or set) and its children.
type BatchUpdate struct {
	// Alias renames the batch when non-nil.
	Alias *string

	// ApplyChildAlias rewrites each child's alias as {Alias}_{batch_index}.
	ApplyChildAlias bool

	// Tags are merged into every child's tag set. Accepts a comma-separated
	// string or a list of strings.
	Tags any
}

// UpdateBatch renames a batch and optionally cascades the alias and tags to
// its child audio nodes. All changes are computed before any is applied.
func (s *Store) UpdateBatch(name string, upd BatchUpdate) error {
	const op = "update batch"
	el, ok := s.Node(name)
	if !ok {
		return NotFound(op, name, "node not found")
	}
	if k := el.Kind(); k != element.KindBatch && k != element.KindSet {
		return Invalid(op, name, fmt.Sprintf("%s node is not a batch", k))
	}

	tags, err := element.NormalizeTags(upd.Tags)
	if err != nil {
		return wrapValidation(op, name, err)
	}

	pending := make(map[string]element.Element)
	var order []string
	stage := func(n string, e element.Element) {
		if _, seen := pending[n]; !seen {
			order = append(order, n)
		}
		pending[n] = e
	}

	if upd.Alias != nil {
		if *upd.Alias == "" {
			return Invalid(op, name, "alias must not be empty")
		}
		updated, err := element.Merge(el, map[string]any{"alias": *upd.Alias})
		if err != nil {
			return wrapValidation(op, name, err)
		}
		stage(name, updated)
	}

	for _, child := range s.Children(name) {
		audio := s.nodes[child].(*element.Audio)
		next := *audio
		changed := false
		if upd.Alias != nil && upd.ApplyChildAlias {
			next.Alias = fmt.Sprintf("%s_%d", *upd.Alias, audio.BatchIndex)
			changed = true
		}
		if len(tags) > 0 {
			next.Tags = element.MergeTags(audio.Tags, tags)
			changed = true
		}
		if changed {
			stage(child, &next)
		}
	}

	for _, n := range order {
		if err := s.replaceNode(op, n, pending[n]); err != nil {
			return err
		}
	}
	s.logger.Debug("batch updated", "batch", name, "nodes_changed", len(order))
	return nil
}

// UpdateBatchAttrs is the attribute-map form of UpdateBatch. It understands
// alias, apply_child_alias and tags; any other key is merged into the batch
// node itself.
func (s *Store) UpdateBatchAttrs(name string, attrs map[string]any) error {
	const op = "update batch"
	var upd BatchUpdate
	rest := make(map[string]any)
	for k, v := range attrs {
		switch k {
		case "alias":
			alias, ok := v.(string)
			if !ok {
				return Invalid(op, name, "alias must be a string")
			}
			upd.Alias = &alias
		case "apply_child_alias":
			apply, ok := v.(bool)
			if !ok {
				return Invalid(op, name, "apply_child_alias must be a boolean")
			}
			upd.ApplyChildAlias = apply
		case "tags":
			upd.Tags = v
		default:
			rest[k] = v
		}
	}

	if len(rest) > 0 {
		el, ok := s.Node(name)
		if !ok {
			return NotFound(op, name, "node not found")
		}
		// Validate the extra keys up front so a bad map changes nothing.
		if _, err := element.Merge(el, rest); err != nil {
			return wrapValidation(op, name, err)
		}
	}
	if err := s.UpdateBatch(name, upd); err != nil {
		return err
	}
	if len(rest) > 0 {
		return s.UpdateAttributes(name, rest)
	}
	return nil
}

// RemoveElement deletes node name and every node whose parent is name,
// together with all incident edges. Returns the removed names. A node that
// produced a batch is refused while the batch exists, since the batch would
// lose its producing edge.
func (s *Store) RemoveElement(name string) ([]string, error) {
	const op = "remove element"
	if !s.HasNode(name) {
		return nil, NotFound(op, name, "node not found")
	}
	var produced []string
	for _, e := range s.OutEdges(name) {
		if e.Type.IsProducing() {
			produced = append(produced, e.Target)
		}
	}
	if len(produced) > 0 {
		return nil, Invalid(op, name, fmt.Sprintf("node produced %d batch(es), remove them first: %s",
			len(produced), strings.Join(produced, ", ")))
	}
	removed := append([]string{name}, s.Children(name)...)
	s.removeNodes(removed)
	s.logger.Debug("element removed", "node", name, "removed", len(removed))
	return removed, nil
}
