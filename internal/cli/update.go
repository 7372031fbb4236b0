package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/stemma/internal/graph"
)

type updateResult struct {
	Node       string         `json:"node"`
	Attributes map[string]any `json:"attributes"`
}

func (r updateResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "✓ Updated %s\n", r.Node)
}

// stringKeys are typed string attributes. Their values are taken verbatim so
// alias=123 stays the string "123".
var stringKeys = map[string]bool{
	"alias":       true,
	"name":        true,
	"path":        true,
	"parent":      true,
	"engine":      true,
	"config_path": true,
	"uid":         true,
	"uid_type":    true,
	"uid_version": true,
}

// parseAssignments turns key=value arguments into an attribute map. Values
// are read as JSON when they parse and as plain strings otherwise; null
// removes the key.
func parseAssignments(args []string) (map[string]any, error) {
	attrs := make(map[string]any, len(args))
	for _, a := range args {
		key, raw, ok := strings.Cut(a, "=")
		if !ok || key == "" {
			return nil, graph.Invalid("update", a, "expected key=value")
		}
		var v any
		switch {
		case raw == "null":
		case stringKeys[key]:
			v = raw
		default:
			if err := json.Unmarshal([]byte(raw), &v); err != nil {
				v = raw
			}
		}
		attrs[key] = v
	}
	return attrs, nil
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update <node> <key=value>...",
		Short: "Merge attributes into a node",
		Long: `Merge attributes into a node. Values are parsed as JSON when possible,
except for string fields such as alias and path, which are taken verbatim.
null removes a key.

Example:
  stemma -p drums update dd alias=diffusion tags=kick,808
  stemma -p drums update sample_x 'tags=["keep"]' note=null`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			attrs, err := parseAssignments(args[1:])
			if err != nil {
				return fail(f, "invalid attributes", err)
			}
			sess, err := rootOpts.openSession()
			if err != nil {
				return fail(f, "failed to open project", err)
			}
			var out map[string]any
			err = sess.Mutate(cmd.Context(), func(st *graph.Store) error {
				if err := st.UpdateAttributes(args[0], attrs); err != nil {
					return err
				}
				el, _ := st.Node(args[0])
				out = el.Attributes()
				return nil
			})
			if err != nil {
				return fail(f, "update failed", err)
			}
			return f.Success(updateResult{Node: args[0], Attributes: out})
		},
	}
}

// NewUpdateBatchCommand creates the update-batch command.
func NewUpdateBatchCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		alias      string
		childAlias bool
		tags       string
	)
	cmd := &cobra.Command{
		Use:   "update-batch <batch>",
		Short: "Rename a batch and cascade alias or tags to its samples",
		Long: `Rename a batch or set. With --apply-child-alias every child sample is
renamed <alias>_<batch_index>; --tags merges into every child's tags.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			var upd graph.BatchUpdate
			if cmd.Flags().Changed("alias") {
				upd.Alias = &alias
			}
			upd.ApplyChildAlias = childAlias
			if tags != "" {
				upd.Tags = tags
			}
			sess, err := rootOpts.openSession()
			if err != nil {
				return fail(f, "failed to open project", err)
			}
			var children []string
			err = sess.Mutate(cmd.Context(), func(st *graph.Store) error {
				if err := st.UpdateBatch(args[0], upd); err != nil {
					return err
				}
				children = st.Children(args[0])
				return nil
			})
			if err != nil {
				return fail(f, "update failed", err)
			}
			return f.Success(updateResult{Node: args[0], Attributes: map[string]any{"children": children}})
		},
	}
	cmd.Flags().StringVar(&alias, "alias", "", "new batch alias")
	cmd.Flags().BoolVar(&childAlias, "apply-child-alias", false, "rename child samples after the batch")
	cmd.Flags().StringVar(&tags, "tags", "", "comma-separated tags to add to every child")
	return cmd
}
