package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/stemma/internal/graph"
)

type removeResult struct {
	Removed []string `json:"removed"`
}

func (r removeResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "✓ Removed %d node(s)\n", len(r.Removed))
	for _, n := range r.Removed {
		fmt.Fprintf(w, "  - %s\n", n)
	}
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <node>",
		Short: "Remove a node and every node whose parent it is",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			sess, err := rootOpts.openSession()
			if err != nil {
				return fail(f, "failed to open project", err)
			}
			var removed []string
			err = sess.Mutate(cmd.Context(), func(st *graph.Store) error {
				var err error
				removed, err = st.RemoveElement(args[0])
				return err
			})
			if err != nil {
				return fail(f, "remove failed", err)
			}
			return f.Success(removeResult{Removed: removed})
		},
	}
}
