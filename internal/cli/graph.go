package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/stemma/internal/graph"
)

type viewResult struct {
	graph.View
}

func (r viewResult) RenderText(w io.Writer) {
	data, err := json.MarshalIndent(r.View, "", "  ")
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(w, string(data))
}

// NewGraphCommand creates the graph command.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the project graph as node-link JSON",
		Long: `Print the project graph. --mode full includes every node and edge;
--mode cluster prints only audio nodes, without their parent, for plotting
by t-SNE coordinates.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			m, err := graph.ParseViewMode(mode)
			if err != nil {
				return fail(f, "invalid mode", graph.Invalid("graph", mode, err.Error()))
			}
			sess, err := rootOpts.openSession()
			if err != nil {
				return fail(f, "failed to open project", err)
			}
			var view graph.View
			_ = sess.View(func(st *graph.Store) error {
				view = st.View(m)
				return nil
			})
			return f.Success(viewResult{view})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "full", "full|cluster")
	return cmd
}
