package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/stemma/internal/exporter"
	"github.com/roach88/stemma/internal/graph"
)

type exportResult struct {
	Path  string `json:"path"`
	Files int    `json:"files"`
}

func (r exportResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "✓ Exported %d file(s) to %s\n", r.Files, r.Path)
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export <export-name> <node>...",
		Short: "Copy artifact files into the export directory",
		Long: `Copy the files of the named nodes into the project's export target.
One node is written as <export-name><ext>; several go into a folder named
<export-name>. Every node is resolved before anything is copied.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			sess, err := rootOpts.openSession()
			if err != nil {
				return fail(f, "failed to open project", err)
			}
			var path string
			err = sess.View(func(st *graph.Store) error {
				var err error
				path, err = exporter.New(st, rootOpts.logger()).Export(args[1:], args[0])
				return err
			})
			if err != nil {
				return fail(f, "export failed", err)
			}
			return f.Success(exportResult{Path: path, Files: len(args) - 1})
		},
	}
}
