package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/stemma/internal/graph"
)

type setResult struct {
	Set     string   `json:"set"`
	Alias   string   `json:"alias"`
	Samples []string `json:"samples"`
}

func (r setResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "✓ Created set %s (%s) with %d file(s)\n", r.Set, r.Alias, len(r.Samples))
}

// NewImportSetCommand creates the import-set command.
func NewImportSetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import-set <alias> <audio-file>...",
		Short: "Group existing audio files under a new set node",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			sess, err := rootOpts.openSession()
			if err != nil {
				return fail(f, "failed to open project", err)
			}
			res := setResult{Alias: args[0]}
			err = sess.Mutate(cmd.Context(), func(st *graph.Store) error {
				im, err := rootOpts.newImporter(st)
				if err != nil {
					return err
				}
				res.Set, res.Samples, err = im.ImportAudioSet(cmd.Context(), args[0], args[1:])
				return err
			})
			if err != nil {
				return fail(f, "failed to import set", err)
			}
			return f.Success(res)
		},
	}
}
