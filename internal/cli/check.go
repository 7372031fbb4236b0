package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/stemma/internal/graph"
)

// CheckResult holds integrity check results.
type CheckResult struct {
	Valid      bool              `json:"valid"`
	Violations []graph.Violation `json:"violations,omitempty"`
}

func (r CheckResult) RenderText(w io.Writer) {
	if r.Valid {
		fmt.Fprintln(w, "✓ Graph is consistent")
		return
	}
	for _, v := range r.Violations {
		fmt.Fprintf(w, "✗ %s\n", v)
	}
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check graph invariants",
		Long: `Check that every sample's parent exists, that every batch has exactly
one producing edge and that edges connect the right kinds of node. Exits 1
when a violation is found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			sess, err := rootOpts.openSession()
			if err != nil {
				return fail(f, "failed to open project", err)
			}
			var vs []graph.Violation
			_ = sess.View(func(st *graph.Store) error {
				vs = st.CheckIntegrity()
				return nil
			})
			res := CheckResult{Valid: len(vs) == 0, Violations: vs}
			if err := f.Success(res); err != nil {
				return err
			}
			if !res.Valid {
				return NewExitError(ExitFailure, fmt.Sprintf("%s: %d integrity violation(s)", ErrCodeIntegrity, len(vs)))
			}
			return nil
		},
	}
}
