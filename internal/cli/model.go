package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/stemma/internal/element"
	"github.com/roach88/stemma/internal/graph"
	"github.com/roach88/stemma/internal/importer"
)

// NewModelCommand groups model commands.
func NewModelCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Manage model checkpoints",
	}
	cmd.AddCommand(newModelImportCommand(rootOpts))
	return cmd
}

type modelResult struct {
	Name    string `json:"name"`
	Engine  string `json:"engine"`
	UID     string `json:"uid"`
	UIDType string `json:"uid_type"`
	Path    string `json:"path"`
}

func (r modelResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "✓ Imported model %s (%s)\n", r.Name, r.Engine)
	fmt.Fprintf(w, "  uid: %s [%s]\n", r.UID, r.UIDType)
	fmt.Fprintf(w, "  path: %s\n", r.Path)
}

func newModelImportCommand(rootOpts *RootOptions) *cobra.Command {
	var engineName, configPath string
	cmd := &cobra.Command{
		Use:   "import <name> <checkpoint>",
		Short: "Register a checkpoint as a model node",
		Long: `Load a checkpoint, compute its content UID and add it to the project.

Example:
  stemma -p drums model import dd ./models/dd.safetensors --model-config ./models/dd.json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			if engineName == "" {
				engineName = rootOpts.Config.DefaultEngine
			}
			sess, err := rootOpts.openSession()
			if err != nil {
				return fail(f, "failed to open project", err)
			}
			runner, err := rootOpts.runner()
			if err != nil {
				return fail(f, "failed to set up engines", err)
			}
			hasher, err := rootOpts.hasher()
			if err != nil {
				return fail(f, "failed to set up engines", err)
			}

			var m *element.Model
			err = sess.Mutate(cmd.Context(), func(st *graph.Store) error {
				im := importer.New(st, importer.Options{Runner: runner, Hasher: hasher, Logger: rootOpts.logger()})
				var err error
				m, err = im.ImportModel(cmd.Context(), engineName, args[0], args[1], configPath)
				return err
			})
			if err != nil {
				return fail(f, "failed to import model", err)
			}
			return f.Success(modelResult{Name: m.Name, Engine: m.Engine, UID: m.UID, UIDType: m.UIDType, Path: m.Path})
		},
	}
	cmd.Flags().StringVar(&engineName, "engine", "", "generation backend (default from config)")
	cmd.Flags().StringVar(&configPath, "model-config", "", "model config JSON")
	return cmd
}
