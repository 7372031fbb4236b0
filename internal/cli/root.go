package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/stemma/internal/config"
	"github.com/roach88/stemma/internal/engine"
	"github.com/roach88/stemma/internal/graph"
	"github.com/roach88/stemma/internal/metrics"
	"github.com/roach88/stemma/internal/project"
	"github.com/roach88/stemma/internal/uid"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Project    string

	// Resolved in PersistentPreRunE.
	Config config.Config
	Logger *slog.Logger

	// GraphOptions are appended when opening projects (for testing).
	GraphOptions []graph.Option

	// Registry overrides the engine registry (for testing).
	Registry *engine.Registry
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the stemma CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stemma",
		Short: "stemma - provenance graph for generative audio",
		Long: `Track where generated audio comes from: which model produced which
batch of samples, under what parameters, and from which source audio.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			opts.Config = cfg

			// Configure logging based on config and verbose flag
			logLevel := cfg.SlogLevel()
			if opts.Verbose {
				logLevel = slog.LevelDebug
			}
			handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: logLevel,
			})
			opts.Logger = slog.New(handler)
			slog.SetDefault(opts.Logger)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return metrics.WriteTextfile(opts.Config.MetricsTextfile)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "stemma.yaml", "path to config file")
	cmd.PersistentFlags().StringVarP(&opts.Project, "project", "p", "", "project name or directory")

	// Add subcommands
	cmd.AddCommand(NewProjectCommand(opts))
	cmd.AddCommand(NewModelCommand(opts))
	cmd.AddCommand(NewSourceCommand(opts))
	cmd.AddCommand(NewImportSetCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))
	cmd.AddCommand(NewGenerateCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewUpdateBatchCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewGraphCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// projectDir resolves a project argument: paths (absolute, or starting with
// ".") are used as given, bare names live under the projects directory.
func (o *RootOptions) projectDir(name string) string {
	if filepath.IsAbs(name) || strings.HasPrefix(name, ".") || strings.ContainsRune(name, filepath.Separator) {
		return filepath.Clean(name)
	}
	return filepath.Join(o.Config.ProjectsDir, name)
}

func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// openSession opens the project named by --project.
func (o *RootOptions) openSession() (*project.Session, error) {
	if o.Project == "" {
		return nil, graph.Invalid("open", "", "no project selected: pass --project")
	}
	return project.Open(o.projectDir(o.Project), o.logger(), o.GraphOptions...)
}

func (o *RootOptions) hasher() (uid.Generator, error) {
	return uid.New(o.Config.UIDAlgorithm)
}

func (o *RootOptions) runner() (*engine.Runner, error) {
	h, err := o.hasher()
	if err != nil {
		return nil, err
	}
	reg := o.Registry
	if reg == nil {
		reg = engine.DefaultRegistry()
	}
	return engine.NewRunner(reg, h, o.logger()), nil
}
