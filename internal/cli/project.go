package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/stemma/internal/audio"
	"github.com/roach88/stemma/internal/cluster"
	"github.com/roach88/stemma/internal/element"
	"github.com/roach88/stemma/internal/featurecache"
	"github.com/roach88/stemma/internal/graph"
	"github.com/roach88/stemma/internal/project"
)

// NewProjectCommand groups project lifecycle commands.
func NewProjectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Create, list and inspect projects",
	}
	cmd.AddCommand(newProjectCreateCommand(rootOpts))
	cmd.AddCommand(newProjectListCommand(rootOpts))
	cmd.AddCommand(newProjectInfoCommand(rootOpts))
	cmd.AddCommand(newProjectTSNECommand(rootOpts))
	return cmd
}

// infoResult renders project.Info as text.
type infoResult project.Info

func (r infoResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Project:  %s\n", r.Name)
	fmt.Fprintf(w, "Root:     %s\n", r.Root)
	fmt.Fprintf(w, "Exports:  %s\n", r.ExportTarget)
	kinds := make([]string, 0, len(r.Nodes))
	for k := range r.Nodes {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-9s %d\n", k, r.Nodes[k])
	}
	fmt.Fprintf(w, "Edges:    %d\n", r.Edges)
	fmt.Fprintf(w, "Backups:  %d\n", r.Backups)
	for _, v := range r.Violations {
		fmt.Fprintf(w, "✗ %s\n", v)
	}
}

func newProjectCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var exportTarget string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty project",
		Long: `Create an empty project and write its state file.

A bare name is created under the configured projects directory; a path is
used as given.

Example:
  stemma project create drums
  stemma project create ./work/drums --export-target /tmp/exports`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			root := rootOpts.projectDir(args[0])
			sess, err := project.Create(root, filepath.Base(root), rootOpts.logger(), rootOpts.GraphOptions...)
			if err != nil {
				return fail(f, "failed to create project", err)
			}
			target := exportTarget
			if target == "" {
				target = rootOpts.Config.ExportDir
			}
			if target != "" {
				err := sess.Mutate(cmd.Context(), func(st *graph.Store) error {
					st.SetExportTarget(target)
					return nil
				})
				if err != nil {
					return fail(f, "failed to set export target", err)
				}
			}
			info, err := sess.Describe()
			if err != nil {
				return fail(f, "failed to describe project", err)
			}
			return f.Success(infoResult(info))
		},
	}
	cmd.Flags().StringVar(&exportTarget, "export-target", "", "export directory (default: <project>/exports)")
	return cmd
}

type listResult struct {
	Dir      string   `json:"dir"`
	Projects []string `json:"projects"`
}

func (r listResult) RenderText(w io.Writer) {
	if len(r.Projects) == 0 {
		fmt.Fprintf(w, "No projects in %s\n", r.Dir)
		return
	}
	for _, p := range r.Projects {
		fmt.Fprintln(w, p)
	}
}

func newProjectListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects in the projects directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			dir := rootOpts.Config.ProjectsDir
			names, err := project.List(dir)
			if err != nil {
				return fail(f, "failed to list projects", err)
			}
			return f.Success(listResult{Dir: dir, Projects: names})
		},
	}
}

func newProjectInfoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Summarize the selected project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			sess, err := rootOpts.openSession()
			if err != nil {
				return fail(f, "failed to open project", err)
			}
			info, err := sess.Describe()
			if err != nil {
				return fail(f, "failed to describe project", err)
			}
			return f.Success(infoResult(info))
		},
	}
}

type tsneResult struct {
	Samples    int               `json:"samples"`
	Projected  int               `json:"projected"`
	Perplexity float64           `json:"perplexity"`
	Failures   map[string]string `json:"failures,omitempty"`

	CacheEntries int `json:"cache_entries,omitempty"`
	CachePruned  int `json:"cache_pruned,omitempty"`
}

func (r tsneResult) RenderText(w io.Writer) {
	if r.Samples == 0 {
		fmt.Fprintln(w, "No audio nodes to project")
		return
	}
	fmt.Fprintf(w, "✓ Projected %d of %d samples (perplexity %g)\n", r.Projected, r.Samples, r.Perplexity)
	names := make([]string, 0, len(r.Failures))
	for n := range r.Failures {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "  skipped %s: %s\n", n, r.Failures[n])
	}
	if r.CacheEntries > 0 || r.CachePruned > 0 {
		fmt.Fprintf(w, "  feature cache: %d entr(ies), %d pruned\n", r.CacheEntries, r.CachePruned)
	}
}

func newProjectTSNECommand(rootOpts *RootOptions) *cobra.Command {
	var (
		opts    cluster.Options
		noCache bool
	)
	cmd := &cobra.Command{
		Use:   "tsne",
		Short: "Recompute t-SNE coordinates of every audio node",
		Long: `Extract a spectrogram feature vector for every audio node, project the
vectors with t-SNE and store the coordinates on each node. Files that cannot
be read are skipped and keep their previous coordinates.

Unset flags fall back to the projection section of the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			p := rootOpts.Config.Projection
			flags := cmd.Flags()
			if !flags.Changed("components") {
				opts.Components = p.Components
			}
			if !flags.Changed("perplexity") {
				opts.Perplexity = p.Perplexity
			}
			if !flags.Changed("iterations") {
				opts.Iterations = p.Iterations
			}
			if !flags.Changed("workers") {
				opts.Workers = p.Workers
			}
			if !flags.Changed("seed") {
				opts.Seed = p.Seed
			}

			sess, err := rootOpts.openSession()
			if err != nil {
				return fail(f, "failed to open project", err)
			}

			a := rootOpts.Config.Audio
			spectro := audio.NewSpectrogramExtractor(a.SampleRate, a.WindowSamples, a.FFTSize, a.HopSize)
			var (
				fx    cluster.FeatureExtractor = spectro
				cache *featurecache.Cache
			)
			if path := rootOpts.Config.FeatureCachePath(sess.Root()); path != "" && !noCache {
				cache, err = featurecache.Open(path)
				if err != nil {
					return fail(f, "failed to open feature cache", err)
				}
				defer cache.Close()
				signature := fmt.Sprintf("spectrogram/sr=%d/win=%d/fft=%d/hop=%d",
					a.SampleRate, a.WindowSamples, a.FFTSize, a.HopSize)
				fx = featurecache.NewExtractor(cache, spectro, signature, rootOpts.logger())
			}

			f.Progress("projecting to %d dimension(s), perplexity %g, %d iteration(s)",
				opts.Components, opts.Perplexity, opts.Iterations)
			var report *cluster.Report
			keep := map[string]bool{}
			err = sess.Mutate(cmd.Context(), func(st *graph.Store) error {
				for _, name := range st.Nodes(element.KindAudio) {
					if p, ok := st.ResolvePath(name); ok {
						keep[p] = true
					}
				}
				var err error
				report, err = cluster.New(st, nil, rootOpts.logger()).UpdateProjection(cmd.Context(), opts, fx)
				return err
			})
			if err != nil {
				return fail(f, "projection failed", err)
			}

			res := tsneResult{
				Samples:    report.Samples,
				Projected:  len(report.Projected),
				Perplexity: report.Perplexity,
			}
			if len(report.Failures) > 0 {
				res.Failures = make(map[string]string, len(report.Failures))
				for _, fl := range report.Failures {
					res.Failures[fl.Node] = fl.Err.Error()
				}
			}
			if cache != nil {
				// Entries of audio no longer in the graph are dropped; a
				// failure here never undoes the saved projection.
				ctx := cmd.Context()
				if res.CachePruned, err = cache.Prune(ctx, keep); err != nil {
					rootOpts.logger().Warn("feature cache prune failed", "error", err)
				}
				if res.CacheEntries, err = cache.Len(ctx); err != nil {
					rootOpts.logger().Warn("feature cache count failed", "error", err)
				}
			}
			return f.Success(res)
		},
	}
	d := cluster.DefaultOptions()
	cmd.Flags().IntVar(&opts.Components, "components", d.Components, "output dimensions")
	cmd.Flags().Float64Var(&opts.Perplexity, "perplexity", d.Perplexity, "t-SNE perplexity (clamped to samples-1)")
	cmd.Flags().IntVar(&opts.Iterations, "iterations", d.Iterations, "gradient descent iterations")
	cmd.Flags().IntVar(&opts.Workers, "workers", d.Workers, "parallel feature extractors (0 = GOMAXPROCS)")
	cmd.Flags().Int64Var(&opts.Seed, "seed", d.Seed, "random seed")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the feature cache")
	return cmd
}
