package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/stemma/internal/graph"
	"github.com/roach88/stemma/internal/importer"
	"github.com/roach88/stemma/internal/project"
)

// NewSourceCommand groups external source commands.
func NewSourceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Track external audio directories",
	}
	cmd.AddCommand(newSourceAddCommand(rootOpts))
	cmd.AddCommand(newSourceRescanCommand(rootOpts))
	cmd.AddCommand(newSourceWatchCommand(rootOpts))
	return cmd
}

type scanResult struct {
	Source string   `json:"source"`
	Added  []string `json:"added"`
}

func (r scanResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "✓ %s: %d new audio file(s)\n", r.Source, len(r.Added))
	for _, a := range r.Added {
		fmt.Fprintf(w, "  + %s\n", a)
	}
}

func (o *RootOptions) newImporter(st *graph.Store) (*importer.Importer, error) {
	hasher, err := o.hasher()
	if err != nil {
		return nil, err
	}
	return importer.New(st, importer.Options{
		Hasher:  hasher,
		Logger:  o.logger(),
		Workers: o.Config.Projection.Workers,
	}), nil
}

func newSourceAddCommand(rootOpts *RootOptions) *cobra.Command {
	var alias string
	cmd := &cobra.Command{
		Use:   "add <dir>",
		Short: "Add an external directory and scan it for audio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			sess, err := rootOpts.openSession()
			if err != nil {
				return fail(f, "failed to open project", err)
			}
			var res scanResult
			err = sess.Mutate(cmd.Context(), func(st *graph.Store) error {
				im, err := rootOpts.newImporter(st)
				if err != nil {
					return err
				}
				res.Source, res.Added, err = im.AddExternalSource(cmd.Context(), args[0], alias)
				return err
			})
			if err != nil {
				return fail(f, "failed to add source", err)
			}
			return f.Success(res)
		},
	}
	cmd.Flags().StringVar(&alias, "alias", "", "label for the source")
	return cmd
}

func rescan(ctx context.Context, rootOpts *RootOptions, sess *project.Session, name string) (scanResult, error) {
	res := scanResult{Source: name}
	err := sess.Mutate(ctx, func(st *graph.Store) error {
		im, err := rootOpts.newImporter(st)
		if err != nil {
			return err
		}
		res.Added, err = im.ScanExternalSource(ctx, name)
		return err
	})
	return res, err
}

func newSourceRescanCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rescan <source>",
		Short: "Register audio files added to a source since the last scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			sess, err := rootOpts.openSession()
			if err != nil {
				return fail(f, "failed to open project", err)
			}
			res, err := rescan(cmd.Context(), rootOpts, sess, args[0])
			if err != nil {
				return fail(f, "failed to rescan source", err)
			}
			return f.Success(res)
		},
	}
}

func newSourceWatchCommand(rootOpts *RootOptions) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch <source>",
		Short: "Rescan a source whenever audio files change under it",
		Long: `Watch an external source directory and rescan it after each burst of
audio file changes. Runs until interrupted.

Example:
  stemma -p drums source watch external_1b4e28ba-2fa1-51d2-883f-0016d3cca427`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			sess, err := rootOpts.openSession()
			if err != nil {
				return fail(f, "failed to open project", err)
			}
			var dir string
			err = sess.View(func(st *graph.Store) error {
				im, err := rootOpts.newImporter(st)
				if err != nil {
					return err
				}
				dir, err = im.SourceDir(args[0])
				return err
			})
			if err != nil {
				return fail(f, "failed to resolve source", err)
			}

			w, err := importer.NewWatcher(dir, debounce, rootOpts.logger())
			if err != nil {
				return fail(f, "failed to watch source", err)
			}
			defer w.Close()

			// Use command's context if available (for testing), otherwise create one
			parentCtx := cmd.Context()
			if parentCtx == nil {
				parentCtx = context.Background()
			}
			ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			rootOpts.logger().Info("watching source", "source", args[0], "dir", dir)
			err = w.Run(ctx, func(ctx context.Context, paths []string) error {
				f.Progress("%d change(s) under %s, rescanning", len(paths), dir)
				res, err := rescan(ctx, rootOpts, sess, args[0])
				if err != nil {
					return err
				}
				if len(res.Added) > 0 {
					return f.Success(res)
				}
				return nil
			})
			if err != nil {
				return fail(f, "watch failed", err)
			}
			rootOpts.logger().Info("watch stopped", "source", args[0])
			return nil
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", importer.DefaultDebounce, "quiet period before rescanning")
	return cmd
}
