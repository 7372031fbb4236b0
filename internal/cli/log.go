package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/stemma/internal/audio"
	"github.com/roach88/stemma/internal/graph"
	"github.com/roach88/stemma/internal/inference"
)

type inferenceResult struct {
	Batch   string   `json:"batch"`
	Alias   string   `json:"alias"`
	Samples []string `json:"samples"`
	Paths   []string `json:"paths"`
}

func (r inferenceResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "✓ Logged %s (%s)\n", r.Batch, r.Alias)
	for i, s := range r.Samples {
		fmt.Fprintf(w, "  %s  %s\n", s, r.Paths[i])
	}
}

func newInferenceResult(res *inference.Result) inferenceResult {
	return inferenceResult{Batch: res.Batch, Alias: res.BatchAlias, Samples: res.Samples, Paths: res.Paths}
}

// addRequestFlags binds the generation parameters shared by log and generate.
func addRequestFlags(cmd *cobra.Command, req *inference.Request) {
	cmd.Flags().StringVar(&req.Mode, "mode", "generation", "generation or variation")
	cmd.Flags().IntVar(&req.SampleRate, "sample-rate", 0, "output sample rate (default from config)")
	cmd.Flags().IntVar(&req.ChunkSize, "chunk-size", 65536, "samples per output")
	cmd.Flags().IntVar(&req.BatchSize, "batch-size", 1, "outputs per call")
	cmd.Flags().Int64Var(&req.Seed, "seed", 0, "sampling seed")
	cmd.Flags().IntVar(&req.Steps, "steps", 100, "diffusion steps")
	cmd.Flags().StringVar(&req.Sampler, "sampler", "dpmpp-3m-sde", "sampler name")
	cmd.Flags().StringVar(&req.Scheduler, "scheduler", "v-diffusion", "noise scheduler name")
	cmd.Flags().StringVar(&req.Source, "source", "", "source audio node (variation)")
	cmd.Flags().Float64Var(&req.NoiseLevel, "noise", 0, "variation noise level in [0,1]")
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	var req inference.Request
	cmd := &cobra.Command{
		Use:   "log <model> <wav-file>...",
		Short: "Record externally generated samples as a new batch",
		Long: `Record one generation or variation call: a batch node, the edge from
the producing model and one audio node per WAV file. The files are copied
into the project's audio tree.

Example:
  stemma -p drums log dd out_1.wav out_2.wav --seed 7 --steps 100
  stemma -p drums log dd var.wav --mode variation --source found_... --noise 0.3`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			req.Model = args[0]
			if req.SampleRate == 0 {
				req.SampleRate = rootOpts.Config.Audio.SampleRate
			}
			if !cmd.Flags().Changed("batch-size") {
				req.BatchSize = len(args) - 1
			}

			codec := audio.WAVCodec{}
			samples := make([]audio.Buffer, 0, len(args)-1)
			for _, path := range args[1:] {
				buf, err := codec.Load(cmd.Context(), path, req.SampleRate)
				if err != nil {
					return fail(f, "failed to read sample", graph.NotFound("log", path, err.Error()))
				}
				f.Progress("loaded %s: %d frame(s), %d channel(s)", path, buf.Frames(), buf.NumChannels())
				samples = append(samples, buf)
			}

			sess, err := rootOpts.openSession()
			if err != nil {
				return fail(f, "failed to open project", err)
			}
			hasher, err := rootOpts.hasher()
			if err != nil {
				return fail(f, "failed to set up hashing", err)
			}
			var res *inference.Result
			err = sess.Mutate(cmd.Context(), func(st *graph.Store) error {
				var err error
				res, err = inference.New(st, hasher, rootOpts.logger()).LogInference(cmd.Context(), req, samples)
				return err
			})
			if err != nil {
				return fail(f, "failed to log inference", err)
			}
			return f.Success(newInferenceResult(res))
		},
	}
	addRequestFlags(cmd, &req)
	return cmd
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	var req inference.Request
	cmd := &cobra.Command{
		Use:   "generate <model>",
		Short: "Verify a model, run its backend and log the output",
		Long: `Load the model's checkpoint, check it against the stored UID and run
its generation backend. A UID mismatch aborts before anything is generated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			req.Model = args[0]
			if req.SampleRate == 0 {
				req.SampleRate = rootOpts.Config.Audio.SampleRate
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
				return fail(f, "failed to set up hashing", err)
			}
			var res *inference.Result
			err = sess.Mutate(cmd.Context(), func(st *graph.Store) error {
				var err error
				res, err = inference.New(st, hasher, rootOpts.logger()).Generate(cmd.Context(), runner, req)
				return err
			})
			if err != nil {
				return fail(f, "generation failed", err)
			}
			return f.Success(newInferenceResult(res))
		},
	}
	addRequestFlags(cmd, &req)
	return cmd
}
