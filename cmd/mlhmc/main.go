package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"mlhmc/app"
	"mlhmc/internal/config"
	"mlhmc/internal/container"
	"mlhmc/internal/report"
)

var codeVersion = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "mlhmc",
		Short: "Multilevel HMC ensemble generator for lattice field models",
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newSweepCmd(),
		newReportCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runFlags collects everything a single run needs; zero values defer to the
// environment-backed defaults.
type runFlags struct {
	dims      []int
	m2        float64
	lambda    float64
	h         float64
	nuPre     []int
	nuPost    []int
	gamma     int
	scheme    string
	steps     []int
	stepSizes []float64
	samples   int
	therm     int
	seed      int64
	out       string
	noExcel   bool
	noReport  bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntSliceVar(&f.dims, "dims", []int{32}, "Lattice extent per dimension (e.g. 32 or 16,16)")
	cmd.Flags().Float64Var(&f.m2, "m2", -0.5, "Bare mass squared")
	cmd.Flags().Float64Var(&f.lambda, "lambda", 1.0, "Quartic coupling")
	cmd.Flags().Float64Var(&f.h, "h", 0.0, "External field")
	cmd.Flags().IntSliceVar(&f.nuPre, "nu-pre", []int{2, 1}, "Pre-sweeps per level, finest first")
	cmd.Flags().IntSliceVar(&f.nuPost, "nu-post", []int{2, 1}, "Post-sweeps per level, finest first")
	cmd.Flags().IntVar(&f.gamma, "gamma", 1, "Coarse recursion repetition factor (1 = V-cycle)")
	cmd.Flags().StringVar(&f.scheme, "scheme", "linear", "Interpolation scheme: constant or linear")
	cmd.Flags().IntSliceVar(&f.steps, "steps", []int{10, 10}, "Leapfrog step count per level")
	cmd.Flags().Float64SliceVar(&f.stepSizes, "step-sizes", []float64{0.1, 0.1}, "Leapfrog step size per level")
	cmd.Flags().IntVar(&f.samples, "samples", 0, "Number of measurement samples (0 = DEFAULT_SAMPLES)")
	cmd.Flags().IntVar(&f.therm, "therm", -1, "Thermalization cycles (-1 = DEFAULT_THERM)")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "Random seed (0 = DEFAULT_SEED)")
	cmd.Flags().StringVar(&f.out, "out", "", "Output directory (default OUTPUT_DIR)")
	cmd.Flags().BoolVar(&f.noExcel, "no-excel", false, "Skip the xlsx workbook")
	cmd.Flags().BoolVar(&f.noReport, "no-report", false, "Skip the markdown/html report")
}

func (f *runFlags) request(cfg *config.Config) app.RunRequest {
	samples := f.samples
	if samples <= 0 {
		samples = cfg.Sampling.DefaultSamples
	}
	therm := f.therm
	if therm < 0 {
		therm = cfg.Sampling.DefaultTherm
	}
	seed := f.seed
	if seed == 0 {
		seed = cfg.Sampling.DefaultSeed
	}
	return app.RunRequest{
		Shape:          f.dims,
		M2:             f.m2,
		Lambda:         f.lambda,
		H:              f.h,
		NuPre:          f.nuPre,
		NuPost:         f.nuPost,
		Gamma:          f.gamma,
		Scheme:         f.scheme,
		Steps:          f.steps,
		StepSizes:      f.stepSizes,
		Samples:        samples,
		Thermalization: therm,
		Seed:           seed,
	}
}

func newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate one ensemble with the multilevel HMC hierarchy",
		Long: `Generate one ensemble of lattice field configurations.

The hierarchy has one level per entry of --nu-pre; each coarser lattice
halves every dimension of its parent. Results land in <out>/<run-id>/:
measurements, xlsx workbook, markdown/html report and the raw record.

Example: mlhmc run --dims 32,32 --m2 -0.8 --nu-pre 2,2,1 --nu-post 2,2,1 \
  --steps 10,10,10 --step-sizes 0.1,0.12,0.15 --gamma 2 --samples 5000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, c, err := setup(&flags)
			if err != nil {
				return err
			}
			defer c.Shutdown(cmd.Context())

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			result, err := c.RunService.Execute(ctx, flags.request(cfg))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	flags.register(cmd)
	return cmd
}

func newSweepCmd() *cobra.Command {
	var flags runFlags
	var param string
	var from, to float64
	var points, workers int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Scan one coupling over a range of independent chains",
		Long: `Run one independent chain per sweep point, scanning a coupling linearly.

Each point gets its own hierarchy and a disjoint random stream derived from
the base seed, so the sweep reproduces exactly regardless of --workers.

Example: mlhmc sweep --param m2 --from -1.2 --to -0.2 --points 11 --workers 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, c, err := setup(&flags)
			if err != nil {
				return err
			}
			defer c.Shutdown(cmd.Context())

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			result, err := c.SweepService.Execute(ctx, app.SweepRequest{
				Base:    flags.request(cfg),
				Param:   param,
				From:    from,
				To:      to,
				Points:  points,
				Workers: workers,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&param, "param", "m2", "Coupling to scan: m2, lambda or h")
	cmd.Flags().Float64Var(&from, "from", -1.0, "First value of the scan")
	cmd.Flags().Float64Var(&to, "to", 0.0, "Last value of the scan")
	cmd.Flags().IntVar(&points, "points", 5, "Number of sweep points")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent chains (0 = SWEEP_WORKERS)")
	return cmd
}

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [run-dir]",
		Short: "Rebuild the report files from a stored run directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			rec, err := report.ReadRecord(dir)
			if err != nil {
				return err
			}
			if err := report.WriteFiles(dir, rec); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rebuilt report for run %s in %s\n", rec.Manifest.RunID, dir)
			return nil
		},
	}
	return cmd
}

// setup loads configuration and builds the application container for one
// CLI invocation.
func setup(flags *runFlags) (*config.Config, *container.Container, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if flags.out != "" {
		cfg.Storage.OutputDir = flags.out
	}

	c, err := container.New(cfg, container.Options{
		CodeVersion: codeVersion,
		ExportExcel: !flags.noExcel,
		WriteReport: !flags.noReport,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, c, nil
}

// signalContext cancels the run on SIGINT/SIGTERM so a long chain can be
// stopped without corrupting already stored runs.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
