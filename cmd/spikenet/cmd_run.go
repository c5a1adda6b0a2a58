package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/nvandessel/spikenet/internal/config"
	"github.com/nvandessel/spikenet/internal/logging"
	"github.com/nvandessel/spikenet/internal/simulation"
	"github.com/nvandessel/spikenet/internal/store"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation",
		Long: `Build a random network and simulate it, writing sum_spikes.txt and
spikes.txt to the output directory.

Unset flags keep the values from the config file and environment.

Examples:
  spikenet run                        # Defaults: 12500 neurons, 2000 ms
  spikenet run -g 4.5 -f 0.9 -j 0.2   # Change the operating regime
  spikenet run --neurons 1000 --duration 200 --seed 7 --out /tmp/run7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger := newLogger(cmd, cfg)
			out := cmd.OutOrStdout()
			if !jsonOut {
				printParameters(out, cfg)
			}

			opts := []simulation.Option{
				simulation.WithOutputDir(cfg.Output.Dir),
				simulation.WithLogger(logger),
			}

			noArchive, _ := cmd.Flags().GetBool("no-archive")
			if cfg.Archive.Enabled && !noArchive {
				archivePath, err := cfg.ArchivePath()
				if err != nil {
					return err
				}
				runs, err := store.Open(archivePath)
				if err != nil {
					return fmt.Errorf("failed to open run archive: %w", err)
				}
				defer runs.Close()
				opts = append(opts, simulation.WithArchive(runs))
			}

			events := logging.NewEventLogger(cfg.Output.Dir, cfg.Logging.Level)
			defer events.Close()
			opts = append(opts, simulation.WithEvents(events))

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			result, err := simulation.NewRunner(cfg.Simulation, opts...).Run(ctx)
			if err != nil {
				return fmt.Errorf("simulation failed: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(out).Encode(result)
			}
			printResult(out, result)
			return nil
		},
	}

	cmd.Flags().Float64P("relative-inhibition", "g", 0, "Inhibitory spikes weigh -g*J")
	cmd.Flags().Float64P("ratio", "f", 0, "External to threshold frequency ratio of the background drive")
	cmd.Flags().Float64P("amplitude", "j", 0, "Excitatory spike amplitude J in mV")
	cmd.Flags().Int("neurons", 0, "Population size")
	cmd.Flags().Float64("duration", 0, "Simulated time in ms")
	cmd.Flags().Float64("dt", 0, "Integration step in ms")
	cmd.Flags().Uint64("seed", 0, "Random seed (0 derives one from the clock)")
	cmd.Flags().Int("observed", 0, "Number of units written to spikes.txt")
	cmd.Flags().String("out", "", "Output directory for the activity streams")
	cmd.Flags().Bool("no-archive", false, "Do not record the run in the archive")

	return cmd
}

// applyRunFlags copies explicitly set flags over the loaded configuration.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	sim := &cfg.Simulation

	nonNegative := []struct {
		name string
		dst  *float64
	}{
		{"relative-inhibition", &sim.RelativeInhibitoryAmplitude},
		{"ratio", &sim.NoiseRatio},
		{"amplitude", &sim.ExcitatoryAmplitude},
	}
	for _, f := range nonNegative {
		if !flags.Changed(f.name) {
			continue
		}
		v, _ := flags.GetFloat64(f.name)
		if !(v >= 0) || math.IsInf(v, 1) {
			return fmt.Errorf("-%s must be a non-negative number, got %g", flags.Lookup(f.name).Shorthand, v)
		}
		*f.dst = v
	}

	if flags.Changed("neurons") {
		sim.Neurons, _ = flags.GetInt("neurons")
	}
	if flags.Changed("duration") {
		sim.DurationMS, _ = flags.GetFloat64("duration")
	}
	if flags.Changed("dt") {
		sim.TimestepMS, _ = flags.GetFloat64("dt")
	}
	if flags.Changed("seed") {
		sim.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("observed") {
		sim.ObservedUnits, _ = flags.GetInt("observed")
	}
	if flags.Changed("out") {
		cfg.Output.Dir, _ = flags.GetString("out")
	}
	return nil
}

func printParameters(w io.Writer, cfg *config.Config) {
	sim := cfg.Simulation
	seed := "(from clock)"
	if sim.Seed != 0 {
		seed = fmt.Sprintf("%d", sim.Seed)
	}

	fmt.Fprintln(w, "Parameters:")
	fmt.Fprintf(w, "  neurons:   %d\n", sim.Neurons)
	fmt.Fprintf(w, "  g:         %g\n", sim.RelativeInhibitoryAmplitude)
	fmt.Fprintf(w, "  J:         %g mV\n", sim.ExcitatoryAmplitude)
	fmt.Fprintf(w, "  ratio:     %g\n", sim.NoiseRatio)
	fmt.Fprintf(w, "  dt:        %g ms\n", sim.TimestepMS)
	fmt.Fprintf(w, "  duration:  %g ms (%d steps)\n", sim.DurationMS, sim.Steps())
	fmt.Fprintf(w, "  seed:      %s\n", seed)
	fmt.Fprintf(w, "  output:    %s\n", cfg.Output.Dir)
	fmt.Fprintln(w)
}

func printResult(w io.Writer, r *simulation.Result) {
	fmt.Fprintf(w, "Run %s finished\n", r.RunID)
	fmt.Fprintf(w, "  initialization:  %v\n", r.InitDuration)
	fmt.Fprintf(w, "  simulation:      %v\n", r.RunDuration)
	fmt.Fprintf(w, "  total spikes:    %d\n", r.Summary.TotalSpikes)
	fmt.Fprintf(w, "  spikes per step: %.3f ± %.3f (peak %d at step %d)\n",
		r.Summary.MeanSpikes, r.Summary.StdSpikes, r.Summary.PeakSpikes, r.Summary.PeakStep)
	fmt.Fprintf(w, "  mean rate:       %.2f Hz\n", r.Summary.MeanRateHz)
	fmt.Fprintf(w, "  seed:            %d\n", r.Seed)
	fmt.Fprintf(w, "  streams:         %s, %s\n", r.AggregatePath, r.DetailPath)
	if !r.Archived {
		fmt.Fprintln(w, "  (not archived)")
	}
}
