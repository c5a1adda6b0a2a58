package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/nvandessel/spikenet/internal/config"
	"github.com/nvandessel/spikenet/internal/simulation"
	"github.com/nvandessel/spikenet/internal/store"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect archived runs",
		Long: `List and inspect runs recorded in the archive (~/.spikenet/runs.db by default).

Examples:
  spikenet runs list --limit 5
  spikenet runs show 1b4e28ba-2fa1-11d2-883f-0016d3cca427`,
	}

	cmd.AddCommand(
		newRunsListCmd(),
		newRunsShowCmd(),
	)

	return cmd
}

// openArchive opens the run archive named by the configuration.
func openArchive(cfg *config.Config) (*store.RunStore, error) {
	path, err := cfg.ArchivePath()
	if err != nil {
		return nil, err
	}
	runs, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run archive: %w", err)
	}
	return runs, nil
}

func newRunsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			runs, err := openArchive(cfg)
			if err != nil {
				return err
			}
			defer runs.Close()

			records, err := runs.ListRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				if records == nil {
					records = []store.RunRecord{}
				}
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"runs":  records,
					"count": len(records),
				})
			}

			if len(records) == 0 {
				fmt.Fprintln(out, "No runs archived.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tCREATED\tNEURONS\tSTEPS\tSPIKES\tRATE (Hz)")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%.2f\n",
					r.ID, r.Status, r.CreatedAt.Local().Format(time.DateTime),
					r.Simulation.Neurons, r.Steps, r.Outcome.TotalSpikes, r.Outcome.MeanRateHz)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum number of runs (0 for all)")

	return cmd
}

func newRunsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one archived run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			showTotals, _ := cmd.Flags().GetBool("totals")
			ctx := cmd.Context()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			runs, err := openArchive(cfg)
			if err != nil {
				return err
			}
			defer runs.Close()

			record, err := runs.GetRun(ctx, args[0])
			if errors.Is(err, store.ErrRunNotFound) {
				return fmt.Errorf("run not found: %s", args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to get run: %w", err)
			}
			totals, err := runs.StepTotals(ctx, record.ID)
			if err != nil {
				return fmt.Errorf("failed to read step totals: %w", err)
			}
			summary := simulation.Summarize(totals, record.Simulation.Neurons, record.Simulation.TimestepMS)

			out := cmd.OutOrStdout()
			if jsonOut {
				payload := map[string]interface{}{
					"run":     record,
					"summary": summary,
				}
				if showTotals {
					payload["totals"] = totals
				}
				return json.NewEncoder(out).Encode(payload)
			}

			sim := record.Simulation
			fmt.Fprintf(out, "Run %s\n", record.ID)
			fmt.Fprintf(out, "  status:    %s\n", record.Status)
			fmt.Fprintf(out, "  created:   %s\n", record.CreatedAt.Local().Format(time.RFC3339))
			if record.Outcome.Error != "" {
				fmt.Fprintf(out, "  error:     %s\n", record.Outcome.Error)
			}
			fmt.Fprintf(out, "  neurons:   %d\n", sim.Neurons)
			fmt.Fprintf(out, "  g:         %g\n", sim.RelativeInhibitoryAmplitude)
			fmt.Fprintf(out, "  J:         %g mV\n", sim.ExcitatoryAmplitude)
			fmt.Fprintf(out, "  ratio:     %g\n", sim.NoiseRatio)
			fmt.Fprintf(out, "  dt:        %g ms\n", sim.TimestepMS)
			fmt.Fprintf(out, "  duration:  %g ms\n", sim.DurationMS)
			fmt.Fprintf(out, "  seed:      %d\n", sim.Seed)
			if record.OutputDir != "" {
				fmt.Fprintf(out, "  output:    %s\n", record.OutputDir)
			}
			fmt.Fprintf(out, "  steps:     %d of %d archived\n", summary.Steps, record.Steps)
			fmt.Fprintf(out, "  spikes:    %d (%.3f ± %.3f per step, peak %d at step %d)\n",
				summary.TotalSpikes, summary.MeanSpikes, summary.StdSpikes, summary.PeakSpikes, summary.PeakStep)
			fmt.Fprintf(out, "  mean rate: %.2f Hz\n", summary.MeanRateHz)

			if showTotals {
				fmt.Fprintln(out)
				for _, n := range totals {
					fmt.Fprintln(out, n)
				}
			}
			return nil
		},
	}

	cmd.Flags().Bool("totals", false, "Also print the per-step spike totals")

	return cmd
}
