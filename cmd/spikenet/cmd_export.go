package main

import (
	"encoding/json"
	"fmt"

	"github.com/nvandessel/spikenet/internal/export"
	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <dir>",
		Short: "Convert a run's activity streams to Arrow IPC files",
		Long: `Read sum_spikes.txt and spikes.txt from a run directory and write
totals.arrow and raster.arrow next to them.

Example:
  spikenet export ./out --dt 0.1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			dt, err := timestepFlag(cmd)
			if err != nil {
				return err
			}

			paths, err := export.FromRunDir(args[0], dt)
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(paths)
			}
			fmt.Fprintf(out, "Wrote %s\n", paths.Totals)
			fmt.Fprintf(out, "Wrote %s\n", paths.Raster)
			return nil
		},
	}

	cmd.Flags().Float64("dt", 0, "Integration step of the run in ms (default from config)")

	return cmd
}

// timestepFlag returns --dt, falling back to the configured timestep.
func timestepFlag(cmd *cobra.Command) (float64, error) {
	if cmd.Flags().Changed("dt") {
		dt, _ := cmd.Flags().GetFloat64("dt")
		if dt <= 0 {
			return 0, fmt.Errorf("--dt must be positive, got %g", dt)
		}
		return dt, nil
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return 0, err
	}
	return cfg.Simulation.TimestepMS, nil
}
