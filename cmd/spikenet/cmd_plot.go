package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nvandessel/spikenet/internal/visualization"
	"github.com/spf13/cobra"
)

func newPlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot <dir>",
		Short: "Plot a run's population activity and spike raster",
		Long: `Render sum_spikes.png and raster.png from the activity streams of a run
directory. With --serve, start a local viewer instead and keep it running
until interrupted.

Examples:
  spikenet plot ./out
  spikenet plot ./out --open
  spikenet plot ./out --serve`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			open, _ := cmd.Flags().GetBool("open")
			serve, _ := cmd.Flags().GetBool("serve")
			dir := args[0]
			out := cmd.OutOrStdout()

			dt, err := timestepFlag(cmd)
			if err != nil {
				return err
			}

			if serve {
				return servePlots(cmd, dir, dt)
			}

			paths, err := visualization.FromRunDir(dir, dt)
			if err != nil {
				return fmt.Errorf("plot failed: %w", err)
			}

			if jsonOut {
				json.NewEncoder(out).Encode(paths)
			} else {
				fmt.Fprintf(out, "Wrote %s\n", paths.Totals)
				if paths.Raster != "" {
					fmt.Fprintf(out, "Wrote %s\n", paths.Raster)
				}
			}

			if open {
				if err := visualization.OpenBrowser(paths.Totals); err != nil {
					return fmt.Errorf("failed to open plot: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().Float64("dt", 0, "Integration step of the run in ms (default from config)")
	cmd.Flags().Bool("open", false, "Open the activity plot in the default viewer")
	cmd.Flags().Bool("serve", false, "Serve the plots on a local HTTP viewer")

	return cmd
}

// servePlots runs the viewer until SIGINT or SIGTERM.
func servePlots(cmd *cobra.Command, dir string, dt float64) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	srv := visualization.NewServer(dir, dt)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	// Wait for the listener to report its address.
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for srv.Addr() == "" {
		select {
		case err := <-errCh:
			return fmt.Errorf("viewer failed: %w", err)
		case <-ticker.C:
		}
	}

	url := "http://" + srv.Addr() + "/"
	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s at %s (Ctrl+C to stop)\n", dir, url)
	if open, _ := cmd.Flags().GetBool("open"); open {
		if err := visualization.OpenBrowser(url); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to open browser: %v\n", err)
		}
	}

	return <-errCh
}
