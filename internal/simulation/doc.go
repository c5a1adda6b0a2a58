// Package simulation drives complete runs of the spiking network: it opens
// the activity streams in the output directory, optionally archives the
// run, initializes the network, steps it for the configured duration and
// summarizes the population activity.
//
// Usage:
//
//	r := simulation.NewRunner(cfg.Simulation,
//	    simulation.WithOutputDir(cfg.Output.Dir),
//	    simulation.WithArchive(runs),
//	    simulation.WithLogger(logger),
//	)
//	result, err := r.Run(ctx)
//
// The exported Assert helpers check run results from tests.
package simulation
