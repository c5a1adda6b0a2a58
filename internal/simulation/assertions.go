package simulation

import (
	"context"
	"slices"
	"testing"

	"github.com/nvandessel/spikenet/internal/recorder"
	"github.com/nvandessel/spikenet/internal/store"
)

// AssertStreamsMatch asserts that the files in the run's output directory
// hold one aggregate line and one detail row per step, and that the
// aggregate stream equals the totals kept in memory.
func AssertStreamsMatch(t *testing.T, result *Result) {
	t.Helper()
	totals, raster, err := recorder.ReadRunDir(result.OutputDir)
	if err != nil {
		t.Fatalf("AssertStreamsMatch: %v", err)
	}
	if !slices.Equal(totals, result.Totals) {
		t.Errorf("AssertStreamsMatch: aggregate stream has %d totals, differs from the %d in memory", len(totals), len(result.Totals))
	}

	observed := len(result.Observed)
	if observed == 0 {
		if len(raster) != 0 {
			t.Errorf("AssertStreamsMatch: detail stream has %d rows, want none", len(raster))
		}
		return
	}
	if len(raster) != result.Summary.Steps {
		t.Errorf("AssertStreamsMatch: detail stream has %d rows, want %d", len(raster), result.Summary.Steps)
	}
	for i, row := range raster {
		if len(row) != observed {
			t.Errorf("AssertStreamsMatch: detail row %d has %d flags, want %d", i, len(row), observed)
		}
	}
}

// AssertRateWithin asserts that the mean single-unit rate lies in [min, max] Hz.
func AssertRateWithin(t *testing.T, result *Result, min, max float64) {
	t.Helper()
	if r := result.Summary.MeanRateHz; r < min || r > max {
		t.Errorf("AssertRateWithin: mean rate %.3f Hz not in [%.3f, %.3f]", r, min, max)
	}
}

// AssertArchived asserts that the run is archived as finished with the
// same aggregate stream.
func AssertArchived(t *testing.T, runs *store.RunStore, result *Result) {
	t.Helper()
	ctx := context.Background()

	run, err := runs.GetRun(ctx, result.RunID)
	if err != nil {
		t.Fatalf("AssertArchived: GetRun(%s): %v", result.RunID, err)
	}
	if run.Status != store.RunFinished {
		t.Errorf("AssertArchived: status = %q, want %q", run.Status, store.RunFinished)
	}
	if run.Simulation.Seed != result.Seed {
		t.Errorf("AssertArchived: seed = %d, want %d", run.Simulation.Seed, result.Seed)
	}
	if run.Outcome.TotalSpikes != result.Summary.TotalSpikes {
		t.Errorf("AssertArchived: total spikes = %d, want %d", run.Outcome.TotalSpikes, result.Summary.TotalSpikes)
	}

	totals, err := runs.StepTotals(ctx, result.RunID)
	if err != nil {
		t.Fatalf("AssertArchived: StepTotals(%s): %v", result.RunID, err)
	}
	if !slices.Equal(totals, result.Totals) {
		t.Errorf("AssertArchived: archived %d totals differ from the %d in memory", len(totals), len(result.Totals))
	}
}
