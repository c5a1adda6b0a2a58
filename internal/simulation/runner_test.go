package simulation

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/nvandessel/spikenet/internal/config"
	"github.com/nvandessel/spikenet/internal/logging"
	"github.com/nvandessel/spikenet/internal/network"
	"github.com/nvandessel/spikenet/internal/recorder"
	"github.com/nvandessel/spikenet/internal/store"
)

// testConfig is a 100-unit, 100-step network without background noise.
func testConfig() config.SimulationConfig {
	cfg := config.Default().Simulation
	cfg.Neurons = 100
	cfg.DurationMS = 10
	cfg.NoiseRatio = 0
	cfg.Seed = 3
	return cfg
}

func newTestArchive(t *testing.T) *store.RunStore {
	t.Helper()
	runs, err := store.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { runs.Close() })
	return runs
}

// cancellingNoise cancels the run after a fixed number of draws.
type cancellingNoise struct {
	cancel context.CancelFunc
	left   int
}

func (c *cancellingNoise) Sample() float64 {
	c.left--
	if c.left == 0 {
		c.cancel()
	}
	return 0
}

func TestRun_QuietNetwork(t *testing.T) {
	dir := t.TempDir()
	runs := newTestArchive(t)

	result, err := NewRunner(testConfig(), WithOutputDir(dir), WithArchive(runs)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Summary.Steps != 100 {
		t.Errorf("Steps = %d, want 100", result.Summary.Steps)
	}
	if result.Summary.TotalSpikes != 0 {
		t.Errorf("TotalSpikes = %d, want 0", result.Summary.TotalSpikes)
	}
	if len(result.Observed) != 50 {
		t.Errorf("len(Observed) = %d, want 50", len(result.Observed))
	}
	if !result.Archived {
		t.Error("expected run to be archived")
	}
	if result.AggregatePath != filepath.Join(dir, "sum_spikes.txt") {
		t.Errorf("AggregatePath = %q", result.AggregatePath)
	}

	AssertStreamsMatch(t, result)
	AssertArchived(t, runs, result)
	AssertRateWithin(t, result, 0, 0)
}

func TestRun_SeedFromClock(t *testing.T) {
	cfg := testConfig()
	cfg.Seed = 0
	fixed := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)

	result, err := NewRunner(cfg,
		WithOutputDir(t.TempDir()),
		WithClock(func() time.Time { return fixed }),
	).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if want := uint64(fixed.UnixNano()); result.Seed != want {
		t.Errorf("Seed = %d, want %d", result.Seed, want)
	}
	if result.Simulation.Seed != result.Seed {
		t.Errorf("Simulation.Seed = %d, want %d", result.Simulation.Seed, result.Seed)
	}
	if result.Archived {
		t.Error("run without archive should not be archived")
	}
}

func TestRun_NoisyNetworkIsReproducible(t *testing.T) {
	cfg := testConfig()
	cfg.NoiseRatio = 2
	cfg.DurationMS = 50
	cfg.Seed = 11

	first, err := NewRunner(cfg, WithOutputDir(t.TempDir())).Run(context.Background())
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	second, err := NewRunner(cfg, WithOutputDir(t.TempDir())).Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if first.Summary.TotalSpikes == 0 {
		t.Error("expected a noise-driven network to spike")
	}
	if !slices.Equal(first.Totals, second.Totals) {
		t.Error("equal seeds produced different aggregate streams")
	}
	if !slices.Equal(first.Observed, second.Observed) {
		t.Error("equal seeds produced different observed samples")
	}
	AssertStreamsMatch(t, first)
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.ObservedUnits = cfg.Neurons + 1
	dir := filepath.Join(t.TempDir(), "out")

	_, err := NewRunner(cfg, WithOutputDir(dir)).Run(context.Background())
	if !errors.Is(err, network.ErrInvalidParams) {
		t.Fatalf("Run() error = %v, want ErrInvalidParams", err)
	}
	if _, statErr := os.Stat(dir); !os.IsNotExist(statErr) {
		t.Error("output directory should not be created for an invalid config")
	}
}

func TestRun_RejectsUnboundedDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
	}{
		{"huge", 1e300},
		{"infinite", math.Inf(1)},
		{"NaN", math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.DurationMS = tt.duration

			_, err := NewRunner(cfg, WithOutputDir(t.TempDir())).Run(context.Background())
			if !errors.Is(err, network.ErrInvalidParams) {
				t.Fatalf("Run() error = %v, want ErrInvalidParams", err)
			}
		})
	}
}

func TestRun_UnwritableOutputDir(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := NewRunner(testConfig(), WithOutputDir(filepath.Join(blocker, "out"))).Run(context.Background()); err == nil {
		t.Fatal("Run() expected error for unwritable output dir")
	}
}

func TestRun_CancelledMidRunIsArchivedAsFailed(t *testing.T) {
	runs := newTestArchive(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig()
	src := &cancellingNoise{cancel: cancel, left: cfg.Neurons * 5}
	_, err := NewRunner(cfg,
		WithOutputDir(t.TempDir()),
		WithArchive(runs),
		WithNetworkOptions(network.WithNoise(src)),
	).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	list, err := runs.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListRuns() returned %d runs, want 1", len(list))
	}
	if list[0].Status != store.RunFailed {
		t.Errorf("Status = %q, want %q", list[0].Status, store.RunFailed)
	}
	if list[0].Outcome.Error == "" {
		t.Error("expected failure message to be archived")
	}
}

// failingClose is an in-memory recorder whose Close always fails.
type failingClose struct {
	*recorder.Recorder
}

func (f failingClose) Close() error {
	f.Recorder.Close()
	return errors.New("disk full")
}

func TestRun_CloseErrorIsArchivedAsFailed(t *testing.T) {
	runs := newTestArchive(t)
	r := NewRunner(testConfig(), WithArchive(runs))
	r.openStreams = func(_ string, rowWidth int) (streams, error) {
		return failingClose{recorder.New(io.Discard, io.Discard, rowWidth)}, nil
	}

	result, err := r.Run(context.Background())
	if err == nil {
		t.Fatal("Run() expected error when closing the output streams fails")
	}
	if result != nil {
		t.Errorf("Run() result = %+v, want nil on error", result)
	}

	list, err := runs.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListRuns() returned %d runs, want 1", len(list))
	}
	if list[0].Status != store.RunFailed {
		t.Errorf("Status = %q, want %q", list[0].Status, store.RunFailed)
	}
}

func TestRun_WritesEventJournal(t *testing.T) {
	dir := t.TempDir()
	events := logging.NewEventLogger(dir, "debug")
	defer events.Close()

	if _, err := NewRunner(testConfig(), WithOutputDir(dir), WithEvents(events)).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	f, err := os.Open(filepath.Join(dir, logging.EventsFile))
	if err != nil {
		t.Fatalf("open events: %v", err)
	}
	defer f.Close()

	counts := map[string]int{}
	var order []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("parse event: %v", err)
		}
		name, _ := entry["event"].(string)
		counts[name]++
		order = append(order, name)
	}

	if counts[logging.EventRunProgress] != progressSlices {
		t.Errorf("%d progress events, want %d", counts[logging.EventRunProgress], progressSlices)
	}
	if len(order) < 3 || order[0] != logging.EventRunStarted ||
		order[1] != logging.EventNetworkInitialized || order[len(order)-1] != logging.EventRunFinished {
		t.Errorf("unexpected event order: %v", order)
	}
}
