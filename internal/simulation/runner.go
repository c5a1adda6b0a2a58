package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nvandessel/spikenet/internal/config"
	"github.com/nvandessel/spikenet/internal/logging"
	"github.com/nvandessel/spikenet/internal/network"
	"github.com/nvandessel/spikenet/internal/recorder"
	"github.com/nvandessel/spikenet/internal/store"
)

// progressSlices is how many run_progress events a run emits.
const progressSlices = 10

// Result is the outcome of one run.
type Result struct {
	RunID         string                  `json:"run_id"`
	Seed          uint64                  `json:"seed"`
	Simulation    config.SimulationConfig `json:"simulation"`
	Summary       Summary                 `json:"summary"`
	InitDuration  time.Duration           `json:"init_duration"`
	RunDuration   time.Duration           `json:"run_duration"`
	OutputDir     string                  `json:"output_dir"`
	AggregatePath string                  `json:"aggregate_path"`
	DetailPath    string                  `json:"detail_path"`
	Observed      []int                   `json:"observed"`
	Archived      bool                    `json:"archived"`

	// Totals is the aggregate stream held in memory.
	Totals []int `json:"-"`
}

// Option configures a Runner.
type Option func(*Runner)

// WithOutputDir sets the directory receiving the activity streams.
func WithOutputDir(dir string) Option {
	return func(r *Runner) { r.outputDir = dir }
}

// WithArchive records the run in the given archive.
func WithArchive(archive *store.RunStore) Option {
	return func(r *Runner) { r.archive = archive }
}

// WithLogger sets the operational logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithEvents sets the run event journal.
func WithEvents(events *logging.EventLogger) Option {
	return func(r *Runner) { r.events = events }
}

// WithNetworkOptions passes options through to the network.
func WithNetworkOptions(opts ...network.Option) Option {
	return func(r *Runner) { r.netOpts = append(r.netOpts, opts...) }
}

// WithClock replaces time.Now for seeding and timings.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// Runner executes one simulation configuration.
type Runner struct {
	cfg       config.SimulationConfig
	outputDir string
	archive   *store.RunStore
	logger    *slog.Logger
	events    *logging.EventLogger
	netOpts   []network.Option
	now       func() time.Time

	openStreams func(dir string, rowWidth int) (streams, error)
}

// streams is the recorder surface a run drives.
type streams interface {
	network.Recorder
	Close() error
	AggregatePath() string
	DetailPath() string
}

func openFileStreams(dir string, rowWidth int) (streams, error) {
	rec, err := recorder.Open(dir, rowWidth)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// NewRunner creates a runner for cfg writing to the current directory.
func NewRunner(cfg config.SimulationConfig, opts ...Option) *Runner {
	r := &Runner{
		cfg:       cfg,
		outputDir: ".",
		logger:    slog.New(slog.DiscardHandler),
		now:       time.Now,

		openStreams: openFileStreams,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the simulation. The activity streams are always closed
// before Run returns; on failure the archived run is marked failed.
func (r *Runner) Run(ctx context.Context) (result *Result, err error) {
	cfg := r.cfg
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", network.ErrInvalidParams, err)
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(r.now().UnixNano())
	}
	steps := cfg.Steps()

	rec, err := r.openStreams(r.outputDir, cfg.ObservedUnits)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	if r.archive != nil {
		runID, err = r.archive.CreateRun(ctx, store.RunRecord{
			ID:         runID,
			Simulation: cfg,
			Steps:      steps,
			OutputDir:  r.outputDir,
		})
		if err != nil {
			rec.Close()
			return nil, fmt.Errorf("archiving run: %w", err)
		}
	}

	logger := r.logger.With("run_id", runID)
	defer func() {
		if err != nil {
			rec.Close()
			r.fail(ctx, logger, runID, err)
		}
	}()

	logger.Info("starting simulation",
		"neurons", cfg.Neurons,
		"g", cfg.RelativeInhibitoryAmplitude,
		"j_mv", cfg.ExcitatoryAmplitude,
		"ratio", cfg.NoiseRatio,
		"dt_ms", cfg.TimestepMS,
		"duration_ms", cfg.DurationMS,
		"steps", steps,
		"seed", cfg.Seed)
	r.events.Log(logging.EventRunStarted, map[string]any{
		"run_id":     runID,
		"seed":       cfg.Seed,
		"steps":      steps,
		"output_dir": r.outputDir,
	})

	net := network.New(rec, append([]network.Option{network.WithLogger(logger)}, r.netOpts...)...)
	defer net.Reset()

	initStart := r.now()
	if err := net.Initialize(paramsFor(cfg)); err != nil {
		return nil, err
	}
	initDuration := r.now().Sub(initStart)
	logger.Info("network initialized", "duration", initDuration, "edges", net.Edges())
	r.events.Log(logging.EventNetworkInitialized, map[string]any{
		"run_id":      runID,
		"neurons":     net.Size(),
		"inhibitory":  net.InhibitoryCount(),
		"edges":       net.Edges(),
		"observed":    len(net.Observed()),
		"duration_ms": initDuration.Milliseconds(),
	})

	totals := make([]int, 0, steps)
	every := max(steps/progressSlices, 1)
	runStart := r.now()
	for t := range steps {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("simulation interrupted at step %d: %w", t, err)
		}
		if err := net.Step(t); err != nil {
			return nil, err
		}
		total := net.LastStepTotal()
		totals = append(totals, total)
		logger.Log(ctx, logging.LevelTrace, "step", "t", t, "spikes", total)

		if (t+1)%every == 0 {
			logger.Debug("progress", "step", t+1, "of", steps)
			r.events.Log(logging.EventRunProgress, map[string]any{
				"run_id": runID,
				"step":   t + 1,
				"steps":  steps,
			})
		}
	}
	// The streams are closed before the outcome is archived so a failed
	// close never leaves a finished run behind.
	if err := rec.Close(); err != nil {
		return nil, fmt.Errorf("closing output streams: %w", err)
	}
	runDuration := r.now().Sub(runStart)

	summary := Summarize(totals, cfg.Neurons, cfg.TimestepMS)
	result = &Result{
		RunID:         runID,
		Seed:          cfg.Seed,
		Simulation:    cfg,
		Summary:       summary,
		InitDuration:  initDuration,
		RunDuration:   runDuration,
		OutputDir:     r.outputDir,
		AggregatePath: rec.AggregatePath(),
		DetailPath:    rec.DetailPath(),
		Observed:      append([]int(nil), net.Observed()...),
		Totals:        totals,
	}

	if r.archive != nil {
		if err := r.archive.AppendStepTotals(ctx, runID, totals); err != nil {
			return nil, fmt.Errorf("archiving step totals: %w", err)
		}
		if err := r.archive.FinishRun(ctx, runID, store.RunOutcome{
			Status:       store.RunFinished,
			TotalSpikes:  summary.TotalSpikes,
			MeanSpikes:   summary.MeanSpikes,
			StdSpikes:    summary.StdSpikes,
			MeanRateHz:   summary.MeanRateHz,
			InitDuration: initDuration,
			RunDuration:  runDuration,
		}); err != nil {
			return nil, fmt.Errorf("archiving outcome: %w", err)
		}
		result.Archived = true
	}

	logger.Info("simulation finished",
		"total_spikes", summary.TotalSpikes,
		"mean_rate_hz", summary.MeanRateHz,
		"init", initDuration,
		"run", runDuration)
	r.events.Log(logging.EventRunFinished, map[string]any{
		"run_id":       runID,
		"total_spikes": summary.TotalSpikes,
		"mean_rate_hz": summary.MeanRateHz,
		"run_ms":       runDuration.Milliseconds(),
	})
	return result, nil
}

// fail records a failed run. Archive errors are logged, not returned, so
// the original failure reaches the caller.
func (r *Runner) fail(ctx context.Context, logger *slog.Logger, runID string, cause error) {
	logger.Error("simulation failed", "error", cause)
	r.events.Log(logging.EventRunFailed, map[string]any{
		"run_id": runID,
		"error":  cause.Error(),
	})
	if r.archive == nil {
		return
	}
	// Use a fresh context: a cancelled run must still be marked failed.
	ctx = context.WithoutCancel(ctx)
	err := r.archive.FinishRun(ctx, runID, store.RunOutcome{Status: store.RunFailed, Error: cause.Error()})
	if err != nil && !errors.Is(err, store.ErrRunNotFound) {
		logger.Warn("failed to archive run failure", "error", err)
	}
}

func paramsFor(cfg config.SimulationConfig) network.Params {
	return network.Params{
		RelativeInhibitoryAmplitude: cfg.RelativeInhibitoryAmplitude,
		ExcitatoryAmplitude:         cfg.ExcitatoryAmplitude,
		Neurons:                     cfg.Neurons,
		TimestepMS:                  cfg.TimestepMS,
		NoiseRatio:                  cfg.NoiseRatio,
		InhibitoryFraction:          cfg.InhibitoryFraction,
		ConnectionProbability:       cfg.ConnectionProbability,
		ObservedUnits:               cfg.ObservedUnits,
		Seed:                        cfg.Seed,
	}
}
