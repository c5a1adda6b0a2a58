package mcp

import (
	"time"

	"github.com/nvandessel/spikenet/internal/simulation"
)

// SimulateInput defines the input for the spikenet_simulate tool. Unset
// fields keep the configured defaults.
type SimulateInput struct {
	Neurons                     int      `json:"neurons,omitempty" jsonschema:"Population size (default from config, at most 20000)"`
	DurationMS                  float64  `json:"duration_ms,omitempty" jsonschema:"Simulated time in milliseconds (default from config)"`
	TimestepMS                  float64  `json:"timestep_ms,omitempty" jsonschema:"Integration step in milliseconds (default 0.1)"`
	ExcitatoryAmplitude         *float64 `json:"excitatory_amplitude,omitempty" jsonschema:"J: excitatory spike amplitude in mV (default 0.1)"`
	RelativeInhibitoryAmplitude *float64 `json:"relative_inhibitory_amplitude,omitempty" jsonschema:"g: inhibitory spikes weigh -g*J (default 5)"`
	NoiseRatio                  *float64 `json:"noise_ratio,omitempty" jsonschema:"External to threshold frequency ratio of the background drive (default 2)"`
	Seed                        uint64   `json:"seed,omitempty" jsonschema:"Random seed; 0 derives one from the clock"`
	OutputDir                   string   `json:"output_dir,omitempty" jsonschema:"Directory for the activity streams, under ~/.spikenet/runs or the temp directory (default: a new directory under ~/.spikenet/runs)"`
}

// SimulateOutput defines the output for the spikenet_simulate tool.
type SimulateOutput struct {
	RunID     string             `json:"run_id" jsonschema:"Archive ID of the run"`
	Seed      uint64             `json:"seed" jsonschema:"Seed used, for reproduction"`
	Summary   simulation.Summary `json:"summary" jsonschema:"Population spike statistics"`
	InitMS    int64              `json:"init_ms" jsonschema:"Network construction time in milliseconds"`
	RunMS     int64              `json:"run_ms" jsonschema:"Stepping time in milliseconds"`
	OutputDir string             `json:"output_dir" jsonschema:"Directory holding sum_spikes.txt and spikes.txt"`
	Message   string             `json:"message" jsonschema:"Human-readable result message"`
}

// RunsInput defines the input for the spikenet_runs tool.
type RunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of runs, newest first (default 20)"`
}

// RunsOutput defines the output for the spikenet_runs tool.
type RunsOutput struct {
	Runs  []RunListItem `json:"runs" jsonschema:"Archived runs"`
	Count int           `json:"count" jsonschema:"Number of runs returned"`
}

// RunListItem provides a list view of an archived run.
type RunListItem struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	Neurons     int       `json:"neurons"`
	Steps       int       `json:"steps"`
	Seed        uint64    `json:"seed"`
	TotalSpikes int       `json:"total_spikes"`
	MeanRateHz  float64   `json:"mean_rate_hz"`
	CreatedAt   time.Time `json:"created_at"`
}

// RunInput defines the input for the spikenet_run tool.
type RunInput struct {
	ID string `json:"id" jsonschema:"Run ID as returned by spikenet_simulate or spikenet_runs"`
}

// RunOutput defines the output for the spikenet_run tool.
type RunOutput struct {
	ID                          string             `json:"id"`
	Status                      string             `json:"status"`
	Neurons                     int                `json:"neurons"`
	ExcitatoryAmplitude         float64            `json:"excitatory_amplitude"`
	RelativeInhibitoryAmplitude float64            `json:"relative_inhibitory_amplitude"`
	NoiseRatio                  float64            `json:"noise_ratio"`
	TimestepMS                  float64            `json:"timestep_ms"`
	DurationMS                  float64            `json:"duration_ms"`
	Seed                        uint64             `json:"seed"`
	OutputDir                   string             `json:"output_dir,omitempty"`
	Error                       string             `json:"error,omitempty"`
	Summary                     simulation.Summary `json:"summary" jsonschema:"Statistics recomputed from the archived step totals"`
	CreatedAt                   time.Time          `json:"created_at"`
}
