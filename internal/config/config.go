// Package config provides unified configuration loading for spikenet.
// It supports loading from YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/spikenet/internal/constants"
	"gopkg.in/yaml.v3"
)

// Config contains all spikenet configuration settings.
type Config struct {
	// Simulation contains the network and integration parameters.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Output contains settings for the activity streams.
	Output OutputConfig `json:"output" yaml:"output"`

	// Archive contains settings for the run archive database.
	Archive ArchiveConfig `json:"archive" yaml:"archive"`

	// Logging contains settings for operational and event logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// SimulationConfig describes one simulation run.
type SimulationConfig struct {
	// Neurons is the population size.
	Neurons int `json:"neurons" yaml:"neurons"`

	// ExcitatoryAmplitude is J in mV.
	ExcitatoryAmplitude float64 `json:"excitatory_amplitude" yaml:"excitatory_amplitude"`

	// RelativeInhibitoryAmplitude is g; inhibitory spikes weigh -g*J.
	RelativeInhibitoryAmplitude float64 `json:"relative_inhibitory_amplitude" yaml:"relative_inhibitory_amplitude"`

	// NoiseRatio is the external to threshold frequency ratio.
	NoiseRatio float64 `json:"noise_ratio" yaml:"noise_ratio"`

	// TimestepMS is the integration step in milliseconds.
	TimestepMS float64 `json:"timestep_ms" yaml:"timestep_ms"`

	// DurationMS is the simulated time in milliseconds.
	DurationMS float64 `json:"duration_ms" yaml:"duration_ms"`

	// InhibitoryFraction is the share of inhibitory units.
	InhibitoryFraction float64 `json:"inhibitory_fraction" yaml:"inhibitory_fraction"`

	// ConnectionProbability is the probability of each directed edge.
	ConnectionProbability float64 `json:"connection_probability" yaml:"connection_probability"`

	// ObservedUnits is how many units have their flags recorded.
	ObservedUnits int `json:"observed_units" yaml:"observed_units"`

	// Seed drives every random draw. 0 derives a seed from the clock.
	Seed uint64 `json:"seed" yaml:"seed"`
}

// Steps returns the number of integration steps, round(duration/dt).
// It returns -1 when the ratio is not finite or exceeds the int32 range.
func (s SimulationConfig) Steps() int {
	if !(s.TimestepMS > 0) {
		return 0
	}
	n := math.Round(s.DurationMS / s.TimestepMS)
	if math.IsNaN(n) || n >= math.MaxInt32 || n <= math.MinInt32 {
		return -1
	}
	return int(n)
}

// OutputConfig configures where the activity streams are written.
type OutputConfig struct {
	// Dir receives sum_spikes.txt, spikes.txt and events.jsonl.
	Dir string `json:"dir" yaml:"dir"`
}

// ArchiveConfig configures the SQLite run archive.
type ArchiveConfig struct {
	// Enabled turns run archiving on.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path is the database file. Empty means ~/.spikenet/runs.db.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// LoggingConfig configures spikenet's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables the run event journal in the output directory.
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with the reference network parameters.
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Neurons:                     constants.DefaultNeurons,
			ExcitatoryAmplitude:         constants.DefaultExcitatoryAmplitude,
			RelativeInhibitoryAmplitude: constants.DefaultRelativeInhibitoryAmplitude,
			NoiseRatio:                  constants.DefaultNoiseRatio,
			TimestepMS:                  constants.DefaultTimestepMS,
			DurationMS:                  constants.DefaultDurationMS,
			InhibitoryFraction:          constants.InhibitoryFraction,
			ConnectionProbability:       constants.ConnectionProbability,
			ObservedUnits:               constants.ObservedUnits,
		},
		Output: OutputConfig{
			Dir: ".",
		},
		Archive: ArchiveConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// HomeDir returns ~/.spikenet.
func HomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".spikenet"), nil
}

// ArchivePath returns the configured archive path, defaulting to
// ~/.spikenet/runs.db.
func (c *Config) ArchivePath() (string, error) {
	if c.Archive.Path != "" {
		return c.Archive.Path, nil
	}
	dir, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "runs.db"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.spikenet/config.yaml -> environment variables
func Load() (*Config, error) {
	config := Default()

	if dir, err := HomeDir(); err == nil {
		configPath := filepath.Join(dir, "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFile is Load with an explicit config file in place of
// ~/.spikenet/config.yaml. An empty path behaves like Load.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return Load()
	}
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(config)
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Fields the
// file omits keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Output.Dir = expandEnvVars(config.Output.Dir)
	config.Archive.Path = expandEnvVars(config.Archive.Path)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Simulation.Validate(); err != nil {
		return err
	}

	if c.Output.Dir == "" {
		return errors.New("output dir must not be empty")
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// Validate checks the simulation parameters.
func (s SimulationConfig) Validate() error {
	if s.Neurons <= 0 {
		return fmt.Errorf("neurons must be positive, got %d", s.Neurons)
	}
	if !finite(s.ExcitatoryAmplitude) || s.ExcitatoryAmplitude < 0 {
		return fmt.Errorf("excitatory_amplitude must be a non-negative number, got %f", s.ExcitatoryAmplitude)
	}
	if !finite(s.RelativeInhibitoryAmplitude) || s.RelativeInhibitoryAmplitude < 0 {
		return fmt.Errorf("relative_inhibitory_amplitude must be a non-negative number, got %f", s.RelativeInhibitoryAmplitude)
	}
	if !finite(s.NoiseRatio) || s.NoiseRatio < 0 {
		return fmt.Errorf("noise_ratio must be a non-negative number, got %f", s.NoiseRatio)
	}
	if !finite(s.TimestepMS) || s.TimestepMS <= 0 {
		return fmt.Errorf("timestep_ms must be a positive number, got %f", s.TimestepMS)
	}
	if !finite(s.DurationMS) || s.DurationMS < 0 {
		return fmt.Errorf("duration_ms must be a non-negative number, got %f", s.DurationMS)
	}
	if steps := s.Steps(); steps < 0 || steps > constants.MaxSteps {
		return fmt.Errorf("duration_ms/timestep_ms must not exceed %d steps, got %g", constants.MaxSteps, s.DurationMS/s.TimestepMS)
	}
	if !(s.InhibitoryFraction >= 0 && s.InhibitoryFraction <= 1) {
		return fmt.Errorf("inhibitory_fraction must be between 0 and 1, got %f", s.InhibitoryFraction)
	}
	if !(s.ConnectionProbability > 0 && s.ConnectionProbability <= 1) {
		return fmt.Errorf("connection_probability must be in (0, 1], got %f", s.ConnectionProbability)
	}
	if s.ObservedUnits < 0 || s.ObservedUnits > s.Neurons {
		return fmt.Errorf("observed_units must be between 0 and neurons (%d), got %d", s.Neurons, s.ObservedUnits)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	sim := &config.Simulation

	if v := os.Getenv("SPIKENET_NEURONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			sim.Neurons = n
		}
	}
	envFloat("SPIKENET_EXCITATORY_AMPLITUDE", &sim.ExcitatoryAmplitude)
	envFloat("SPIKENET_RELATIVE_INHIBITORY_AMPLITUDE", &sim.RelativeInhibitoryAmplitude)
	envFloat("SPIKENET_NOISE_RATIO", &sim.NoiseRatio)
	envFloat("SPIKENET_TIMESTEP_MS", &sim.TimestepMS)
	envFloat("SPIKENET_DURATION_MS", &sim.DurationMS)

	if v := os.Getenv("SPIKENET_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			sim.Seed = n
		}
	}

	if v := os.Getenv("SPIKENET_OUTPUT_DIR"); v != "" {
		config.Output.Dir = v
	}

	if v := os.Getenv("SPIKENET_ARCHIVE_PATH"); v != "" {
		config.Archive.Path = v
	}

	if v := os.Getenv("SPIKENET_ARCHIVE_ENABLED"); v != "" {
		config.Archive.Enabled = v == "true" || v == "1"
	}

	if v := os.Getenv("SPIKENET_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
