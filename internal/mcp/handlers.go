package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/spikenet/internal/pathutil"
	"github.com/nvandessel/spikenet/internal/ratelimit"
	"github.com/nvandessel/spikenet/internal/simulation"
	"github.com/nvandessel/spikenet/internal/store"
)

const (
	// maxToolNeurons bounds the population a tool caller may request.
	maxToolNeurons = 20000

	// maxToolSteps bounds duration/dt for a tool call.
	maxToolSteps = 1_000_000

	// defaultRunsLimit is the page size of spikenet_runs.
	defaultRunsLimit = 20

	runResourcePrefix = "spikenet://runs/"
)

// registerTools registers all spikenet MCP tools with the server.
func (s *Server) registerTools() error {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "spikenet_simulate",
		Description: "Run a leaky integrate-and-fire network simulation and return population spike statistics",
	}, s.handleSimulate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "spikenet_runs",
		Description: "List archived simulation runs, newest first",
	}, s.handleRuns)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "spikenet_run",
		Description: "Get one archived run with statistics recomputed from its per-step spike totals",
	}, s.handleRun)

	return nil
}

// registerResources registers MCP resources.
func (s *Server) registerResources() error {
	s.server.AddResource(&sdk.Resource{
		URI:         "spikenet://config",
		Name:        "spikenet-config",
		Description: "Effective spikenet configuration used as the default for spikenet_simulate.",
		MIMEType:    "application/yaml",
	}, s.handleConfigResource)

	s.server.AddResourceTemplate(&sdk.ResourceTemplate{
		URITemplate: runResourcePrefix + "{id}",
		Name:        "spikenet-run",
		Description: "Parameters and statistics of an archived simulation run.",
		MIMEType:    "text/markdown",
	}, s.handleRunResource)

	return nil
}

// handleSimulate implements the spikenet_simulate tool.
func (s *Server) handleSimulate(ctx context.Context, req *sdk.CallToolRequest, args SimulateInput) (_ *sdk.CallToolResult, _ SimulateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("spikenet_simulate", start, retErr, sanitizeToolParams(args.auditParams()))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "spikenet_simulate"); err != nil {
		return nil, SimulateOutput{}, err
	}

	cfg := s.settings.Simulation
	if args.Neurons != 0 {
		cfg.Neurons = args.Neurons
	}
	if args.DurationMS != 0 {
		cfg.DurationMS = args.DurationMS
	}
	if args.TimestepMS != 0 {
		cfg.TimestepMS = args.TimestepMS
	}
	if args.ExcitatoryAmplitude != nil {
		cfg.ExcitatoryAmplitude = *args.ExcitatoryAmplitude
	}
	if args.RelativeInhibitoryAmplitude != nil {
		cfg.RelativeInhibitoryAmplitude = *args.RelativeInhibitoryAmplitude
	}
	if args.NoiseRatio != nil {
		cfg.NoiseRatio = *args.NoiseRatio
	}
	if args.Seed != 0 {
		cfg.Seed = args.Seed
	}
	if cfg.Neurons > maxToolNeurons {
		return nil, SimulateOutput{}, fmt.Errorf("neurons must be at most %d, got %d", maxToolNeurons, cfg.Neurons)
	}
	if cfg.Neurons > 0 && cfg.ObservedUnits > cfg.Neurons {
		cfg.ObservedUnits = cfg.Neurons
	}
	if err := cfg.Validate(); err != nil {
		return nil, SimulateOutput{}, fmt.Errorf("invalid simulation parameters: %w", err)
	}
	if steps := cfg.Steps(); steps > maxToolSteps {
		return nil, SimulateOutput{}, fmt.Errorf("steps must be at most %d, got %d", maxToolSteps, steps)
	}

	outDir := args.OutputDir
	if outDir != "" {
		if err := pathutil.ValidateRunDir(outDir, s.home); err != nil {
			return nil, SimulateOutput{}, err
		}
	} else {
		var err error
		if outDir, err = os.MkdirTemp(s.outputRoot, "run-"); err != nil {
			return nil, SimulateOutput{}, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	s.simMu.Lock()
	defer s.simMu.Unlock()

	runner := simulation.NewRunner(cfg,
		simulation.WithOutputDir(outDir),
		simulation.WithArchive(s.runs),
		simulation.WithLogger(s.logger),
	)
	res, err := runner.Run(ctx)
	if err != nil {
		return nil, SimulateOutput{}, err
	}

	return nil, SimulateOutput{
		RunID:     res.RunID,
		Seed:      res.Seed,
		Summary:   res.Summary,
		InitMS:    res.InitDuration.Milliseconds(),
		RunMS:     res.RunDuration.Milliseconds(),
		OutputDir: res.OutputDir,
		Message: fmt.Sprintf("Simulated %d neurons for %d steps: %d spikes, %.2f Hz mean rate",
			cfg.Neurons, res.Summary.Steps, res.Summary.TotalSpikes, res.Summary.MeanRateHz),
	}, nil
}

// auditParams returns the parameters the caller actually set.
func (in SimulateInput) auditParams() map[string]any {
	params := make(map[string]any)
	if in.Neurons != 0 {
		params["neurons"] = in.Neurons
	}
	if in.DurationMS != 0 {
		params["duration_ms"] = in.DurationMS
	}
	if in.TimestepMS != 0 {
		params["timestep_ms"] = in.TimestepMS
	}
	if in.ExcitatoryAmplitude != nil {
		params["excitatory_amplitude"] = *in.ExcitatoryAmplitude
	}
	if in.RelativeInhibitoryAmplitude != nil {
		params["relative_inhibitory_amplitude"] = *in.RelativeInhibitoryAmplitude
	}
	if in.NoiseRatio != nil {
		params["noise_ratio"] = *in.NoiseRatio
	}
	if in.Seed != 0 {
		params["seed"] = in.Seed
	}
	if in.OutputDir != "" {
		params["output_dir"] = in.OutputDir
	}
	return params
}

// handleRuns implements the spikenet_runs tool.
func (s *Server) handleRuns(ctx context.Context, req *sdk.CallToolRequest, args RunsInput) (_ *sdk.CallToolResult, _ RunsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("spikenet_runs", start, retErr, sanitizeToolParams(map[string]any{"limit": args.Limit}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "spikenet_runs"); err != nil {
		return nil, RunsOutput{}, err
	}

	limit := args.Limit
	if limit <= 0 {
		limit = defaultRunsLimit
	}

	runs, err := s.runs.ListRuns(ctx, limit)
	if err != nil {
		return nil, RunsOutput{}, fmt.Errorf("failed to list runs: %w", err)
	}

	items := make([]RunListItem, 0, len(runs))
	for _, r := range runs {
		items = append(items, RunListItem{
			ID:          r.ID,
			Status:      string(r.Status),
			Neurons:     r.Simulation.Neurons,
			Steps:       r.Steps,
			Seed:        r.Simulation.Seed,
			TotalSpikes: r.Outcome.TotalSpikes,
			MeanRateHz:  r.Outcome.MeanRateHz,
			CreatedAt:   r.CreatedAt,
		})
	}

	return nil, RunsOutput{Runs: items, Count: len(items)}, nil
}

// handleRun implements the spikenet_run tool.
func (s *Server) handleRun(ctx context.Context, req *sdk.CallToolRequest, args RunInput) (_ *sdk.CallToolResult, _ RunOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("spikenet_run", start, retErr, sanitizeToolParams(map[string]any{"id": args.ID}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "spikenet_run"); err != nil {
		return nil, RunOutput{}, err
	}

	out, err := s.loadRun(ctx, args.ID)
	if err != nil {
		return nil, RunOutput{}, err
	}
	return nil, *out, nil
}

// loadRun reads a run and recomputes its statistics from the archived totals.
func (s *Server) loadRun(ctx context.Context, id string) (*RunOutput, error) {
	if id == "" {
		return nil, fmt.Errorf("run id is required")
	}

	rec, err := s.runs.GetRun(ctx, id)
	if errors.Is(err, store.ErrRunNotFound) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	totals, err := s.runs.StepTotals(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read step totals: %w", err)
	}

	sim := rec.Simulation
	return &RunOutput{
		ID:                          rec.ID,
		Status:                      string(rec.Status),
		Neurons:                     sim.Neurons,
		ExcitatoryAmplitude:         sim.ExcitatoryAmplitude,
		RelativeInhibitoryAmplitude: sim.RelativeInhibitoryAmplitude,
		NoiseRatio:                  sim.NoiseRatio,
		TimestepMS:                  sim.TimestepMS,
		DurationMS:                  sim.DurationMS,
		Seed:                        sim.Seed,
		OutputDir:                   rec.OutputDir,
		Error:                       rec.Outcome.Error,
		Summary:                     simulation.Summarize(totals, sim.Neurons, sim.TimestepMS),
		CreatedAt:                   rec.CreatedAt,
	}, nil
}

// handleConfigResource returns the effective configuration as YAML.
func (s *Server) handleConfigResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	data, err := yaml.Marshal(s.settings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      req.Params.URI,
				MIMEType: "application/yaml",
				Text:     string(data),
			},
		},
	}, nil
}

// handleRunResource renders one archived run as markdown.
func (s *Server) handleRunResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	uri := req.Params.URI
	if !strings.HasPrefix(uri, runResourcePrefix) {
		return nil, fmt.Errorf("invalid URI format: %s", uri)
	}

	run, err := s.loadRun(ctx, strings.TrimPrefix(uri, runResourcePrefix))
	if err != nil {
		return nil, err
	}

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      uri,
				MIMEType: "text/markdown",
				Text:     formatRunMarkdown(run),
			},
		},
	}, nil
}

func formatRunMarkdown(run *RunOutput) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Run %s\n\n", run.ID))
	sb.WriteString(fmt.Sprintf("**Status:** %s\n", run.Status))
	sb.WriteString(fmt.Sprintf("**Created:** %s\n", run.CreatedAt.Format(time.RFC3339)))
	if run.Error != "" {
		sb.WriteString(fmt.Sprintf("**Error:** %s\n", run.Error))
	}

	sb.WriteString("\n## Parameters\n\n")
	sb.WriteString(fmt.Sprintf("- neurons: %d\n", run.Neurons))
	sb.WriteString(fmt.Sprintf("- J: %g mV\n", run.ExcitatoryAmplitude))
	sb.WriteString(fmt.Sprintf("- g: %g\n", run.RelativeInhibitoryAmplitude))
	sb.WriteString(fmt.Sprintf("- noise ratio: %g\n", run.NoiseRatio))
	sb.WriteString(fmt.Sprintf("- dt: %g ms\n", run.TimestepMS))
	sb.WriteString(fmt.Sprintf("- duration: %g ms\n", run.DurationMS))
	sb.WriteString(fmt.Sprintf("- seed: %d\n", run.Seed))

	sum := run.Summary
	sb.WriteString("\n## Activity\n\n")
	sb.WriteString(fmt.Sprintf("- steps: %d\n", sum.Steps))
	sb.WriteString(fmt.Sprintf("- total spikes: %d\n", sum.TotalSpikes))
	sb.WriteString(fmt.Sprintf("- spikes per step: %.3f ± %.3f\n", sum.MeanSpikes, sum.StdSpikes))
	sb.WriteString(fmt.Sprintf("- peak: %d spikes at step %d\n", sum.PeakSpikes, sum.PeakStep))
	sb.WriteString(fmt.Sprintf("- mean rate: %.2f Hz\n", sum.MeanRateHz))
	return sb.String()
}
