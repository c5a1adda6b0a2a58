// Package store archives simulation runs in SQLite: their parameters,
// outcome summary and the per-step aggregate spike totals.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nvandessel/spikenet/internal/config"

	_ "modernc.org/sqlite" // SQLite driver
)

// ErrRunNotFound is returned when a run ID is not in the archive.
var ErrRunNotFound = errors.New("run not found")

// timeLayout is fixed width so that created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RunStatus is the lifecycle state of an archived run.
type RunStatus string

const (
	RunRunning  RunStatus = "running"
	RunFinished RunStatus = "finished"
	RunFailed   RunStatus = "failed"
)

// RunRecord is one archived run.
type RunRecord struct {
	ID         string                  `json:"id"`
	Status     RunStatus               `json:"status"`
	Simulation config.SimulationConfig `json:"simulation"`
	Steps      int                     `json:"steps"`
	OutputDir  string                  `json:"output_dir,omitempty"`
	Outcome    RunOutcome              `json:"outcome"`
	CreatedAt  time.Time               `json:"created_at"`
	FinishedAt *time.Time              `json:"finished_at,omitempty"`
}

// RunOutcome summarizes a completed or failed run.
type RunOutcome struct {
	Status       RunStatus     `json:"status"`
	TotalSpikes  int           `json:"total_spikes"`
	MeanSpikes   float64       `json:"mean_spikes_per_step"`
	StdSpikes    float64       `json:"std_spikes_per_step"`
	MeanRateHz   float64       `json:"mean_rate_hz"`
	InitDuration time.Duration `json:"init_duration"`
	RunDuration  time.Duration `json:"run_duration"`
	Error        string        `json:"error,omitempty"`
}

// RunStore is a SQLite-backed run archive. It is safe for concurrent use.
type RunStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// Open opens or creates the archive at path.
func Open(path string) (*RunStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &RunStore{db: db, dbPath: path}, nil
}

// Path returns the database file path.
func (s *RunStore) Path() string { return s.dbPath }

// CreateRun inserts a run in the running state. An empty ID is replaced
// with a new UUID. It returns the run ID.
func (s *RunStore) CreateRun(ctx context.Context, run RunRecord) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	sim := run.Simulation

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (
			id, status, neurons, excitatory_amplitude, relative_inhibitory_amplitude,
			noise_ratio, timestep_ms, duration_ms, inhibitory_fraction,
			connection_probability, observed_units, seed, steps, output_dir, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, RunRunning, sim.Neurons, sim.ExcitatoryAmplitude, sim.RelativeInhibitoryAmplitude,
		sim.NoiseRatio, sim.TimestepMS, sim.DurationMS, sim.InhibitoryFraction,
		sim.ConnectionProbability, sim.ObservedUnits, int64(sim.Seed), run.Steps,
		nullString(run.OutputDir), run.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return run.ID, nil
}

// AppendStepTotals appends totals to the run's aggregate stream in a single
// transaction, numbering them after the steps already stored.
func (s *RunStore) AppendStepTotals(ctx context.Context, runID string, totals []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := runExists(ctx, tx, runID); err != nil {
		return err
	}

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(step) + 1, 0) FROM step_totals WHERE run_id = ?`, runID).Scan(&next); err != nil {
		return fmt.Errorf("failed to read last step: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO step_totals (run_id, step, spikes) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, total := range totals {
		if _, err := stmt.ExecContext(ctx, runID, next+i, total); err != nil {
			return fmt.Errorf("failed to insert step %d: %w", next+i, err)
		}
	}

	return tx.Commit()
}

// FinishRun records the outcome of a run.
func (s *RunStore) FinishRun(ctx context.Context, runID string, outcome RunOutcome) error {
	if outcome.Status == "" {
		outcome.Status = RunFinished
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET
			status = ?, total_spikes = ?, mean_spikes = ?, std_spikes = ?, mean_rate_hz = ?,
			init_ms = ?, run_ms = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		outcome.Status, outcome.TotalSpikes, outcome.MeanSpikes, outcome.StdSpikes, outcome.MeanRateHz,
		outcome.InitDuration.Milliseconds(), outcome.RunDuration.Milliseconds(),
		nullString(outcome.Error), time.Now().UTC().Format(timeLayout), runID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// GetRun returns one run.
func (s *RunStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first. A limit <= 0 returns all.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, selectRun+` ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// StepTotals returns the archived aggregate stream of a run.
func (s *RunStore) StepTotals(ctx context.Context, id string) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := runExists(ctx, s.db, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT spikes FROM step_totals WHERE run_id = ? ORDER BY step`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query step totals: %w", err)
	}
	defer rows.Close()

	totals := []int{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan step total: %w", err)
		}
		totals = append(totals, v)
	}
	return totals, rows.Err()
}

// Close closes the database.
func (s *RunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

const selectRun = `
	SELECT id, status, neurons, excitatory_amplitude, relative_inhibitory_amplitude,
		noise_ratio, timestep_ms, duration_ms, inhibitory_fraction, connection_probability,
		observed_units, seed, steps, output_dir, total_spikes, mean_spikes, std_spikes,
		mean_rate_hz, init_ms, run_ms, error, created_at, finished_at
	FROM runs`

type rowScanner interface {
	Scan(dest ...any) error
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var (
		run                        RunRecord
		sim                        = &run.Simulation
		seed, initMS, runMS        int64
		outputDir, errMsg, finished sql.NullString
		created                    string
	)
	err := row.Scan(&run.ID, &run.Status, &sim.Neurons, &sim.ExcitatoryAmplitude,
		&sim.RelativeInhibitoryAmplitude, &sim.NoiseRatio, &sim.TimestepMS, &sim.DurationMS,
		&sim.InhibitoryFraction, &sim.ConnectionProbability, &sim.ObservedUnits, &seed,
		&run.Steps, &outputDir, &run.Outcome.TotalSpikes, &run.Outcome.MeanSpikes,
		&run.Outcome.StdSpikes, &run.Outcome.MeanRateHz, &initMS, &runMS, &errMsg,
		&created, &finished)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	sim.Seed = uint64(seed)
	run.OutputDir = outputDir.String
	run.Outcome.Status = run.Status
	run.Outcome.InitDuration = time.Duration(initMS) * time.Millisecond
	run.Outcome.RunDuration = time.Duration(runMS) * time.Millisecond
	run.Outcome.Error = errMsg.String

	if run.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("failed to parse created_at %q: %w", created, err)
	}
	if finished.Valid {
		t, err := time.Parse(timeLayout, finished.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse finished_at %q: %w", finished.String, err)
		}
		run.FinishedAt = &t
	}
	return &run, nil
}

func runExists(ctx context.Context, q queryRower, id string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to look up run: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
