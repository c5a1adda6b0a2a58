// Package network owns a population of LIF units and drives the
// synchronous per-step protocol:
//
//  1. every unit receives its background noise into the staged buffer, then
//     staged input rolls into pending input and staged is cleared;
//  2. every unit runs its transition rule against its pending input, which
//     may deliver spikes into other units' staged input;
//  3. the step's spike total is flushed to the recorder and zeroed.
//
// Spikes delivered during step t are only consumed in phase 1 of step t+1,
// so the order in which units update within a step does not matter.
package network

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"

	"github.com/nvandessel/spikenet/internal/connectivity"
	"github.com/nvandessel/spikenet/internal/neuron"
	"github.com/nvandessel/spikenet/internal/noise"
	"github.com/nvandessel/spikenet/internal/recorder"
)

var (
	// ErrInvalidParams wraps every configuration error found by Initialize.
	ErrInvalidParams = errors.New("invalid network parameters")

	// ErrNotInitialized is returned by Step before Initialize.
	ErrNotInitialized = errors.New("network is not initialized")

	// ErrAlreadyInitialized is returned by Initialize on a live network.
	ErrAlreadyInitialized = errors.New("network is already initialized; call Reset first")
)

// Independent PCG streams derived from one seed.
const (
	streamGraph uint64 = iota + 1
	streamSample
	streamNoise
)

// Recorder receives the activity of every step.
type Recorder interface {
	RecordStepTotal(count int) error
	RecordUnitFlag(spiked bool) error
	Truncate() error
}

// Option configures a Network.
type Option func(*Network)

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Network) { n.logger = logger }
}

// WithDynamics replaces the membrane dynamics of every unit.
func WithDynamics(dyn neuron.Dynamics) Option {
	return func(n *Network) { n.dyn = dyn }
}

// WithNoise replaces the Poisson background drive.
func WithNoise(src noise.Source) Option {
	return func(n *Network) { n.noiseOverride = src }
}

// Network is a population of units plus the shared step state.
type Network struct {
	rec    Recorder
	logger *slog.Logger
	dyn    neuron.Dynamics

	noiseOverride noise.Source
	noise         noise.Source

	params   Params
	units    []*neuron.Unit
	pending  []float64
	staged   []float64
	observed []int

	excitatoryAmp float64
	inhibitoryAmp float64
	inhibitory    int
	edges         int
	decay         float64

	stepSpikes  int
	lastTotal   int
	initialized bool
}

// New creates an empty network writing to rec. A nil recorder discards all
// activity.
func New(rec Recorder, opts ...Option) *Network {
	n := &Network{
		rec:    rec,
		logger: slog.New(slog.DiscardHandler),
		dyn:    neuron.DefaultDynamics(),
	}
	if n.rec == nil {
		n.rec = recorder.New(io.Discard, io.Discard, 0)
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Initialize validates p, builds the connection graph and the units, picks
// the observed sample and truncates the recorder streams.
func (n *Network) Initialize(p Params) error {
	if n.initialized {
		return ErrAlreadyInitialized
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	if err := n.dyn.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}

	excitatory := p.ExcitatoryAmplitude
	inhibitory := -p.RelativeInhibitoryAmplitude * p.ExcitatoryAmplitude
	if !(inhibitory <= 0 && excitatory >= 0) {
		return fmt.Errorf("%w: amplitudes must satisfy inhibitory <= 0 <= excitatory, got %v and %v",
			ErrInvalidParams, inhibitory, excitatory)
	}

	graph, err := connectivity.Generate(p.Neurons, p.ConnectionProbability, newRand(p.Seed, streamGraph))
	if err != nil {
		return fmt.Errorf("generating connections: %w", err)
	}

	inhCount := connectivity.InhibitoryCount(p.Neurons, p.InhibitoryFraction)
	units, err := connectivity.BuildUnits(graph, inhCount, inhibitory, excitatory, n.dyn)
	if err != nil {
		return fmt.Errorf("building units: %w", err)
	}

	observed, err := connectivity.SampleObserved(units, p.ObservedUnits, newRand(p.Seed, streamSample))
	if err != nil {
		return fmt.Errorf("sampling observed units: %w", err)
	}

	src := n.noiseOverride
	if src == nil {
		lambda := noise.Rate(p.NoiseRatio, p.TimestepMS, p.ExcitatoryAmplitude)
		src, err = noise.NewPoisson(lambda, rand.NewPCG(p.Seed, streamNoise))
		if err != nil {
			return fmt.Errorf("creating background noise: %w", err)
		}
	}

	if err := n.rec.Truncate(); err != nil {
		return fmt.Errorf("clearing output streams: %w", err)
	}

	n.params = p
	n.units = units
	n.pending = make([]float64, len(units))
	n.staged = make([]float64, len(units))
	n.observed = observed
	n.excitatoryAmp = excitatory
	n.inhibitoryAmp = inhibitory
	n.inhibitory = inhCount
	n.edges = graph.Edges()
	n.decay = n.dyn.Decay(p.TimestepMS)
	n.noise = src
	n.stepSpikes = 0
	n.lastTotal = 0
	n.initialized = true

	n.logger.Info("network initialized",
		"neurons", len(units),
		"inhibitory", inhCount,
		"edges", n.edges,
		"observed", len(observed),
		"excitatory_amplitude", excitatory,
		"inhibitory_amplitude", inhibitory,
		"decay", n.decay)
	return nil
}

// Step advances the whole population to time index t.
func (n *Network) Step(t int) error {
	if !n.initialized {
		return ErrNotInitialized
	}
	if t < 0 {
		return fmt.Errorf("step %d: %w", t, neuron.ErrInvalidTime)
	}

	n.beginStep()

	for i, u := range n.units {
		if err := u.Update(t, n.pending[i], n.decay, n); err != nil {
			return fmt.Errorf("unit %d at step %d: %w", i, t, err)
		}
	}

	return n.flushStepTotal()
}

// beginStep adds background noise to every staged input, then rolls staged
// into pending and clears staged.
func (n *Network) beginStep() {
	for i := range n.units {
		n.staged[i] += n.excitatoryAmp * n.noise.Sample()
		n.pending[i] = n.staged[i]
		n.staged[i] = 0
	}
}

// flushStepTotal hands the step's spike total to the recorder and zeroes it.
func (n *Network) flushStepTotal() error {
	total := n.stepSpikes
	n.stepSpikes = 0
	n.lastTotal = total
	if err := n.rec.RecordStepTotal(total); err != nil {
		return fmt.Errorf("recording step total: %w", err)
	}
	return nil
}

// SendSpike adds amplitude to the staged input of every target. Targets
// outside the population are ignored, and so is every spike sent before
// Initialize.
func (n *Network) SendSpike(targets []int32, amplitude float64) {
	for _, idx := range targets {
		if idx < 0 || int(idx) >= len(n.staged) {
			continue
		}
		n.staged[idx] += amplitude
	}
}

// DeliverSpike implements neuron.SpikeSink.
func (n *Network) DeliverSpike(targets []int32, amplitude float64) {
	n.SendSpike(targets, amplitude)
}

// CountSpike implements neuron.SpikeSink.
func (n *Network) CountSpike() { n.stepSpikes++ }

// RecordFlag implements neuron.SpikeSink.
func (n *Network) RecordFlag(spiked bool) error {
	return n.rec.RecordUnitFlag(spiked)
}

// Reset releases all units and returns the network to its uninitialized
// state. It is safe to call at any time, any number of times.
func (n *Network) Reset() {
	n.units = nil
	n.pending = nil
	n.staged = nil
	n.observed = nil
	n.noise = nil
	n.inhibitory = 0
	n.edges = 0
	n.stepSpikes = 0
	n.lastTotal = 0
	n.initialized = false
}

// Initialized reports whether the network holds a population.
func (n *Network) Initialized() bool { return n.initialized }

// Size returns the number of units.
func (n *Network) Size() int { return len(n.units) }

// Unit returns unit i.
func (n *Network) Unit(i int) *neuron.Unit { return n.units[i] }

// Input returns the pending and staged input of unit i.
func (n *Network) Input(i int) (pending, staged float64) {
	return n.pending[i], n.staged[i]
}

// Params returns the parameters of the current population.
func (n *Network) Params() Params { return n.params }

// ExcitatoryAmplitude returns J.
func (n *Network) ExcitatoryAmplitude() float64 { return n.excitatoryAmp }

// InhibitoryAmplitude returns -g*J.
func (n *Network) InhibitoryAmplitude() float64 { return n.inhibitoryAmp }

// InhibitoryCount returns the size of the inhibitory block.
func (n *Network) InhibitoryCount() int { return n.inhibitory }

// Edges returns the number of directed connections.
func (n *Network) Edges() int { return n.edges }

// Decay returns the per-step membrane decay factor.
func (n *Network) Decay() float64 { return n.decay }

// Observed returns the observed unit indices in recording order.
func (n *Network) Observed() []int { return n.observed }

// StepSpikeCount returns the spikes emitted so far in the current step.
func (n *Network) StepSpikeCount() int { return n.stepSpikes }

// LastStepTotal returns the total flushed by the most recent Step.
func (n *Network) LastStepTotal() int { return n.lastTotal }

func newRand(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}
