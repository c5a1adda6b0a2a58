// Package neuron implements the leaky integrate-and-fire unit: its membrane
// potential, the refractory gate and the delayed emission of spikes.
//
// A unit never touches other units directly. Spike delivery, the population
// spike counter and observation reports all go through a SpikeSink, which
// the owning network implements.
package neuron

import (
	"errors"
	"fmt"

	"github.com/nvandessel/spikenet/internal/constants"
)

var (
	// ErrNoConnections is returned when a unit is built without targets.
	ErrNoConnections = errors.New("unit has no outgoing connections")

	// ErrInvalidTime is returned when a unit is updated at a negative step.
	ErrInvalidTime = errors.New("time index must be non-negative")
)

// SpikeSink is the capability a unit needs from its population.
type SpikeSink interface {
	// DeliverSpike adds amplitude to the staged input of every target.
	DeliverSpike(targets []int32, amplitude float64)

	// CountSpike increments the population spike total of the current step.
	CountSpike()

	// RecordFlag reports whether an observed unit emitted a spike this step.
	RecordFlag(spiked bool) error
}

// Unit is one leaky integrate-and-fire cell.
type Unit struct {
	dyn         Dynamics
	potential   float64
	connections []int32
	amplitude   float64
	lastSpike   int
	observed    bool
}

// NewUnit creates a unit at resting potential. The connections slice is
// retained and must not be modified afterwards.
func NewUnit(dyn Dynamics, amplitude float64, connections []int32) (*Unit, error) {
	if len(connections) == 0 {
		return nil, ErrNoConnections
	}
	return &Unit{
		dyn:         dyn,
		potential:   dyn.Resting,
		connections: connections,
		amplitude:   amplitude,
		lastSpike:   constants.NeverSpiked,
	}, nil
}

// Update advances the unit to step t. input is the unit's pending input for
// this step and decay the network's shared decay factor.
//
// The spike recorded at lastSpike is emitted at lastSpike+delay-1; the
// staged/pending double buffer adds the final step of delay.
func (u *Unit) Update(t int, input, decay float64, sink SpikeSink) error {
	if t < 0 {
		return fmt.Errorf("update at t=%d: %w", t, ErrInvalidTime)
	}

	emitted := false
	if t == u.lastSpike+u.dyn.DelaySteps-1 {
		sink.DeliverSpike(u.connections, u.amplitude)
		sink.CountSpike()
		emitted = true
	}

	if t >= u.lastSpike+u.dyn.RefractorySteps {
		if u.Activated() {
			u.reset(t)
		} else {
			u.integrate(input, decay)
		}
	}

	if u.observed {
		return sink.RecordFlag(emitted)
	}
	return nil
}

// Activated reports whether the potential has reached threshold.
func (u *Unit) Activated() bool {
	return u.potential >= u.dyn.Threshold
}

// Refractory reports whether the unit is held at step t.
func (u *Unit) Refractory(t int) bool {
	return t < u.lastSpike+u.dyn.RefractorySteps
}

func (u *Unit) integrate(input, decay float64) {
	u.potential = u.potential*decay + input
}

func (u *Unit) reset(t int) {
	u.potential = u.dyn.Reset
	u.lastSpike = t
}

// Potential returns the membrane potential.
func (u *Unit) Potential() float64 { return u.potential }

// Amplitude returns the signed contribution of one spike to each target.
func (u *Unit) Amplitude() float64 { return u.amplitude }

// Connections returns the target indices. Callers must not modify it.
func (u *Unit) Connections() []int32 { return u.connections }

// LastSpike returns the step of the most recent threshold crossing.
func (u *Unit) LastSpike() int { return u.lastSpike }

// Observed reports whether the unit's spike flags are recorded.
func (u *Unit) Observed() bool { return u.observed }

// SetObserved marks the unit as part of the observed sample.
func (u *Unit) SetObserved(observed bool) { u.observed = observed }

// Inhibitory reports whether the unit's spikes lower its targets' potential.
func (u *Unit) Inhibitory() bool { return u.amplitude < 0 }
