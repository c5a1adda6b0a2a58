package neuron

import (
	"fmt"
	"math"

	"github.com/nvandessel/spikenet/internal/constants"
)

// Dynamics holds the membrane constants shared by every unit of a network.
type Dynamics struct {
	// Threshold is the potential at which a unit fires.
	Threshold float64

	// Reset is the potential a unit is clamped to after firing.
	Reset float64

	// Resting is the initial potential.
	Resting float64

	// TauMS is the membrane time constant in milliseconds.
	TauMS float64

	// RefractorySteps is how long a unit holds after a threshold crossing.
	RefractorySteps int

	// DelaySteps is the transmission delay of a spike.
	DelaySteps int
}

// DefaultDynamics returns the dynamics of the modeled cell.
func DefaultDynamics() Dynamics {
	return Dynamics{
		Threshold:       constants.ThresholdPotential,
		Reset:           constants.ResetPotential,
		Resting:         constants.RestingPotential,
		TauMS:           constants.MembraneTau,
		RefractorySteps: constants.RefractorySteps,
		DelaySteps:      constants.TransmissionDelaySteps,
	}
}

// Validate checks that the dynamics can drive the delayed-emission rule.
// The delay must be at least one step, and a unit may not be able to fire
// again before its previous spike has been delivered.
func (d Dynamics) Validate() error {
	if d.TauMS <= 0 {
		return fmt.Errorf("membrane tau must be positive, got %v", d.TauMS)
	}
	if d.DelaySteps < 1 {
		return fmt.Errorf("transmission delay must be at least 1 step, got %d", d.DelaySteps)
	}
	if d.DelaySteps >= d.RefractorySteps {
		return fmt.Errorf("transmission delay (%d) must be shorter than the refractory period (%d)",
			d.DelaySteps, d.RefractorySteps)
	}
	if d.Reset >= d.Threshold {
		return fmt.Errorf("reset potential (%v) must be below threshold (%v)", d.Reset, d.Threshold)
	}
	return nil
}

// Decay returns the per-step membrane decay factor exp(-dt/tau).
func (d Dynamics) Decay(timestepMS float64) float64 {
	return math.Exp(-timestepMS / d.TauMS)
}
