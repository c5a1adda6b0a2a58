package network

import (
	"errors"
	"fmt"
	"math"

	"github.com/nvandessel/spikenet/internal/constants"
)

// Params configures one network instance.
type Params struct {
	// RelativeInhibitoryAmplitude is g: inhibitory spikes weigh -g*J.
	RelativeInhibitoryAmplitude float64

	// ExcitatoryAmplitude is J, the potential jump (mV) of an excitatory spike.
	ExcitatoryAmplitude float64

	// Neurons is the population size N.
	Neurons int

	// TimestepMS is the integration step in milliseconds.
	TimestepMS float64

	// NoiseRatio is nu_ext/nu_thr, the strength of the Poisson background drive.
	NoiseRatio float64

	// InhibitoryFraction is the share of inhibitory units, placed first.
	InhibitoryFraction float64

	// ConnectionProbability is the probability of each directed edge.
	ConnectionProbability float64

	// ObservedUnits is the size of the sample whose flags are recorded.
	ObservedUnits int

	// Seed drives graph generation, the observed sample and the noise.
	Seed uint64
}

// DefaultParams returns the reference network parameters with seed 0.
func DefaultParams() Params {
	return Params{
		RelativeInhibitoryAmplitude: constants.DefaultRelativeInhibitoryAmplitude,
		ExcitatoryAmplitude:         constants.DefaultExcitatoryAmplitude,
		Neurons:                     constants.DefaultNeurons,
		TimestepMS:                  constants.DefaultTimestepMS,
		NoiseRatio:                  constants.DefaultNoiseRatio,
		InhibitoryFraction:          constants.InhibitoryFraction,
		ConnectionProbability:       constants.ConnectionProbability,
		ObservedUnits:               constants.ObservedUnits,
	}
}

// Validate checks the parameters before any unit is built. NaN and
// infinite values are rejected everywhere a real number is expected.
func (p Params) Validate() error {
	var errs []error
	if !finite(p.RelativeInhibitoryAmplitude) || p.RelativeInhibitoryAmplitude < 0 {
		errs = append(errs, fmt.Errorf("relative inhibitory amplitude must be a non-negative number, got %v", p.RelativeInhibitoryAmplitude))
	}
	if !finite(p.ExcitatoryAmplitude) || p.ExcitatoryAmplitude < 0 {
		errs = append(errs, fmt.Errorf("excitatory amplitude must be a non-negative number, got %v", p.ExcitatoryAmplitude))
	}
	if p.Neurons <= 0 {
		errs = append(errs, fmt.Errorf("population size must be positive, got %d", p.Neurons))
	}
	if !finite(p.TimestepMS) || p.TimestepMS <= 0 {
		errs = append(errs, fmt.Errorf("timestep must be a positive number, got %v", p.TimestepMS))
	}
	if !finite(p.NoiseRatio) || p.NoiseRatio < 0 {
		errs = append(errs, fmt.Errorf("noise ratio must be a non-negative number, got %v", p.NoiseRatio))
	}
	if !(p.InhibitoryFraction >= 0 && p.InhibitoryFraction <= 1) {
		errs = append(errs, fmt.Errorf("inhibitory fraction must be in [0, 1], got %v", p.InhibitoryFraction))
	}
	if !(p.ConnectionProbability > 0 && p.ConnectionProbability <= 1) {
		errs = append(errs, fmt.Errorf("connection probability must be in (0, 1], got %v", p.ConnectionProbability))
	}
	if p.ObservedUnits < 0 || (p.Neurons > 0 && p.ObservedUnits > p.Neurons) {
		errs = append(errs, fmt.Errorf("observed units must be in [0, %d], got %d", p.Neurons, p.ObservedUnits))
	}
	return errors.Join(errs...)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
