// Package constants provides named constants used throughout the spikenet codebase.
// This centralizes the model constants and run defaults so that the engine,
// configuration and tests agree on them.
package constants

// Membrane dynamics. These are fixed by the modeled cell and are not part of
// the run configuration.
const (
	// ThresholdPotential is the membrane potential (mV) at which a unit fires.
	ThresholdPotential = 20.0

	// ResetPotential is the potential (mV) a unit is clamped to after firing.
	ResetPotential = 10.0

	// RestingPotential is the potential (mV) every unit starts at.
	RestingPotential = 0.0

	// MembraneTau is the membrane time constant in milliseconds.
	MembraneTau = 20.0

	// RefractorySteps is the number of steps after a threshold crossing during
	// which a unit neither integrates nor fires.
	RefractorySteps = 20

	// TransmissionDelaySteps is the number of steps between a threshold
	// crossing and the spike reaching the targets' pending input.
	TransmissionDelaySteps = 15

	// NeverSpiked is the initial last-spike time. It lies far enough in the
	// past that neither the refractory gate nor the delayed emission can
	// trigger before real activity.
	NeverSpiked = -100
)

// Population structure defaults.
const (
	// InhibitoryFraction is the proportion of inhibitory units in the population.
	InhibitoryFraction = 0.2

	// ConnectionProbability is the probability of a directed edge between two
	// distinct units.
	ConnectionProbability = 0.1

	// ObservedUnits is the number of units sampled for the detail stream.
	ObservedUnits = 50
)

// Run defaults, taken from the reference network (Brunel 2000, model A).
const (
	// DefaultNeurons is the default population size.
	DefaultNeurons = 12500

	// DefaultExcitatoryAmplitude is the default spike amplitude J (mV).
	DefaultExcitatoryAmplitude = 0.1

	// DefaultRelativeInhibitoryAmplitude is the default ratio g between
	// inhibitory and excitatory amplitudes.
	DefaultRelativeInhibitoryAmplitude = 5.0

	// DefaultNoiseRatio is the default ratio between the external frequency
	// and the frequency needed to reach threshold (nu_ext / nu_thr).
	DefaultNoiseRatio = 2.0

	// DefaultTimestepMS is the default integration step in milliseconds.
	DefaultTimestepMS = 0.1

	// DefaultDurationMS is the default simulated duration in milliseconds.
	DefaultDurationMS = 2000.0

	// MaxSteps bounds duration/dt for a single run.
	MaxSteps = 10_000_000
)
