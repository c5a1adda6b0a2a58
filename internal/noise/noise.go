// Package noise provides the background drive added to every unit each step.
package noise

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/nvandessel/spikenet/internal/constants"
)

// Source produces one background sample per call, in spike counts.
type Source interface {
	Sample() float64
}

// Poisson draws spike counts from a Poisson distribution.
type Poisson struct {
	dist distuv.Poisson
}

// NewPoisson creates a Poisson source with rate lambda (expected spikes per
// step) drawing from src.
func NewPoisson(lambda float64, src rand.Source) (*Poisson, error) {
	if lambda < 0 {
		return nil, fmt.Errorf("poisson rate must be non-negative, got %v", lambda)
	}
	if src == nil {
		return nil, fmt.Errorf("random source is required")
	}
	return &Poisson{dist: distuv.Poisson{Lambda: lambda, Src: src}}, nil
}

// Sample returns the number of external spikes arriving in one step.
func (p *Poisson) Sample() float64 {
	if p.dist.Lambda == 0 {
		return 0
	}
	return p.dist.Rand()
}

// Lambda returns the Poisson rate of one step.
func (p *Poisson) Lambda() float64 { return p.dist.Lambda }

// Zero is a Source that never fires.
type Zero struct{}

// Sample always returns 0.
func (Zero) Sample() float64 { return 0 }

// Rate converts the external/threshold frequency ratio into the expected
// number of external spikes per step:
//
//	nu_thr = theta / (J * tau)
//	lambda = ratio * nu_thr * dt
//
// A zero ratio or a zero amplitude disables the drive.
func Rate(ratio, timestepMS, excitatoryAmplitude float64) float64 {
	if ratio <= 0 || excitatoryAmplitude <= 0 {
		return 0
	}
	return ratio * timestepMS * constants.ThresholdPotential / (excitatoryAmplitude * constants.MembraneTau)
}
