package simulation

import (
	"gonum.org/v1/gonum/stat"
)

// Summary describes the aggregate stream of one run.
type Summary struct {
	Steps       int     `json:"steps"`
	TotalSpikes int     `json:"total_spikes"`
	MeanSpikes  float64 `json:"mean_spikes_per_step"`
	StdSpikes   float64 `json:"std_spikes_per_step"`
	PeakSpikes  int     `json:"peak_spikes"`
	PeakStep    int     `json:"peak_step"`
	MeanRateHz  float64 `json:"mean_rate_hz"`
}

// Summarize computes spike statistics for per-step totals of a population
// of neurons integrated with timestep dtMS. MeanRateHz is the mean firing
// rate of a single unit.
func Summarize(totals []int, neurons int, dtMS float64) Summary {
	s := Summary{Steps: len(totals)}
	if len(totals) == 0 {
		return s
	}

	xs := make([]float64, len(totals))
	for i, v := range totals {
		xs[i] = float64(v)
		s.TotalSpikes += v
		if v > s.PeakSpikes {
			s.PeakSpikes = v
			s.PeakStep = i
		}
	}

	if len(xs) > 1 {
		s.MeanSpikes, s.StdSpikes = stat.MeanStdDev(xs, nil)
	} else {
		s.MeanSpikes = xs[0]
	}

	seconds := float64(len(totals)) * dtMS / 1000
	if neurons > 0 && seconds > 0 {
		s.MeanRateHz = float64(s.TotalSpikes) / (float64(neurons) * seconds)
	}
	return s
}
