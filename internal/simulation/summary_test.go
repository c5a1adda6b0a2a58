package simulation

import (
	"math"
	"testing"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name    string
		totals  []int
		neurons int
		dt      float64
		want    Summary
	}{
		{
			name: "empty",
			want: Summary{},
		},
		{
			name:    "single step",
			totals:  []int{4},
			neurons: 10,
			dt:      0.1,
			want:    Summary{Steps: 1, TotalSpikes: 4, MeanSpikes: 4, PeakSpikes: 4, MeanRateHz: 4000},
		},
		{
			name:    "several steps",
			totals:  []int{2, 4, 4, 4, 5, 5, 7, 9},
			neurons: 100,
			dt:      1,
			want: Summary{
				Steps:       8,
				TotalSpikes: 40,
				MeanSpikes:  5,
				StdSpikes:   math.Sqrt(32.0 / 7.0),
				PeakSpikes:  9,
				PeakStep:    7,
				MeanRateHz:  50,
			},
		},
		{
			name:   "no neurons",
			totals: []int{0, 0},
			dt:     0.1,
			want:   Summary{Steps: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(tt.totals, tt.neurons, tt.dt)
			if got.Steps != tt.want.Steps || got.TotalSpikes != tt.want.TotalSpikes ||
				got.PeakSpikes != tt.want.PeakSpikes || got.PeakStep != tt.want.PeakStep {
				t.Errorf("Summarize() = %+v, want %+v", got, tt.want)
			}
			for _, f := range []struct {
				name      string
				got, want float64
			}{
				{"MeanSpikes", got.MeanSpikes, tt.want.MeanSpikes},
				{"StdSpikes", got.StdSpikes, tt.want.StdSpikes},
				{"MeanRateHz", got.MeanRateHz, tt.want.MeanRateHz},
			} {
				if math.Abs(f.got-f.want) > 1e-9 {
					t.Errorf("%s = %v, want %v", f.name, f.got, f.want)
				}
			}
		})
	}
}
