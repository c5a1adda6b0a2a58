package noise

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/stat"
)

func TestRate(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		dt    float64
		j     float64
		want  float64
	}{
		{"reference network", 2, 0.1, 0.1, 2},
		{"half ratio", 1, 0.1, 0.1, 1},
		{"zero ratio", 0, 0.1, 0.1, 0},
		{"zero amplitude", 2, 0.1, 0, 0},
		{"larger amplitude", 2, 0.1, 0.2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Rate(tt.ratio, tt.dt, tt.j)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Rate(%v, %v, %v) = %v, want %v", tt.ratio, tt.dt, tt.j, got, tt.want)
			}
		})
	}
}

func TestNewPoisson_Invalid(t *testing.T) {
	if _, err := NewPoisson(-1, rand.NewPCG(1, 2)); err == nil {
		t.Error("expected error for negative rate")
	}
	if _, err := NewPoisson(1, nil); err == nil {
		t.Error("expected error for nil source")
	}
}

func TestPoisson_ZeroRate(t *testing.T) {
	p, err := NewPoisson(0, rand.NewPCG(1, 2))
	if err != nil {
		t.Fatalf("NewPoisson: %v", err)
	}
	for i := 0; i < 100; i++ {
		if got := p.Sample(); got != 0 {
			t.Fatalf("Sample() = %v, want 0", got)
		}
	}
}

func TestPoisson_Moments(t *testing.T) {
	const lambda = 2.0
	p, err := NewPoisson(lambda, rand.NewPCG(42, 7))
	if err != nil {
		t.Fatalf("NewPoisson: %v", err)
	}

	samples := make([]float64, 20000)
	for i := range samples {
		samples[i] = p.Sample()
		if samples[i] < 0 || samples[i] != math.Trunc(samples[i]) {
			t.Fatalf("sample %d = %v is not a non-negative integer", i, samples[i])
		}
	}

	mean, variance := stat.MeanVariance(samples, nil)
	if math.Abs(mean-lambda) > 0.1 {
		t.Errorf("mean = %v, want ~%v", mean, lambda)
	}
	if math.Abs(variance-lambda) > 0.2 {
		t.Errorf("variance = %v, want ~%v", variance, lambda)
	}
}

func TestPoisson_Deterministic(t *testing.T) {
	a, _ := NewPoisson(3, rand.NewPCG(9, 9))
	b, _ := NewPoisson(3, rand.NewPCG(9, 9))
	for i := 0; i < 50; i++ {
		if x, y := a.Sample(), b.Sample(); x != y {
			t.Fatalf("sample %d differs: %v vs %v", i, x, y)
		}
	}
}

func TestZero(t *testing.T) {
	var s Source = Zero{}
	if s.Sample() != 0 {
		t.Error("Zero source should return 0")
	}
}
