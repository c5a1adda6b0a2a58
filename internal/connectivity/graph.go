// Package connectivity builds the random directed graph that wires a
// population together, instantiates its units and picks the observed sample.
//
// Generation is a pure function of (n, p, rng): the same seed always yields
// the same graph. The graph is stored in compressed sparse row form and is
// immutable once built.
package connectivity

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/nvandessel/spikenet/internal/neuron"
)

// Graph is a directed graph over unit indices in compressed sparse row form.
// The out-edges of unit i are targets[offsets[i]:offsets[i+1]], ascending.
type Graph struct {
	offsets []int
	targets []int32
}

// NewGraph builds a graph from explicit adjacency lists. It is mainly useful
// for hand-wired test networks.
func NewGraph(adjacency [][]int32) (*Graph, error) {
	n := len(adjacency)
	g := &Graph{offsets: make([]int, n+1)}
	for i, row := range adjacency {
		for _, j := range row {
			if j < 0 || int(j) >= n {
				return nil, fmt.Errorf("edge %d->%d out of range [0,%d)", i, j, n)
			}
			if int(j) == i {
				return nil, fmt.Errorf("self-loop on unit %d", i)
			}
		}
		sorted := slices.Clone(row)
		slices.Sort(sorted)
		g.targets = append(g.targets, sorted...)
		g.offsets[i+1] = len(g.targets)
	}
	return g, nil
}

// Generate draws a graph of n units where each ordered pair (i, j), i != j,
// is connected independently with probability p.
func Generate(n int, p float64, rng *rand.Rand) (*Graph, error) {
	if n <= 0 || n > math.MaxInt32 {
		return nil, fmt.Errorf("population size must be in [1, %d], got %d", math.MaxInt32, n)
	}
	if p <= 0 || p > 1 {
		return nil, fmt.Errorf("connection probability must be in (0, 1], got %v", p)
	}
	if rng == nil {
		return nil, fmt.Errorf("random generator is required")
	}

	g := &Graph{
		offsets: make([]int, n+1),
		targets: make([]int32, 0, int(float64(n)*float64(n-1)*p)),
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			if rng.Float64() < p {
				g.targets = append(g.targets, int32(j))
			}
		}
		g.offsets[i+1] = len(g.targets)
	}
	return g, nil
}

// Size returns the number of units.
func (g *Graph) Size() int { return len(g.offsets) - 1 }

// Edges returns the total number of directed edges.
func (g *Graph) Edges() int { return len(g.targets) }

// Out returns the targets of unit i. Callers must not modify it.
func (g *Graph) Out(i int) []int32 {
	return g.targets[g.offsets[i]:g.offsets[i+1]:g.offsets[i+1]]
}

// OutDegree returns the number of targets of unit i.
func (g *Graph) OutDegree(i int) int { return g.offsets[i+1] - g.offsets[i] }

// InhibitoryCount returns the size of the inhibitory block, floor(n*fraction).
func InhibitoryCount(n int, fraction float64) int {
	return int(math.Floor(float64(n) * fraction))
}

// BuildUnits instantiates one unit per graph node. The first inhibitory
// units carry inhibitoryAmp, the rest excitatoryAmp. A node without
// out-edges fails with neuron.ErrNoConnections.
func BuildUnits(g *Graph, inhibitory int, inhibitoryAmp, excitatoryAmp float64, dyn neuron.Dynamics) ([]*neuron.Unit, error) {
	n := g.Size()
	if inhibitory < 0 || inhibitory > n {
		return nil, fmt.Errorf("inhibitory count %d out of range [0, %d]", inhibitory, n)
	}

	units := make([]*neuron.Unit, n)
	for i := 0; i < n; i++ {
		amp := excitatoryAmp
		if i < inhibitory {
			amp = inhibitoryAmp
		}
		u, err := neuron.NewUnit(dyn, amp, g.Out(i))
		if err != nil {
			return nil, fmt.Errorf("unit %d: %w", i, err)
		}
		units[i] = u
	}
	return units, nil
}

// SampleObserved marks k distinct units as observed, drawing indices
// uniformly and retrying on duplicates. It returns the marked indices in
// ascending order, which is also the order their flags are recorded in.
func SampleObserved(units []*neuron.Unit, k int, rng *rand.Rand) ([]int, error) {
	n := len(units)
	if k < 0 || k > n {
		return nil, fmt.Errorf("cannot observe %d units out of %d", k, n)
	}
	if rng == nil {
		return nil, fmt.Errorf("random generator is required")
	}

	picked := make([]int, 0, k)
	for len(picked) < k {
		idx := rng.IntN(n)
		if units[idx].Observed() {
			continue
		}
		units[idx].SetObserved(true)
		picked = append(picked, idx)
	}
	slices.Sort(picked)
	return picked, nil
}
