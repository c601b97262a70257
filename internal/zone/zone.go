package zone

import (
	"fmt"
	"math"
)

// MaxZones is the largest number of zones a layout can hold (one per stem)
const MaxZones = 8

// Axis selects which normalized touch coordinate drives zone lookup
type Axis string

const (
	AxisX Axis = "x"
	AxisY Axis = "y"
)

// Zone is a contiguous slice [Start, End) of the primary axis bound to one stem
type Zone struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Stem  int     `json:"stem"`
}

// Width returns the extent of the zone on the primary axis
func (z Zone) Width() float64 {
	return z.End - z.Start
}

// Layout partitions [0,1] into contiguous zones. A Layout is immutable once built.
type Layout struct {
	Axis  Axis
	zones []Zone
}

// New builds a layout of n zones. With no weights every zone has the same width;
// otherwise widths are proportional to the weights, which must all be positive.
func New(n int, weights []float64) (Layout, error) {
	return NewOnAxis(n, weights, AxisX)
}

// NewOnAxis is New with an explicit primary axis
func NewOnAxis(n int, weights []float64, axis Axis) (Layout, error) {
	if n < 1 || n > MaxZones {
		return Layout{}, fmt.Errorf("zone count must be between 1 and %d, got %d", MaxZones, n)
	}
	if axis == "" {
		axis = AxisX
	}
	if axis != AxisX && axis != AxisY {
		return Layout{}, fmt.Errorf("zone axis must be 'x' or 'y', got: %s", axis)
	}

	if len(weights) == 0 {
		weights = make([]float64, n)
		for i := range weights {
			weights[i] = 1
		}
	}
	if len(weights) != n {
		return Layout{}, fmt.Errorf("expected %d zone weights, got %d", n, len(weights))
	}

	total := 0.0
	for i, w := range weights {
		if !(w > 0) || math.IsInf(w, 0) {
			return Layout{}, fmt.Errorf("zone weight[%d] must be > 0, got: %v", i, w)
		}
		total += w
	}

	zones := make([]Zone, n)
	start := 0.0
	acc := 0.0
	for i, w := range weights {
		acc += w
		end := acc / total
		// The final boundary is pinned so rounding never leaves a gap below 1.0
		if i == n-1 {
			end = 1.0
		}
		zones[i] = Zone{Index: i, Start: start, End: end, Stem: i}
		start = end
	}

	return Layout{Axis: axis, zones: zones}, nil
}

// Len returns the number of zones
func (l Layout) Len() int {
	return len(l.zones)
}

// Zones returns a copy of the zone boundaries, e.g. for drawing overlays
func (l Layout) Zones() []Zone {
	out := make([]Zone, len(l.zones))
	copy(out, l.zones)
	return out
}

// Zone returns the zone at index i
func (l Layout) Zone(i int) (Zone, bool) {
	if i < 0 || i >= len(l.zones) {
		return Zone{}, false
	}
	return l.zones[i], true
}

// Coord picks the primary-axis coordinate out of a normalized position
func (l Layout) Coord(x, y float64) float64 {
	if l.Axis == AxisY {
		return y
	}
	return x
}

// ZoneForX returns the index of the zone containing x. Out of range values clamp
// to the edge zones and the last zone includes 1.0. An empty layout returns -1.
func (l Layout) ZoneForX(x float64) int {
	n := len(l.zones)
	if n == 0 {
		return -1
	}
	if math.IsNaN(x) || x <= 0 {
		return 0
	}
	if x >= 1 {
		return n - 1
	}

	// Zone counts are tiny, a linear scan is fine
	for _, z := range l.zones {
		if x >= z.Start && x < z.End {
			return z.Index
		}
	}
	return n - 1
}

// Locate returns the zone containing x and the relative offset of x inside it (0..1)
func (l Layout) Locate(x float64) (int, float64) {
	idx := l.ZoneForX(x)
	if idx < 0 {
		return -1, 0
	}
	z := l.zones[idx]
	if math.IsNaN(x) {
		x = 0
	}
	x = math.Max(0, math.Min(1, x))
	if z.Width() <= 0 {
		return idx, 0
	}
	offset := (x - z.Start) / z.Width()
	return idx, math.Max(0, math.Min(1, offset))
}
