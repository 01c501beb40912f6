package tiling

import (
	"fmt"
	"math"
)

// Axis partitions one axis of a domain span into count tiles of equal width
// with a fixed overlap between neighbours. The count is derived once at
// construction and never changes afterwards.
type Axis struct {
	min, max float64
	delta    float64
	width    float64
	overlap  float64
	// intCoords truncates tile bounds toward zero
	intCoords bool
	count     int
}

// NewAxis builds an axis tiler over [min, max]. The caller guarantees
// width > overlap; that is validated at the grid level because width and
// overlap are shared between both axes.
func NewAxis(min, max, width, overlap float64, intCoords bool) *Axis {
	a := &Axis{
		min:       min,
		max:       max,
		delta:     max - min,
		width:     width,
		overlap:   overlap,
		intCoords: intCoords,
	}
	a.count = a.computeCount()
	return a
}

func (a *Axis) computeCount() int {
	if a.width >= a.delta {
		return 1
	}
	return int(math.Ceil((a.delta - a.overlap) / (a.width - a.overlap)))
}

// Count is the number of tiles along this axis.
func (a *Axis) Count() int {
	return a.count
}

// TightWidth is the minimal width that makes Count tiles exactly cover the
// span with the configured overlap.
func (a *Axis) TightWidth() float64 {
	return math.Ceil((a.delta + float64(a.count-1)*a.overlap) / float64(a.count))
}

// update replaces the tile width. The tile count is fixed at construction;
// a width that changes it indicates a formula bug, not a user error.
func (a *Axis) update(width float64) {
	a.width = width
	if got := a.computeCount(); got != a.count {
		panic(fmt.Errorf("tile count changed from %d to %d after width update to %v", a.count, got, width))
	}
}

// Bounds returns the [x0, x1] bounds of tile i in [0, Count).
// In integer-coordinate mode both ends are truncated toward zero.
func (a *Axis) Bounds(i int) (x0, x1 float64) {
	start := float64(i) * (a.width - a.overlap)
	x0 = a.min + start
	x1 = x0 + a.width
	if a.intCoords {
		x0, x1 = math.Trunc(x0), math.Trunc(x1)
	}
	return x0, x1
}
