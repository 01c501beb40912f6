// Package pointindex provides a spatial index over a materialized set of 2D
// points, for exact point-in-polygon filtering beyond a coarse bounding-box
// filter. The index buckets points into a uniform grid; queries gather the
// buckets overlapping a polygon's bounding box and then test each candidate
// point exactly.
package pointindex

import (
	"fmt"
	"math"
	"slices"

	"github.com/go-spatial/geom"

	"github.com/geocover/patchgrid/geomhelp"
)

// targetPointsPerCell steers the grid resolution chosen by Build.
const targetPointsPerCell = 16

type cellKey struct {
	col, row int
}

// Index is a uniform-grid bucket index over a fixed point set. Points are
// referenced by their position in the slice passed to Build.
type Index struct {
	extent geom.Extent
	size   int // cells per axis
	resX   float64
	resY   float64
	points [][2]float64
	cells  map[cellKey][]int
}

// Querier is the capability the sharder consumes, so the concrete index
// implementation stays swappable.
type Querier interface {
	Query(polygon geom.Polygon) []int
	AssignCells(boundaries []geom.Polygon) []int64
}

// Build indexes the given points. The points slice is referenced, not
// copied; callers must not mutate it afterwards.
func Build(points [][2]float64) *Index {
	ix := &Index{points: points}
	if len(points) == 0 {
		return ix
	}

	ix.extent = geom.Extent{points[0][0], points[0][1], points[0][0], points[0][1]}
	for _, pt := range points[1:] {
		ix.extent[0] = math.Min(ix.extent[0], pt[0])
		ix.extent[1] = math.Min(ix.extent[1], pt[1])
		ix.extent[2] = math.Max(ix.extent[2], pt[0])
		ix.extent[3] = math.Max(ix.extent[3], pt[1])
	}

	ix.size = int(math.Ceil(math.Sqrt(float64(len(points)) / targetPointsPerCell)))
	if ix.size < 1 {
		ix.size = 1
	}
	ix.resX = ix.extent.XSpan() / float64(ix.size)
	ix.resY = ix.extent.YSpan() / float64(ix.size)

	ix.cells = make(map[cellKey][]int, ix.size*ix.size)
	for i, pt := range points {
		key := ix.cellFor(pt)
		ix.cells[key] = append(ix.cells[key], i)
	}
	return ix
}

// Len is the number of indexed points.
func (ix *Index) Len() int {
	return len(ix.points)
}

func (ix *Index) cellFor(pt [2]float64) cellKey {
	return cellKey{
		col: ix.clampOrd(pt[0], ix.extent.MinX(), ix.resX),
		row: ix.clampOrd(pt[1], ix.extent.MinY(), ix.resY),
	}
}

// clampOrd maps an ordinate to a cell coordinate in [0, size). Points on the
// max edge of the extent land in the last cell.
func (ix *Index) clampOrd(ord, min, res float64) int {
	if res <= 0 {
		return 0
	}
	c := int((ord - min) / res)
	if c < 0 {
		// should never happen, the extent was derived from the points
		panic(fmt.Errorf("point ordinate %v below index extent minimum %v", ord, min))
	}
	if c > ix.size-1 {
		c = ix.size - 1
	}
	return c
}

// Query returns the indices, ascending, of the points intersecting the
// polygon. Points on the polygon boundary count as intersecting.
func (ix *Index) Query(polygon geom.Polygon) []int {
	if len(ix.points) == 0 || len(polygon) == 0 {
		return nil
	}
	polygonExtent, err := geom.NewExtentFromGeometry(polygon)
	if err != nil {
		panic(fmt.Errorf("could not take the extent of the query polygon: %w", err))
	}
	if polygonExtent.MaxX() < ix.extent.MinX() || polygonExtent.MinX() > ix.extent.MaxX() ||
		polygonExtent.MaxY() < ix.extent.MinY() || polygonExtent.MinY() > ix.extent.MaxY() {
		return nil
	}

	colMin := ix.clampOrdFloor(polygonExtent.MinX(), ix.extent.MinX(), ix.resX)
	colMax := ix.clampOrd(polygonExtent.MaxX(), ix.extent.MinX(), ix.resX)
	rowMin := ix.clampOrdFloor(polygonExtent.MinY(), ix.extent.MinY(), ix.resY)
	rowMax := ix.clampOrd(polygonExtent.MaxY(), ix.extent.MinY(), ix.resY)

	var matched []int
	for col := colMin; col <= colMax; col++ {
		for row := rowMin; row <= rowMax; row++ {
			for _, i := range ix.cells[cellKey{col: col, row: row}] {
				if geomhelp.PolygonContainsPoint(polygon, ix.points[i]) {
					matched = append(matched, i)
				}
			}
		}
	}
	slices.Sort(matched)
	return matched
}

// clampOrdFloor is clampOrd for range minima: ordinates below the extent
// clamp to cell 0 instead of panicking.
func (ix *Index) clampOrdFloor(ord, min, res float64) int {
	if res <= 0 || ord < min {
		return 0
	}
	c := int((ord - min) / res)
	if c > ix.size-1 {
		c = ix.size - 1
	}
	return c
}

// AssignCells maps every indexed point to the 1-based position of the first
// boundary polygon containing it. Points outside all boundaries get 0, the
// unassigned sentinel.
func (ix *Index) AssignCells(boundaries []geom.Polygon) []int64 {
	ids := make([]int64, len(ix.points))
	for b, boundary := range boundaries {
		for _, i := range ix.Query(boundary) {
			if ids[i] == 0 {
				ids[i] = int64(b) + 1
			}
		}
	}
	return ids
}
