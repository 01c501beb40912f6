package shard

import (
	"github.com/go-spatial/geom"

	"github.com/geocover/patchgrid/pointindex"
)

// Row is one record of the point dataset: the parsed coordinates plus the
// raw column values, aligned with Source.Columns.
type Row struct {
	X, Y   float64
	Values []interface{}
}

// Source is a read-only, possibly out-of-core point table supporting
// bounding-box filter pushdown. ReadBounded streams the rows whose
// coordinates satisfy x0 <= x <= x1 and y0 <= y <= y1 and closes the
// channel when done.
type Source interface {
	Columns() ([]string, error)
	ReadBounded(extent geom.Extent, rows chan<- Row) error
}

// BoundarySource yields the prior segmentation boundaries, in order; the
// 1-based position of a boundary is its cell id.
type BoundarySource interface {
	Boundaries() ([]geom.Polygon, error)
}

// IndexBuilder builds the spatial index used for exact point-in-polygon
// filtering on ROI-clipped tiles.
type IndexBuilder func(points [][2]float64) pointindex.Querier

// Assigner is the bulk point-to-cell mapping used on rectangular tiles,
// where no index is built.
type Assigner interface {
	Assign(points [][2]float64, boundaries []geom.Polygon) []int64
}
