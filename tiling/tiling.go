// Package tiling computes a grid of possibly-overlapping rectangular tiles
// covering the footprint of a 2D element, optionally restricted to a region
// of interest.
package tiling

import (
	"errors"
	"fmt"
	"log"

	"github.com/go-spatial/geom"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/geocover/patchgrid/geomhelp"
	"github.com/geocover/patchgrid/mapslicehelp"
)

var (
	// ErrUnsupportedElement means the named element is neither a raster nor
	// a point cloud and cannot be tiled.
	ErrUnsupportedElement = errors.New("unsupported element kind for tiling")
	// ErrTileWidth means the requested tile width does not exceed the
	// overlap, which would make tiles degenerate.
	ErrTileWidth = errors.New("tile width must be greater than tile overlap")
)

// TileIndex identifies a tile by its column and row in the grid.
type TileIndex struct {
	X, Y int
}

// Grid is a 2D tile grid over the footprint of an element. The selected
// tiles, in row-major enumeration order, fix the externally visible tile
// numbering used for persistence and sharding. A Grid is immutable after
// construction.
type Grid struct {
	element   Element
	width     float64
	overlap   float64
	tight     bool
	intCoords bool
	x, y      *Axis
	roi       geom.Polygon
	hasROI    bool
	tiles     *orderedmap.OrderedMap[TileIndex, geom.Extent]
	order     []TileIndex
}

// NewGrid resolves the element's footprint, builds the per-axis tilers,
// applies the tight-mode width correction and filters the enumerated tiles
// against the dataset's ROI when one is present.
//
//nolint:cyclop
func NewGrid(ds Dataset, elementName string, opts Options) (*Grid, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.TileWidth <= opts.TileOverlap {
		return nil, fmt.Errorf("%w: width %v, overlap %v", ErrTileWidth, opts.TileWidth, opts.TileOverlap)
	}

	element, err := ds.Element(elementName)
	if err != nil {
		return nil, err
	}

	var tight, intCoords bool
	switch element.Kind() {
	case KindRaster:
		tight, intCoords = false, true
	case KindPointCloud:
		tight, intCoords = true, false
	default:
		return nil, fmt.Errorf("%w: %q is a %v", ErrUnsupportedElement, elementName, element.Kind())
	}

	spanX, spanY, err := element.Footprint()
	if err != nil {
		return nil, fmt.Errorf("could not resolve footprint of %q: %w", elementName, err)
	}

	g := &Grid{
		element:   element,
		width:     opts.TileWidth,
		overlap:   opts.TileOverlap,
		tight:     tight,
		intCoords: intCoords,
		x:         NewAxis(spanX.Min, spanX.Max, opts.TileWidth, opts.TileOverlap, intCoords),
		y:         NewAxis(spanY.Min, spanY.Max, opts.TileWidth, opts.TileOverlap, intCoords),
		tiles:     orderedmap.New[TileIndex, geom.Extent](),
	}

	g.roi, g.hasROI, err = ds.ROI(elementName)
	if err != nil {
		return nil, fmt.Errorf("could not resolve roi for %q: %w", elementName, err)
	}

	if g.tight {
		tightWidth := max(g.x.TightWidth(), g.y.TightWidth())
		g.width = tightWidth
		g.x.update(tightWidth)
		g.y.update(tightWidth)
	}

	countX := g.x.Count()
	for i := 0; i < countX*g.y.Count(); i++ {
		index := TileIndex{X: i % countX, Y: i / countX}
		bounds := g.BoundsAt(index.X, index.Y)
		if !g.hasROI || geomhelp.PolygonIntersectsExtent(g.roi, bounds) {
			g.tiles.Set(index, bounds)
		}
	}
	g.order = mapslicehelp.OrderedMapKeys(g.tiles)

	if g.hasROI {
		log.Printf("  tiling %q: %d x %d grid, %d tiles within roi %s",
			elementName, g.x.Count(), g.y.Count(), g.Len(), geomhelp.WktMustEncode(g.roi, 80))
	} else {
		log.Printf("  tiling %q: %d x %d grid", elementName, g.x.Count(), g.y.Count())
	}

	return g, nil
}

// Element is the element the grid was derived from.
func (g *Grid) Element() Element {
	return g.element
}

// TileWidth is the effective tile width after any tight-mode correction.
func (g *Grid) TileWidth() float64 {
	return g.width
}

func (g *Grid) TileOverlap() float64 {
	return g.overlap
}

// Len is the number of selected tiles.
func (g *Grid) Len() int {
	return g.tiles.Len()
}

// Index returns the (column, row) pair of the i-th selected tile.
func (g *Grid) Index(i int) TileIndex {
	return g.order[i]
}

// Indices returns the selected tile indices in enumeration order.
func (g *Grid) Indices() []TileIndex {
	return g.order
}

// Contains reports whether tile (ix, iy) survived the ROI filter.
func (g *Grid) Contains(ix, iy int) bool {
	_, ok := g.tiles.Get(TileIndex{X: ix, Y: iy})
	return ok
}

// Bounds is the bounding box of the i-th selected tile.
func (g *Grid) Bounds(i int) geom.Extent {
	bounds, ok := g.tiles.Get(g.order[i])
	if !ok {
		panic(fmt.Errorf("tile order out of sync with tile map at ordinal %d", i))
	}
	return bounds
}

// BoundsAt is the bounding box of the tile in column ix and row iy,
// regardless of whether it was selected.
func (g *Grid) BoundsAt(ix, iy int) geom.Extent {
	x0, x1 := g.x.Bounds(ix)
	y0, y1 := g.y.Bounds(iy)
	return geom.Extent{x0, y0, x1, y1}
}

// ROI returns the region of interest, if any, in element coordinates.
func (g *Grid) ROI() (geom.Polygon, bool) {
	return g.roi, g.hasROI
}

// Polygon is the geometry of the i-th selected tile: its bounding-box
// rectangle, intersected with the ROI when one is present. The result can
// be non-rectangular and can carry holes.
func (g *Grid) Polygon(i int) geom.Polygon {
	bounds := g.Bounds(i)
	if !g.hasROI {
		return geomhelp.ExtentPolygon(bounds)
	}
	return geomhelp.ClipToExtent(g.roi, bounds)
}

// Polygons returns the geometry of every selected tile, in tile order.
func (g *Grid) Polygons() []geom.Polygon {
	polygons := make([]geom.Polygon, g.Len())
	for i := range polygons {
		polygons[i] = g.Polygon(i)
	}
	return polygons
}
